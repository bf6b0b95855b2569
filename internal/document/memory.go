package document

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for the "memory" storage mode and
// for tests. A single mutex plays the role the conditional UPDATE plays in
// PostgresStore: the version check and the increment are one critical section.
type MemoryStore struct {
	mu  sync.Mutex
	doc Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doc: Document{
			Version:               0,
			UpdatedAt:             time.Now().UTC(),
			AppState:              json.RawMessage(`{}`),
			Playlists:             json.RawMessage(`[]`),
			ProviderConfiguration: json.RawMessage(`{}`),
			Settings:              json.RawMessage(`{}`),
		},
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Load(ctx context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

func (s *MemoryStore) UpdateNamespace(ctx context.Context, ns Namespace, expected *int64, data json.RawMessage) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !writeAllowed(expected, s.doc.Version) {
		return nil, &ConflictError{Expected: *expected, Actual: s.doc.Version}
	}

	payload := cloneRaw(data)
	switch ns {
	case NamespaceAppState:
		s.doc.AppState = payload
	case NamespacePlaylists:
		s.doc.Playlists = payload
	case NamespaceProviderConfiguration:
		s.doc.ProviderConfiguration = payload
	case NamespaceSettings:
		s.doc.Settings = payload
	default:
		return nil, fmt.Errorf("namespace %q is not writable", ns)
	}

	s.advance()
	return s.snapshot(), nil
}

func (s *MemoryStore) Replace(ctx context.Context, expected *int64, contents Contents) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !writeAllowed(expected, s.doc.Version) {
		return nil, &ConflictError{Expected: *expected, Actual: s.doc.Version}
	}

	s.doc.AppState = cloneRaw(contents.AppState)
	s.doc.Playlists = cloneRaw(contents.Playlists)
	s.doc.ProviderConfiguration = cloneRaw(contents.ProviderConfiguration)
	s.doc.Settings = cloneRaw(contents.Settings)

	s.advance()
	return s.snapshot(), nil
}

// advance bumps the version and moves updated_at forward, never backward.
func (s *MemoryStore) advance() {
	s.doc.Version++
	if now := time.Now().UTC(); now.After(s.doc.UpdatedAt) {
		s.doc.UpdatedAt = now
	}
}

// snapshot copies the document so callers never alias the store's payloads.
// Callers must hold s.mu.
func (s *MemoryStore) snapshot() *Document {
	return &Document{
		Version:               s.doc.Version,
		UpdatedAt:             s.doc.UpdatedAt,
		AppState:              cloneRaw(s.doc.AppState),
		Playlists:             cloneRaw(s.doc.Playlists),
		ProviderConfiguration: cloneRaw(s.doc.ProviderConfiguration),
		Settings:              cloneRaw(s.doc.Settings),
	}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
