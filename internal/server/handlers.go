package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/neboman11/any-player-sync-server/internal/document"
	"github.com/neboman11/any-player-sync-server/internal/notify"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// namespacePayload is the body of a namespace-scoped write.
type namespacePayload struct {
	ExpectedVersion *int64          `json:"expected_version"`
	ClientID        *string         `json:"client_id"`
	Data            json.RawMessage `json:"data"`
}

// snapshotPayload is the body of a whole-document write.
type snapshotPayload struct {
	ExpectedVersion       *int64          `json:"expected_version"`
	ClientID              *string         `json:"client_id"`
	AppState              json.RawMessage `json:"app_state"`
	Playlists             json.RawMessage `json:"playlists"`
	ProviderConfiguration json.RawMessage `json:"provider_configuration"`
	Settings              json.RawMessage `json:"settings"`
}

// updateResponse is returned by the namespace read and write endpoints.
type updateResponse struct {
	Version   int64              `json:"version"`
	UpdatedAt time.Time          `json:"updated_at"`
	Namespace document.Namespace `json:"namespace"`
	Data      json.RawMessage    `json:"data"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Service:   ServiceName,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	var sinceVersion *int64
	if raw := r.URL.Query().Get("since_version"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "bad_request", "since_version must be an integer")
			return
		}
		sinceVersion = &parsed
	}

	doc, err := s.store.Load(r.Context())
	if err != nil {
		s.internalError(w, "failed to read snapshot", err)
		return
	}

	if sinceVersion != nil && doc.Version <= *sinceVersion {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutSnapshot(w http.ResponseWriter, r *http.Request) {
	var payload snapshotPayload
	if !s.decodeBody(w, r, &payload) {
		return
	}
	if payload.AppState == nil || payload.Playlists == nil ||
		payload.ProviderConfiguration == nil || payload.Settings == nil {
		respondError(w, http.StatusBadRequest, "bad_request",
			"snapshot body must carry app_state, playlists, provider_configuration and settings")
		return
	}

	doc, err := s.store.Replace(r.Context(), payload.ExpectedVersion, document.Contents{
		AppState:              payload.AppState,
		Playlists:             payload.Playlists,
		ProviderConfiguration: payload.ProviderConfiguration,
		Settings:              payload.Settings,
	})
	if err != nil {
		s.writeStoreError(w, "failed to write snapshot", err)
		return
	}

	s.broadcaster.Publish(notify.StateUpdated(document.NamespaceSnapshot, doc, payload.ClientID))
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetNamespace(w http.ResponseWriter, r *http.Request) {
	ns, err := document.ParseNamespace(chi.URLParam(r, "namespace"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	doc, err := s.store.Load(r.Context())
	if err != nil {
		s.internalError(w, "failed to read snapshot", err)
		return
	}

	respondJSON(w, http.StatusOK, updateResponse{
		Version:   doc.Version,
		UpdatedAt: doc.UpdatedAt,
		Namespace: ns,
		Data:      doc.NamespaceData(ns),
	})
}

func (s *Server) handlePutNamespace(w http.ResponseWriter, r *http.Request) {
	ns, err := document.ParseNamespace(chi.URLParam(r, "namespace"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	var payload namespacePayload
	if !s.decodeBody(w, r, &payload) {
		return
	}
	if payload.Data == nil {
		respondError(w, http.StatusBadRequest, "bad_request", "namespace body must carry data")
		return
	}

	doc, err := s.store.UpdateNamespace(r.Context(), ns, payload.ExpectedVersion, payload.Data)
	if err != nil {
		s.writeStoreError(w, "failed to update namespace", err)
		return
	}

	s.broadcaster.Publish(notify.StateUpdated(ns, doc, payload.ClientID))
	respondJSON(w, http.StatusOK, updateResponse{
		Version:   doc.Version,
		UpdatedAt: doc.UpdatedAt,
		Namespace: ns,
		Data:      doc.NamespaceData(ns),
	})
}

// decodeBody decodes a JSON request body, writing the error response itself
// when decoding fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "bad_request", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeStoreError maps a store failure to the wire: conflicts become 409 with
// both versions, everything else is an opaque internal error.
func (s *Server) writeStoreError(w http.ResponseWriter, message string, err error) {
	var conflict *document.ConflictError
	if errors.As(err, &conflict) {
		respondConflict(w, conflict.Error(), conflict.Expected, conflict.Actual)
		return
	}
	s.internalError(w, message, err)
}

func (s *Server) internalError(w http.ResponseWriter, message string, err error) {
	s.logger.Error(message, zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", message)
}
