package notify

import (
	"time"

	"github.com/neboman11/any-player-sync-server/internal/document"
)

// EventTypeStateUpdated is the event_type carried by every broadcast frame.
const EventTypeStateUpdated = "state_updated"

// Event describes one committed write. It is ephemeral: fanned out to the
// subscribers live at publish time, never persisted or replayed. Namespace is
// document.NamespaceSnapshot when a whole-document replace committed.
// SourceClientID echoes the writer's optional client_id so a subscriber can
// recognize its own writes.
type Event struct {
	EventType      string             `json:"event_type"`
	Namespace      document.Namespace `json:"namespace"`
	Version        int64              `json:"version"`
	UpdatedAt      time.Time          `json:"updated_at"`
	SourceClientID *string            `json:"source_client_id"`
}

// StateUpdated builds the event for a committed write.
func StateUpdated(ns document.Namespace, doc *document.Document, sourceClientID *string) Event {
	return Event{
		EventType:      EventTypeStateUpdated,
		Namespace:      ns,
		Version:        doc.Version,
		UpdatedAt:      doc.UpdatedAt,
		SourceClientID: sourceClientID,
	}
}
