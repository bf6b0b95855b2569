package document

import (
	"encoding/json"
	"time"
)

// Document is the single versioned record of truth. Version advances by
// exactly one on every successful write, whether the write touched one
// namespace or replaced all four.
type Document struct {
	Version               int64           `json:"version"`
	UpdatedAt             time.Time       `json:"updated_at"`
	AppState              json.RawMessage `json:"app_state"`
	Playlists             json.RawMessage `json:"playlists"`
	ProviderConfiguration json.RawMessage `json:"provider_configuration"`
	Settings              json.RawMessage `json:"settings"`
}

// Contents holds the four namespace payloads of a whole-document write.
type Contents struct {
	AppState              json.RawMessage `json:"app_state"`
	Playlists             json.RawMessage `json:"playlists"`
	ProviderConfiguration json.RawMessage `json:"provider_configuration"`
	Settings              json.RawMessage `json:"settings"`
}

// NamespaceData returns the payload stored under the given namespace. For the
// snapshot sentinel it returns all four payloads as one JSON object.
func (d *Document) NamespaceData(ns Namespace) json.RawMessage {
	switch ns {
	case NamespaceAppState:
		return d.AppState
	case NamespacePlaylists:
		return d.Playlists
	case NamespaceProviderConfiguration:
		return d.ProviderConfiguration
	case NamespaceSettings:
		return d.Settings
	case NamespaceSnapshot:
		combined, err := json.Marshal(Contents{
			AppState:              d.AppState,
			Playlists:             d.Playlists,
			ProviderConfiguration: d.ProviderConfiguration,
			Settings:              d.Settings,
		})
		if err != nil {
			return nil
		}
		return combined
	default:
		return nil
	}
}
