package document

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseNamespace(t *testing.T) {
	cases := map[string]Namespace{
		"app-state":              NamespaceAppState,
		"playlists":              NamespacePlaylists,
		"provider-configuration": NamespaceProviderConfiguration,
		"settings":               NamespaceSettings,
	}

	for input, want := range cases {
		got, err := ParseNamespace(input)
		if err != nil {
			t.Errorf("ParseNamespace(%q) returned error: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseNamespace(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseNamespaceRejectsUnknown(t *testing.T) {
	// Wire form uses underscores; the path form is hyphenated.
	for _, input := range []string{"app_state", "snapshot", "bogus", ""} {
		_, err := ParseNamespace(input)
		if err == nil {
			t.Errorf("ParseNamespace(%q) should fail", input)
			continue
		}
		if !strings.Contains(err.Error(), "unsupported namespace") {
			t.Errorf("ParseNamespace(%q) error %q should mention unsupported namespace", input, err)
		}
	}
}

func TestNamespaceDataSnapshotCombinesAllFour(t *testing.T) {
	doc := &Document{
		Version:               7,
		UpdatedAt:             time.Now().UTC(),
		AppState:              json.RawMessage(`{"state":"playing"}`),
		Playlists:             json.RawMessage(`[{"id":"p1"}]`),
		ProviderConfiguration: json.RawMessage(`{"jellyfin":{"base_url":"http://localhost"}}`),
		Settings:              json.RawMessage(`{"audio_normalization_enabled":true}`),
	}

	var combined map[string]json.RawMessage
	if err := json.Unmarshal(doc.NamespaceData(NamespaceSnapshot), &combined); err != nil {
		t.Fatalf("snapshot data should be a JSON object: %v", err)
	}

	for key, want := range map[string]string{
		"app_state":              `{"state":"playing"}`,
		"playlists":              `[{"id":"p1"}]`,
		"provider_configuration": `{"jellyfin":{"base_url":"http://localhost"}}`,
		"settings":               `{"audio_normalization_enabled":true}`,
	} {
		if string(combined[key]) != want {
			t.Errorf("snapshot data[%q] = %s, want %s", key, combined[key], want)
		}
	}
}
