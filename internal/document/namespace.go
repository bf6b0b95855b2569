package document

import "fmt"

// Namespace identifies one of the four independently writable partitions of
// the sync document. The set is fixed at design time. NamespaceSnapshot is a
// sentinel used only in update events to mark a whole-document replace; it is
// never a valid target for a namespace-scoped read or write.
type Namespace string

const (
	NamespaceAppState              Namespace = "app_state"
	NamespacePlaylists             Namespace = "playlists"
	NamespaceProviderConfiguration Namespace = "provider_configuration"
	NamespaceSettings              Namespace = "settings"
	NamespaceSnapshot              Namespace = "snapshot"
)

// ParseNamespace maps a URL path segment to its Namespace. Path segments use
// hyphens while the wire/JSON representation uses underscores.
func ParseNamespace(value string) (Namespace, error) {
	switch value {
	case "app-state":
		return NamespaceAppState, nil
	case "playlists":
		return NamespacePlaylists, nil
	case "provider-configuration":
		return NamespaceProviderConfiguration, nil
	case "settings":
		return NamespaceSettings, nil
	default:
		return "", fmt.Errorf(
			"unsupported namespace %q. Supported: app-state, playlists, provider-configuration, settings",
			value,
		)
	}
}
