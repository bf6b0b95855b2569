package document

import (
	"context"
	"encoding/json"
)

// Store owns the single authoritative document and serializes every mutation
// through a compare-and-swap contract. Implementations must guarantee that the
// version check and the version increment happen as one atomic unit: two
// concurrent writers must never both succeed against the same observed
// version.
type Store interface {
	// Load returns the current document snapshot.
	Load(ctx context.Context) (*Document, error)

	// UpdateNamespace writes data into one namespace. When expected is
	// non-nil the write succeeds only if it matches the current version;
	// otherwise a *ConflictError carrying the actual version is returned.
	// On success the whole-document version advances by one.
	UpdateNamespace(ctx context.Context, ns Namespace, expected *int64, data json.RawMessage) (*Document, error)

	// Replace atomically swaps all four namespace payloads under the same
	// version contract as UpdateNamespace.
	Replace(ctx context.Context, expected *int64, contents Contents) (*Document, error)
}

// writeAllowed is the conflict-resolution rule shared by store
// implementations: a write proceeds when the caller holds no expectation or
// its expectation matches the current version. PostgresStore pushes the same
// rule into the conditional UPDATE so the database enforces it atomically.
func writeAllowed(expected *int64, current int64) bool {
	return expected == nil || *expected == current
}
