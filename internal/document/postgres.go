package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the document in a single row (id = 1) of the
// sync_document table. Optimistic writes are expressed as one conditional
// UPDATE so the version check and the version increment are a single atomic
// statement; a stale expectation simply matches zero rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// EnsureSchema creates the sync_document table and seeds the single row with
// version 0 and empty namespace defaults. Safe to run on every startup; an
// existing document is never reset.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sync_document (
			id SMALLINT PRIMARY KEY,
			version BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			app_state JSONB NOT NULL,
			playlists JSONB NOT NULL,
			provider_configuration JSONB NOT NULL,
			settings JSONB NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("failed to create sync_document table: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sync_document (id, version, updated_at, app_state, playlists, provider_configuration, settings)
		VALUES (1, 0, NOW(), $1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		json.RawMessage(`{}`),
		json.RawMessage(`[]`),
		json.RawMessage(`{}`),
		json.RawMessage(`{}`),
	)
	if err != nil {
		return fmt.Errorf("failed to seed sync_document row: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx, `
		SELECT version, updated_at, app_state, playlists, provider_configuration, settings
		FROM sync_document
		WHERE id = 1`).Scan(
		&doc.Version,
		&doc.UpdatedAt,
		&doc.AppState,
		&doc.Playlists,
		&doc.ProviderConfiguration,
		&doc.Settings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return &doc, nil
}

// namespaceColumn maps a namespace to its column. The switch doubles as a
// whitelist so the column name can be spliced into SQL.
func namespaceColumn(ns Namespace) (string, error) {
	switch ns {
	case NamespaceAppState:
		return "app_state", nil
	case NamespacePlaylists:
		return "playlists", nil
	case NamespaceProviderConfiguration:
		return "provider_configuration", nil
	case NamespaceSettings:
		return "settings", nil
	default:
		return "", fmt.Errorf("namespace %q has no column", ns)
	}
}

func (s *PostgresStore) UpdateNamespace(ctx context.Context, ns Namespace, expected *int64, data json.RawMessage) (*Document, error) {
	column, err := namespaceColumn(ns)
	if err != nil {
		return nil, err
	}

	var (
		query = fmt.Sprintf(`
			UPDATE sync_document
			SET %s = $1, version = version + 1, updated_at = NOW()
			WHERE id = 1
			RETURNING version, updated_at, app_state, playlists, provider_configuration, settings`, column)
		args = []any{data}
	)
	if expected != nil {
		query = fmt.Sprintf(`
			UPDATE sync_document
			SET %s = $1, version = version + 1, updated_at = NOW()
			WHERE id = 1 AND version = $2
			RETURNING version, updated_at, app_state, playlists, provider_configuration, settings`, column)
		args = append(args, *expected)
	}

	return s.conditionalUpdate(ctx, query, args, expected)
}

func (s *PostgresStore) Replace(ctx context.Context, expected *int64, contents Contents) (*Document, error) {
	query := `
		UPDATE sync_document
		SET app_state = $1, playlists = $2, provider_configuration = $3, settings = $4,
		    version = version + 1, updated_at = NOW()
		WHERE id = 1
		RETURNING version, updated_at, app_state, playlists, provider_configuration, settings`
	args := []any{contents.AppState, contents.Playlists, contents.ProviderConfiguration, contents.Settings}
	if expected != nil {
		query = `
		UPDATE sync_document
		SET app_state = $1, playlists = $2, provider_configuration = $3, settings = $4,
		    version = version + 1, updated_at = NOW()
		WHERE id = 1 AND version = $5
		RETURNING version, updated_at, app_state, playlists, provider_configuration, settings`
		args = append(args, *expected)
	}

	return s.conditionalUpdate(ctx, query, args, expected)
}

// conditionalUpdate runs a conditional UPDATE ... RETURNING and maps a
// zero-row match to a ConflictError carrying the version that actually won.
func (s *PostgresStore) conditionalUpdate(ctx context.Context, query string, args []any, expected *int64) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&doc.Version,
		&doc.UpdatedAt,
		&doc.AppState,
		&doc.Playlists,
		&doc.ProviderConfiguration,
		&doc.Settings,
	)
	if errors.Is(err, pgx.ErrNoRows) && expected != nil {
		current, loadErr := s.Load(ctx)
		if loadErr != nil {
			return nil, fmt.Errorf("failed to read current version after conflict: %w", loadErr)
		}
		return nil, &ConflictError{Expected: *expected, Actual: current.Version}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return &doc, nil
}
