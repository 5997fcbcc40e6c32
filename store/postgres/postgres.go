// Package postgres stores node results in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/nodeflow/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresResultStore implements store.ResultStore using PostgreSQL
type PostgresResultStore struct {
	pool      DBPool
	tableName string
}

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "node_results"
}

const defaultTable = "node_results"

// NewPostgresResultStore creates a new Postgres result store
func NewPostgresResultStore(ctx context.Context, opts PostgresOptions) (*PostgresResultStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresResultStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresResultStoreWithPool creates a new Postgres result store with an existing pool
// Useful for testing with mocks
func NewPostgresResultStoreWithPool(pool DBPool, tableName string) *PostgresResultStore {
	if tableName == "" {
		tableName = defaultTable
	}
	return &PostgresResultStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresResultStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			outputs JSONB NOT NULL,
			metadata JSONB,
			timestamp TIMESTAMPTZ NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresResultStore) Close() {
	s.pool.Close()
}

// Save stores a record
func (s *PostgresResultStore) Save(ctx context.Context, record *store.Record) error {
	outputsJSON, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, node_id, outputs, metadata, timestamp, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			node_id = EXCLUDED.node_id,
			outputs = EXCLUDED.outputs,
			metadata = EXCLUDED.metadata,
			timestamp = EXCLUDED.timestamp,
			version = EXCLUDED.version
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		record.ID,
		record.RunID,
		record.NodeID,
		outputsJSON,
		metadataJSON,
		record.Timestamp,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load retrieves a record by ID
func (s *PostgresResultStore) Load(ctx context.Context, recordID string) (*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_id, outputs, metadata, timestamp, version
		FROM %s
		WHERE id = $1
	`, s.tableName)

	record, err := scanRecord(s.pool.QueryRow(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, recordID)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return record, nil
}

// List returns all records of a run, oldest first
func (s *PostgresResultStore) List(ctx context.Context, runID string) ([]*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_id, outputs, metadata, timestamp, version
		FROM %s
		WHERE run_id = $1
		ORDER BY timestamp ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*store.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating record rows: %w", err)
	}
	return records, nil
}

func scanRecord(row pgx.Row) (*store.Record, error) {
	var (
		r            store.Record
		outputsJSON  []byte
		metadataJSON []byte
	)
	if err := row.Scan(&r.ID, &r.RunID, &r.NodeID, &outputsJSON, &metadataJSON, &r.Timestamp, &r.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(outputsJSON, &r.Outputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outputs: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &r, nil
}

// Delete removes a record
func (s *PostgresResultStore) Delete(ctx context.Context, recordID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, recordID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear removes all records of a run
func (s *PostgresResultStore) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}
