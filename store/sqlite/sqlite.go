// Package sqlite stores node results in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/nodeflow/store"
)

// SqliteResultStore implements store.ResultStore using SQLite
type SqliteResultStore struct {
	db        *sql.DB
	tableName string
}

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "node_results"
}

// NewSqliteResultStore opens the database and creates the table when missing.
func NewSqliteResultStore(opts SqliteOptions) (*SqliteResultStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "node_results"
	}

	s := &SqliteResultStore{db: db, tableName: tableName}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteResultStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			node_id TEXT NOT NULL,
			outputs TEXT NOT NULL,
			metadata TEXT,
			timestamp DATETIME NOT NULL,
			version INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteResultStore) Close() error {
	return s.db.Close()
}

func (s *SqliteResultStore) Save(ctx context.Context, record *store.Record) error {
	outputsJSON, err := json.Marshal(record.Outputs)
	if err != nil {
		return fmt.Errorf("failed to marshal outputs: %w", err)
	}
	var metadata sql.NullString
	if len(record.Metadata) > 0 {
		b, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, node_id, outputs, metadata, timestamp, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			node_id = excluded.node_id,
			outputs = excluded.outputs,
			metadata = excluded.metadata,
			timestamp = excluded.timestamp,
			version = excluded.version
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.RunID,
		record.NodeID,
		string(outputsJSON),
		metadata,
		record.Timestamp,
		record.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *SqliteResultStore) Load(ctx context.Context, recordID string) (*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_id, outputs, metadata, timestamp, version
		FROM %s
		WHERE id = ?
	`, s.tableName)

	record, err := scan(s.db.QueryRowContext(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, recordID)
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return record, nil
}

func (s *SqliteResultStore) List(ctx context.Context, runID string) ([]*store.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, run_id, node_id, outputs, metadata, timestamp, version
		FROM %s
		WHERE run_id = ?
		ORDER BY timestamp ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*store.Record
	for rows.Next() {
		record, err := scan(rows)
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

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*store.Record, error) {
	var (
		r        store.Record
		outputs  string
		metadata sql.NullString
	)
	if err := row.Scan(&r.ID, &r.RunID, &r.NodeID, &outputs, &metadata, &r.Timestamp, &r.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outputs), &r.Outputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outputs: %w", err)
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &r, nil
}

func (s *SqliteResultStore) Delete(ctx context.Context, recordID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, recordID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *SqliteResultStore) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}
