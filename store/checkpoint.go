// Package store persists the outputs of finished nodes so a run's results
// can be queried after it settles and fed back into a later run.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/smallnest/nodeflow/data"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is the persisted outputs of one node in one run.
type Record struct {
	ID        string               `json:"id" msgpack:"id"`
	RunID     string               `json:"run_id" msgpack:"run_id"`
	NodeID    string               `json:"node_id" msgpack:"node_id"`
	Outputs   map[string]data.Data `json:"outputs" msgpack:"outputs"`
	Metadata  map[string]any       `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	Timestamp time.Time            `json:"timestamp" msgpack:"timestamp"`
	Version   int                  `json:"version" msgpack:"version"`
}

// ResultStore defines the interface for result persistence
type ResultStore interface {
	// Save stores a record, replacing one with the same id
	Save(ctx context.Context, record *Record) error

	// Load retrieves a record by ID
	Load(ctx context.Context, recordID string) (*Record, error)

	// List returns all records of a run, oldest first
	List(ctx context.Context, runID string) ([]*Record, error)

	// Delete removes a record
	Delete(ctx context.Context, recordID string) error

	// Clear removes all records of a run
	Clear(ctx context.Context, runID string) error
}

// Latest reduces records to the newest outputs per node.
func Latest(records []*Record) map[string]map[string]data.Data {
	newest := make(map[string]*Record)
	for _, r := range records {
		cur, ok := newest[r.NodeID]
		if !ok || r.Version > cur.Version || (r.Version == cur.Version && r.Timestamp.After(cur.Timestamp)) {
			newest[r.NodeID] = r
		}
	}
	out := make(map[string]map[string]data.Data, len(newest))
	for id, r := range newest {
		out[id] = r.Outputs
	}
	return out
}
