package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/store"
)

// persist saves the outputs of a finished node. A failing store never fails
// the node; the problem is logged and traced instead.
func (r *Run) persist(rn *RuntimeNode, outputs node.Values) {
	if r.opts.Store == nil {
		return
	}
	record := &store.Record{
		ID:        uuid.NewString(),
		RunID:     r.id,
		NodeID:    rn.Node.ID,
		Outputs:   outputs,
		Metadata:  map[string]any{"type": rn.Node.Type, "subType": rn.Node.SubType},
		Timestamp: time.Now(),
		Version:   1,
	}
	// Results of nodes that finished while the run was being aborted are still kept.
	ctx := context.WithoutCancel(r.controller.Context())
	if err := r.opts.Store.Save(ctx, record); err != nil {
		r.logger.Warn("run %s: failed to save result of node %s: %v", r.id, rn.Node.ID, err)
		r.box.push(traceMsg{rn: rn, message: fmt.Sprintf("result not saved: %v", err)})
	}
}

// LoadPriorResults reads the newest stored outputs of every node of runID,
// ready to be passed to WithPriorResults.
func LoadPriorResults(ctx context.Context, s store.ResultStore, runID string) (map[string]node.Values, error) {
	records, err := s.List(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results of run %s: %w", runID, err)
	}
	return store.Latest(records), nil
}

// Collect drains a run and returns every event it emitted.
func Collect(r *Run) []Event {
	var events []Event
	for ev := range r.Events() {
		events = append(events, ev)
	}
	return events
}
