package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/log"
	"github.com/smallnest/nodeflow/node"
)

// invoke runs one node on its own goroutine and reports the outcome to the
// coordinator. It never touches run state directly.
func (r *Run) invoke(rn *RuntimeNode, inputs node.Values, ctrl *AbortController) {
	var (
		outputs node.Values
		err     error
	)
	defer func() {
		if p := recover(); p != nil {
			outputs, err = nil, fmt.Errorf("panic in node %s: %v", rn.Node.ID, p)
		}
		ctrl.Abort()
		r.box.push(nodeResult{rn: rn, outputs: outputs, err: err})
	}()

	switch rn.Node.Payload.Kind {
	case node.SubGraphPayload:
		outputs, err = r.runSubGraph(ctrl.Context(), rn, inputs)
	default:
		outputs, err = r.runLeaf(ctrl.Context(), rn, inputs)
	}
	if err != nil {
		return
	}
	if outputs, err = checkOutputs(rn.Node, outputs); err != nil {
		return
	}
	r.persist(rn, outputs)
}

func (r *Run) runLeaf(ctx context.Context, rn *RuntimeNode, inputs node.Values) (node.Values, error) {
	logger := log.WithPrefix(r.logger, "run "+r.id+": node "+rn.Node.ID+": ")
	pc := node.NewProcessContext(r.id, rn.Node.ID, r.settings, logger, func(msg string) {
		r.box.push(traceMsg{rn: rn, message: msg})
	})
	impl := withRetry(rn.Node.Payload.Impl, r.opts.Retry, func(attempt int, err error, delay time.Duration) {
		r.logger.Warn("run %s: node %s attempt %d failed: %v", r.id, rn.Node.ID, attempt, err)
		pc.Trace("attempt %d failed: %v; retrying in %s", attempt, err, delay)
	})
	return impl.Process(ctx, inputs, pc)
}

// runSubGraph executes the nested graph of rn as a child run. Its events are
// forwarded to this run except its own done, which becomes the node's
// nodeFinish. Outputs are the child's terminal results flattened to
// "<node>.<port>".
func (r *Run) runSubGraph(ctx context.Context, rn *RuntimeNode, inputs node.Values) (node.Values, error) {
	opts := r.opts
	opts.Prior = nil
	child := newRun(ctx, rn.Node.Payload.Graph, opts, inputs, r.settings, true)

	r.mu.Lock()
	r.children[rn.Node.ID] = child
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.children, rn.Node.ID)
		r.mu.Unlock()
	}()

	go child.loop()
	for ev := range child.Events() {
		if ev.Type == EventDone && ev.RunID == child.id {
			continue
		}
		r.box.push(forwarded{ev: ev})
	}

	terminal := child.terminal
	switch terminal.Type {
	case EventDone:
		if errs := child.failures(); len(errs) > 0 {
			return nil, fmt.Errorf("sub-graph %s: %w", rn.Node.ID, errors.Join(errs...))
		}
		out := make(node.Values)
		for id, values := range terminal.Results {
			for port, v := range values {
				out[id+"."+port] = v
			}
		}
		return out, nil
	case EventAbort, EventGraphAbort:
		return nil, ErrAborted
	default:
		return nil, fmt.Errorf("sub-graph %s: %w", rn.Node.ID, terminal.Err)
	}
}

// checkOutputs validates produced values and converts those on declared
// ports to the port's types.
func checkOutputs(n *node.Node, outputs node.Values) (node.Values, error) {
	checked := make(node.Values, len(outputs))
	for name, v := range outputs {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%w: port %s: %w", ErrInvalidOutput, name, err)
		}
		if p, ok := n.Output(name); ok {
			cv, err := data.Convert(v, p.Types)
			if err != nil {
				return nil, fmt.Errorf("%w: port %s: %w", ErrInvalidOutput, name, err)
			}
			v = cv
		}
		checked[name] = v
	}
	return checked, nil
}
