package graph

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/log"
	"github.com/smallnest/nodeflow/node"
)

// Processor executes a graph. One Processor may start any number of runs;
// each run owns its own runtime state.
type Processor struct {
	graph *node.Graph
	opts  Options
}

// NewProcessor creates a processor for g.
func NewProcessor(g *node.Graph, opts ...Option) *Processor {
	return &Processor{graph: g, opts: newOptions(opts)}
}

// Run starts executing the graph and returns immediately. Structural problems
// are reported as a graphError event on the returned run, not as an error.
//
// inputs supplies values to input nodes, keyed by node id or input name, and
// to unconnected ports of other nodes, keyed by node.PortKey. Cancelling ctx
// aborts the run.
func (p *Processor) Run(ctx context.Context, inputs node.Values, settings node.Settings) *Run {
	r := newRun(ctx, p.graph, p.opts, inputs, settings, false)
	go r.loop()
	return r
}

// Run is one execution of a graph.
//
// A single coordinator goroutine owns the dependency graph and is the only
// writer of node state and of the event channel. Node goroutines, nested
// runs and UserInput talk to it through an unbounded mailbox.
type Run struct {
	id       string
	graph    *node.Graph
	opts     Options
	inputs   node.Values
	settings node.Settings
	sub      bool
	logger   log.Logger

	controller *AbortController
	// nodeCtx parents every node controller. Fail-fast cancels it without
	// aborting the run itself.
	nodeCtx    context.Context
	nodeCancel context.CancelFunc

	events   chan Event
	box      *mailbox
	finished chan struct{}

	mu       sync.Mutex
	deps     *DependencyGraph
	awaiting map[string]bool // node id -> input already delivered
	children map[string]*Run
	settled  bool

	// Coordinator owned.
	ready      []*RuntimeNode
	running    int
	seq        int64
	aborted    bool
	fatal      error
	terminated bool
	terminal   Event
}

type nodeResult struct {
	rn      *RuntimeNode
	outputs node.Values
	err     error
}

type traceMsg struct {
	rn      *RuntimeNode
	message string
}

type forwarded struct {
	ev Event
}

type inputMsg struct {
	rn     *RuntimeNode
	values node.Values
}

func newRun(ctx context.Context, g *node.Graph, opts Options, inputs node.Values, settings node.Settings, sub bool) *Run {
	if ctx == nil {
		ctx = context.Background()
	}
	if inputs == nil {
		inputs = node.Values{}
	}
	controller := NewAbortController(ctx)
	nodeCtx, nodeCancel := context.WithCancel(controller.Context())

	return &Run{
		id:         uuid.NewString(),
		graph:      g,
		opts:       opts,
		inputs:     inputs,
		settings:   settings,
		sub:        sub,
		logger:     opts.Logger,
		controller: controller,
		nodeCtx:    nodeCtx,
		nodeCancel: nodeCancel,
		events:     make(chan Event, opts.EventBuffer),
		box:        newMailbox(),
		finished:   make(chan struct{}),
		awaiting:   make(map[string]bool),
		children:   make(map[string]*Run),
	}
}

// ID returns the unique id of the run.
func (r *Run) ID() string {
	return r.id
}

// Events returns the ordered event stream of the run. The channel is closed
// after the run's terminal event. The stream has a single reader and must be
// drained: the run does not make progress while the channel is full.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Controller returns the run's top-level abort controller. Every node
// controller is derived from it.
func (r *Run) Controller() *AbortController {
	return r.controller
}

// Abort cancels the run. Nodes not yet started are never scheduled and
// running nodes observe cancellation through their context.
func (r *Run) Abort() {
	r.controller.Abort()
}

// UserInput resumes a node that announced requireInput. For an input node
// value becomes its output. For any other node value fills its single missing
// port, or is an object keyed by port name when several ports are missing.
// Nodes waiting inside nested sub-graphs are addressed by their own id.
func (r *Run) UserInput(nodeID string, value data.Data) error {
	r.mu.Lock()
	if r.settled {
		r.mu.Unlock()
		return ErrRunFinished
	}
	if delivered, ok := r.awaiting[nodeID]; ok {
		defer r.mu.Unlock()
		if delivered {
			return fmt.Errorf("%w: %s already received input", ErrNotAwaiting, nodeID)
		}
		rn, _ := r.deps.Node(nodeID)
		values, err := bindInput(rn, value)
		if err != nil {
			return &NodeError{NodeID: nodeID, Err: err}
		}
		r.awaiting[nodeID] = true
		r.box.push(inputMsg{rn: rn, values: values})
		return nil
	}
	known := false
	if r.deps != nil {
		_, known = r.deps.Node(nodeID)
	}
	children := make([]*Run, 0, len(r.children))
	for _, c := range r.children {
		children = append(children, c)
	}
	r.mu.Unlock()

	for _, c := range children {
		err := c.UserInput(nodeID, value)
		if err == nil || !errors.Is(err, ErrUnknownNode) {
			return err
		}
	}
	if known {
		return fmt.Errorf("%w: %s", ErrNotAwaiting, nodeID)
	}
	return fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
}

// Results returns the outputs of every node completed so far.
func (r *Run) Results() map[string]node.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]node.Values)
	if r.deps == nil {
		return out
	}
	for _, rn := range r.deps.Nodes() {
		if rn.State == StateCompleted {
			out[rn.Node.ID] = maps.Clone(rn.LastResult)
		}
	}
	return out
}

// State returns the execution state of a node.
func (r *Run) State(nodeID string) (NodeState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deps == nil {
		return "", false
	}
	rn, ok := r.deps.Node(nodeID)
	if !ok {
		return "", false
	}
	return rn.State, true
}

// Wait drains the event stream and returns the run's terminal event.
func (r *Run) Wait(ctx context.Context) (Event, error) {
	for {
		select {
		case _, ok := <-r.events:
			if !ok {
				return r.terminal, nil
			}
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Done is closed once the run has settled and its stream is closed.
func (r *Run) Done() <-chan struct{} {
	return r.finished
}

func (r *Run) loop() {
	defer r.finish()

	r.emit(Event{Type: EventStart})
	r.logger.Info("run %s started: graph %q", r.id, graphName(r.graph))

	deps, err := buildDependencies(r.graph)
	if err != nil {
		r.logger.Error("run %s: %v", r.id, err)
		r.emit(Event{Type: EventGraphError, Err: err})
		return
	}
	r.mu.Lock()
	r.deps = deps
	r.mu.Unlock()

	r.applyPrior()
	for _, rn := range deps.Roots() {
		r.enqueue(rn)
	}
	r.dispatch()

	abortCh := r.controller.Done()
	for !r.idle() {
		select {
		case <-r.box.ready():
			for _, msg := range r.box.drain() {
				r.handle(msg)
			}
		case <-abortCh:
			abortCh = nil
			r.onAbort()
		}
		r.dispatch()
	}

	switch {
	case r.terminated:
	case r.fatal != nil:
		r.emit(Event{Type: EventError, Err: r.fatal})
	default:
		r.emit(Event{Type: EventDone, Results: r.terminalResults()})
	}
	r.logger.Info("run %s finished: %s", r.id, r.terminal.Type)
}

func (r *Run) finish() {
	r.mu.Lock()
	r.settled = true
	clear(r.awaiting)
	r.mu.Unlock()

	r.nodeCancel()
	close(r.events)
	close(r.finished)
}

// idle reports whether the run can settle: nothing runs, nothing can
// still be resumed and no abort is left unobserved.
func (r *Run) idle() bool {
	if r.running > 0 || len(r.ready) > 0 {
		return false
	}
	if !r.aborted && r.controller.Aborted() {
		return false
	}
	if r.aborted || r.fatal != nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.awaiting) == 0
}

func (r *Run) emit(e Event) {
	if r.terminated {
		return
	}
	r.seq++
	e.Seq = r.seq
	if e.RunID == "" {
		e.RunID = r.id
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.IsSubProcessor = e.IsSubProcessor || r.sub
	if e.RunID == r.id && e.IsTerminal() {
		r.terminated = true
		r.terminal = e
	}
	r.events <- e
}

func (r *Run) tracef(format string, args ...any) {
	if !r.opts.Trace {
		return
	}
	r.emit(Event{Type: EventTrace, Message: fmt.Sprintf(format, args...)})
}

func (r *Run) setState(rn *RuntimeNode, s NodeState) {
	r.mu.Lock()
	rn.State = s
	r.mu.Unlock()
}

func (r *Run) enqueue(rn *RuntimeNode) {
	if rn.queued || rn.State != StatePending {
		return
	}
	rn.queued = true
	r.ready = append(r.ready, rn)
	r.tracef("queued %s", rn.Node.ID)
}

func (r *Run) dispatch() {
	for len(r.ready) > 0 {
		rn := r.ready[0]
		r.ready = r.ready[1:]
		rn.queued = false
		if r.aborted || r.fatal != nil || r.controller.Aborted() || rn.State != StatePending {
			continue
		}
		r.start(rn)
	}
}

func (r *Run) start(rn *RuntimeNode) {
	if rn.Node.IsInput() {
		r.startInput(rn)
		return
	}
	inputs, missing, err := r.assemble(rn)
	if err != nil {
		r.announce(rn, inputs, false)
		r.fail(rn, err)
		return
	}
	if len(missing) > 0 {
		r.suspend(rn, missing)
		return
	}
	r.launch(rn, inputs)
}

func (r *Run) startInput(rn *RuntimeNode) {
	in := rn.Node.Payload.Impl.(node.InputNode)
	port := in.OutputPort()

	v, ok := r.inputs[rn.Node.ID]
	if !ok && in.InputName() != "" {
		v, ok = r.inputs[in.InputName()]
	}
	if !ok {
		if p, found := rn.Node.Output(port); found && p.Default != nil {
			v, ok = *p.Default, true
		}
	}
	if !ok {
		r.suspend(rn, nil)
		return
	}

	values, err := bindInput(rn, v)
	r.announce(rn, nil, false)
	if err != nil {
		r.fail(rn, err)
		return
	}
	r.persist(rn, values)
	r.complete(rn, values, false)
}

// assemble collects the inputs of rn. Connected ports read the last result
// of their upstream port; unconnected ports fall back to values bound by
// userInput, run inputs, then declared defaults. Required ports left without
// a value are returned as missing.
func (r *Run) assemble(rn *RuntimeNode) (node.Values, []string, error) {
	inputs := make(node.Values, len(rn.Node.Inputs))
	var missing []string

	for _, p := range rn.Node.Inputs {
		if c, ok := rn.incoming[p.Name]; ok {
			up, _ := r.deps.Node(c.FromNodeID)
			v, ok := up.LastResult[c.FromPortName]
			if !ok {
				if p.Default != nil {
					inputs[p.Name] = *p.Default
				} else if p.Required {
					return inputs, nil, fmt.Errorf("%w: port %s (%s)", ErrMissingInput, p.Name, c)
				}
				continue
			}
			cv, err := data.Convert(v, p.Types)
			if err != nil {
				return inputs, nil, fmt.Errorf("%w: port %s: %w", ErrInvalidInput, p.Name, err)
			}
			inputs[p.Name] = cv
			continue
		}

		if v, ok := rn.supplied[p.Name]; ok {
			inputs[p.Name] = v
			continue
		}
		if v, ok := r.inputs[node.PortKey(rn.Node.ID, p.Name)]; ok {
			cv, err := data.Convert(v, p.Types)
			if err != nil {
				return inputs, nil, fmt.Errorf("%w: port %s: %w", ErrInvalidInput, p.Name, err)
			}
			inputs[p.Name] = cv
			continue
		}
		if p.Default != nil {
			inputs[p.Name] = *p.Default
			continue
		}
		if p.Required {
			missing = append(missing, p.Name)
		}
	}
	return inputs, missing, nil
}

func (r *Run) suspend(rn *RuntimeNode, missing []string) {
	rn.suspended = true
	rn.missing = missing

	r.mu.Lock()
	r.awaiting[rn.Node.ID] = false
	r.mu.Unlock()

	r.logger.Debug("run %s: node %s awaits input %v", r.id, rn.Node.ID, missing)
	r.emit(Event{Type: EventRequireInput, Node: rn.Node, Ports: missing})
}

// announce emits nodeStart once per node.
func (r *Run) announce(rn *RuntimeNode, inputs node.Values, cached bool) {
	if rn.started {
		return
	}
	rn.started = true
	r.emit(Event{Type: EventNodeStart, Node: rn.Node, Inputs: inputs, Cached: cached})
}

func (r *Run) launch(rn *RuntimeNode, inputs node.Values) {
	r.setState(rn, StateRunning)
	r.running++
	ctrl := NewAbortController(r.nodeCtx)

	r.logger.Debug("run %s: starting node %s", r.id, rn.Node)
	r.announce(rn, inputs, false)
	r.emit(Event{Type: EventNewAbortController, Node: rn.Node, Controller: ctrl})

	go r.invoke(rn, inputs, ctrl)
}

func (r *Run) handle(msg any) {
	switch m := msg.(type) {
	case nodeResult:
		r.running--
		r.settle(m)
	case traceMsg:
		r.emit(Event{Type: EventTrace, Node: m.rn.Node, Message: m.message})
	case forwarded:
		r.emit(m.ev)
	case inputMsg:
		r.resume(m)
	}
}

func (r *Run) settle(m nodeResult) {
	rn := m.rn
	switch {
	case r.aborted:
		r.setState(rn, StateAborted)
		r.logger.Debug("run %s: node %s settled after abort", r.id, rn.Node.ID)
	case r.fatal != nil && m.err != nil:
		r.setState(rn, StateAborted)
	case m.err != nil:
		r.fail(rn, m.err)
	default:
		r.complete(rn, m.outputs, false)
	}
}

func (r *Run) resume(m inputMsg) {
	rn := m.rn
	r.mu.Lock()
	delete(r.awaiting, rn.Node.ID)
	r.mu.Unlock()

	if r.aborted || r.fatal != nil || rn.State != StatePending {
		return
	}
	rn.suspended = false
	r.tracef("resumed %s", rn.Node.ID)

	if rn.Node.IsInput() {
		r.announce(rn, nil, false)
		r.persist(rn, m.values)
		r.complete(rn, m.values, false)
		return
	}
	for name, v := range m.values {
		rn.supplied[name] = v
	}
	rn.missing = nil
	r.enqueue(rn)
}

func (r *Run) complete(rn *RuntimeNode, outputs node.Values, cached bool) {
	r.mu.Lock()
	rn.State = StateCompleted
	rn.LastResult = outputs
	r.mu.Unlock()

	r.emit(Event{Type: EventNodeFinish, Node: rn.Node, Outputs: outputs, Cached: cached})
	if r.aborted || r.fatal != nil {
		return
	}
	for _, d := range rn.Dependents {
		if d.State == StatePending && r.deps.IsReady(d) {
			r.enqueue(d)
		}
	}
}

func (r *Run) fail(rn *RuntimeNode, err error) {
	nerr := &NodeError{NodeID: rn.Node.ID, Err: err}
	r.mu.Lock()
	rn.State = StateFailed
	rn.Err = nerr
	r.mu.Unlock()

	r.logger.Warn("run %s: %v", r.id, nerr)
	r.emit(Event{Type: EventNodeError, Node: rn.Node, Err: nerr})

	if r.opts.FailFast {
		r.fatal = nerr
		r.nodeCancel()
		for _, other := range r.deps.Nodes() {
			if other.State == StatePending {
				r.exclude(other)
			}
		}
		return
	}
	for _, d := range r.deps.Downstream(rn) {
		if d.State == StatePending {
			r.exclude(d)
		}
	}
}

func (r *Run) exclude(rn *RuntimeNode) {
	r.mu.Lock()
	rn.State = StateExcluded
	delete(r.awaiting, rn.Node.ID)
	r.mu.Unlock()
	rn.suspended = false

	r.emit(Event{Type: EventNodeExcluded, Node: rn.Node})
}

func (r *Run) onAbort() {
	r.aborted = true
	r.mu.Lock()
	clear(r.awaiting)
	r.mu.Unlock()

	if r.fatal != nil {
		return
	}
	typ := EventAbort
	if r.sub {
		typ = EventGraphAbort
	}
	r.logger.Info("run %s aborted with %d node(s) in flight", r.id, r.running)
	r.emit(Event{Type: typ, Err: ErrAborted})
}

// applyPrior completes nodes restored from earlier results, in dependency
// order, without invoking them.
func (r *Run) applyPrior() {
	if len(r.opts.Prior) == 0 {
		return
	}
	for progress := true; progress; {
		progress = false
		for _, rn := range r.deps.Nodes() {
			outputs, ok := r.opts.Prior[rn.Node.ID]
			if !ok || rn.State != StatePending || !r.deps.IsReady(rn) {
				continue
			}
			r.announce(rn, nil, true)
			r.complete(rn, outputs, true)
			progress = true
		}
	}
}

// terminalResults collects the outputs of completed nodes without dependents.
func (r *Run) terminalResults() map[string]node.Values {
	results := make(map[string]node.Values)
	for _, rn := range r.deps.Nodes() {
		if rn.State == StateCompleted && len(rn.Dependents) == 0 {
			results[rn.Node.ID] = rn.LastResult
		}
	}
	return results
}

// failures returns the errors of failed nodes. Only valid once settled.
func (r *Run) failures() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deps == nil {
		return nil
	}
	var errs []error
	for _, rn := range r.deps.Nodes() {
		if rn.State == StateFailed {
			errs = append(errs, rn.Err)
		}
	}
	return errs
}

// bindInput converts a userInput value into the values it supplies to rn.
func bindInput(rn *RuntimeNode, value data.Data) (node.Values, error) {
	if rn.Node.IsInput() {
		port := rn.Node.Payload.Impl.(node.InputNode).OutputPort()
		p, _ := rn.Node.Output(port)
		v, err := data.Convert(value, p.Types)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return node.Values{port: v}, nil
	}

	if len(rn.missing) == 1 {
		p, _ := rn.Node.Input(rn.missing[0])
		v, err := data.Convert(value, p.Types)
		if err != nil {
			return nil, fmt.Errorf("%w: port %s: %w", ErrInvalidInput, p.Name, err)
		}
		return node.Values{p.Name: v}, nil
	}

	obj, ok := value.Value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %d ports missing, expected an object keyed by port name", ErrInvalidInput, len(rn.missing))
	}
	values := make(node.Values, len(rn.missing))
	for _, name := range rn.missing {
		raw, ok := obj[name]
		if !ok {
			continue
		}
		d, isData := raw.(data.Data)
		if !isData {
			d = data.Coerce(raw)
		}
		p, _ := rn.Node.Input(name)
		v, err := data.Convert(d, p.Types)
		if err != nil {
			return nil, fmt.Errorf("%w: port %s: %w", ErrInvalidInput, name, err)
		}
		values[name] = v
	}
	return values, nil
}

func graphName(g *node.Graph) string {
	if g == nil {
		return ""
	}
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}
