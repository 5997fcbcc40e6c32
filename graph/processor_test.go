package graph

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Chain(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("chain").
		AddNode(stubNode("prompt", upper{}), stubNode("model", upper{})).
		Connect("prompt", "out", "model", "in")

	run := NewProcessor(g, quiet()).Run(context.Background(), node.Values{
		node.PortKey("prompt", "in"): data.Text("hello"),
	}, nil)
	events := drain(t, run)

	want := []EventType{EventNodeStart, EventNodeFinish, EventNodeStart, EventNodeFinish, EventDone}
	if diff := cmp.Diff(want, eventTypes(lifecycle(events))); diff != "" {
		t.Errorf("event order mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, EventStart, events[0].Type)
	last := events[len(events)-1]
	require.Equal(t, EventDone, last.Type)
	assert.Equal(t, data.Text("HELLO"), last.Results["model"]["out"])
	assert.NotContains(t, last.Results, "prompt")

	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, run.ID(), ev.RunID)
		assert.False(t, ev.IsSubProcessor)
	}

	state, ok := run.State("model")
	assert.True(t, ok)
	assert.Equal(t, StateCompleted, state)
	assert.Len(t, run.Results(), 2)
}

func TestRun_DependencyOrdering(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("diamond").
		AddNode(stubNode("a", upper{}), stubNode("b", upper{}), stubNode("c", upper{}), stubNode("d", fn(
			func(_ context.Context, inputs node.Values, _ *node.ProcessContext) (node.Values, error) {
				return node.Values{"out": inputs["in"]}, nil
			}))).
		Connect("a", "out", "b", "in").
		Connect("a", "out", "c", "in").
		Connect("b", "out", "d", "in")
	g.Nodes[3].Inputs = append(g.Nodes[3].Inputs, node.PortDef{Name: "other", Types: stringPort})
	g.Connect("c", "out", "d", "other")

	run := NewProcessor(g, quiet()).Run(context.Background(), node.Values{
		node.PortKey("a", "in"): data.Text("x"),
	}, nil)
	events := drain(t, run)

	assert.Equal(t, 4, count(events, EventNodeStart))
	assert.Equal(t, 4, count(events, EventNodeFinish))
	for _, c := range g.Connections {
		finished, ok := find(events, EventNodeFinish, c.FromNodeID)
		require.True(t, ok)
		started, ok := find(events, EventNodeStart, c.ToNodeID)
		require.True(t, ok)
		assert.Less(t, finished, started, "%s started before %s finished", c.ToNodeID, c.FromNodeID)
	}
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestRun_CycleReportsGraphError(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("loop").
		AddNode(stubNode("a", upper{}), stubNode("b", upper{})).
		Connect("a", "out", "b", "in").
		Connect("b", "out", "a", "in")

	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)
	events := drain(t, run)

	assert.Equal(t, []EventType{EventStart, EventGraphError}, eventTypes(events))
	assert.Zero(t, count(events, EventNodeStart))

	err := events[1].Err
	assert.ErrorIs(t, err, ErrCycle)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "loop", gerr.Graph)
	assert.Empty(t, run.Results())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	numbers := stubNode("nums", constant(data.Must(data.Number, 1.0)))
	numbers.Outputs[0].Types = data.Types(data.Blob)

	g := node.NewGraph("broken").
		AddNode(stubNode("a", upper{}), stubNode("a", upper{}), stubNode("b", upper{}), numbers).
		AddNode(&node.Node{ID: "empty"}).
		Connect("a", "out", "ghost", "in").
		Connect("a", "nope", "b", "in").
		Connect("a", "out", "b", "in").
		Connect("a", "out", "b", "in").
		Connect("nums", "out", "b", "in")

	err := Validate(g)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.ErrorIs(t, err, ErrDanglingConnection)
	assert.ErrorIs(t, err, ErrUnknownPort)
	assert.ErrorIs(t, err, ErrFanIn)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	incompatible := node.NewGraph("types").
		AddNode(numbers, stubNode("b", upper{})).
		Connect("nums", "out", "b", "in")
	assert.ErrorIs(t, Validate(incompatible), ErrIncompatiblePorts)

	assert.NoError(t, Validate(node.NewGraph("empty")))
	assert.Error(t, Validate(nil))
}

func TestRun_InputNode(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("ask").
		AddNode(inputNode("question"), stubNode("answer", upper{})).
		Connect("question", "value", "answer", "in")

	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)

	seen := until(t, run, EventRequireInput, "question")
	_, started := find(seen, EventNodeStart, "answer")
	assert.False(t, started, "dependent started before its input was supplied")
	assert.Empty(t, seen[len(seen)-1].Ports)

	state, _ := run.State("question")
	assert.Equal(t, StatePending, state)

	assert.ErrorIs(t, run.UserInput("answer", data.Text("x")), ErrNotAwaiting)
	assert.ErrorIs(t, run.UserInput("ghost", data.Text("x")), ErrUnknownNode)
	require.NoError(t, run.UserInput("question", data.Text("why")))
	err := run.UserInput("question", data.Text("again"))
	assert.True(t, errors.Is(err, ErrNotAwaiting) || errors.Is(err, ErrRunFinished), "got %v", err)

	rest := drain(t, run)
	want := []EventType{EventNodeStart, EventNodeFinish, EventNodeStart, EventNodeFinish, EventDone}
	assert.Equal(t, want, eventTypes(lifecycle(rest)))

	done := rest[len(rest)-1]
	assert.Equal(t, data.Text("WHY"), done.Results["answer"]["out"])
	assert.ErrorIs(t, run.UserInput("question", data.Text("late")), ErrRunFinished)
}

func TestRun_InputNodeFromRunInputs(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("ask").
		AddNode(inputNode("question"), stubNode("answer", upper{})).
		Connect("question", "value", "answer", "in")

	for _, key := range []string{"question", "question-name"} {
		run := NewProcessor(g, quiet()).Run(context.Background(), node.Values{key: data.Text("ok")}, nil)
		events := drain(t, run)
		assert.Zero(t, count(events, EventRequireInput), key)
		assert.Equal(t, data.Text("OK"), events[len(events)-1].Results["answer"]["out"], key)
	}
}

func TestRun_InputNodeRejectsUnconvertibleValue(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("ask").AddNode(inputNode("question"))
	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)
	until(t, run, EventRequireInput, "question")

	err := run.UserInput("question", data.Must(data.Blob, []byte("raw")))
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, run.UserInput("question", data.Must(data.Number, 3.0)))
	events := drain(t, run)
	assert.Equal(t, data.Text("3"), events[len(events)-1].Results["question"]["value"])
}

func TestRun_RequireInputForUnconnectedPort(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("ports").AddNode(stubNode("shout", upper{}))
	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)

	seen := until(t, run, EventRequireInput, "shout")
	assert.Equal(t, []string{"in"}, seen[len(seen)-1].Ports)

	require.NoError(t, run.UserInput("shout", data.Text("quiet")))
	events := drain(t, run)
	assert.Equal(t, data.Text("QUIET"), events[len(events)-1].Results["shout"]["out"])
}

func TestRun_FailureExcludesDependents(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("partial").
		AddNode(
			stubNode("bad", failing("boom")),
			stubNode("mid", upper{}),
			stubNode("leaf", upper{}),
			stubNode("other", constant(data.Text("fine"))),
		).
		Connect("bad", "out", "mid", "in").
		Connect("mid", "out", "leaf", "in")

	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)
	events := drain(t, run)

	i, ok := find(events, EventNodeError, "bad")
	require.True(t, ok)
	var nerr *NodeError
	require.ErrorAs(t, events[i].Err, &nerr)
	assert.Equal(t, "bad", nerr.NodeID)
	assert.EqualError(t, nerr.Err, "boom")

	for _, id := range []string{"mid", "leaf"} {
		_, excluded := find(events, EventNodeExcluded, id)
		assert.True(t, excluded, id)
		_, started := find(events, EventNodeStart, id)
		assert.False(t, started, id)
		state, _ := run.State(id)
		assert.Equal(t, StateExcluded, state)
	}

	done := events[len(events)-1]
	require.Equal(t, EventDone, done.Type)
	assert.Equal(t, map[string]node.Values{"other": {"out": data.Text("fine")}}, done.Results)
	assert.Equal(t, 1, count(events, EventDone))

	state, _ := run.State("bad")
	assert.Equal(t, StateFailed, state)
}

func TestRun_FailFast(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("fast").
		AddNode(stubNode("bad", failing("boom")), stubNode("slow", blocking()), stubNode("after", upper{})).
		Connect("slow", "out", "after", "in")

	run := NewProcessor(g, quiet(), WithFailFast()).Run(context.Background(), nil, nil)
	events := drain(t, run)

	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	assert.ErrorContains(t, last.Err, "boom")
	assert.Zero(t, count(events, EventDone))

	_, excluded := find(events, EventNodeExcluded, "after")
	assert.True(t, excluded)
	state, _ := run.State("slow")
	assert.Equal(t, StateAborted, state)
}

func TestRun_Abort(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("abort").
		AddNode(stubNode("first", upper{}), stubNode("slow", blocking()), stubNode("never", upper{})).
		Connect("first", "out", "slow", "in").
		Connect("slow", "out", "never", "in")

	run := NewProcessor(g, quiet()).Run(context.Background(), node.Values{
		node.PortKey("first", "in"): data.Text("kept"),
	}, nil)

	seen := until(t, run, EventNewAbortController, "slow")
	ctrl := seen[len(seen)-1].Controller
	require.NotNil(t, ctrl)
	assert.False(t, ctrl.Aborted())

	run.Abort()
	rest := drain(t, run)

	require.NotEmpty(t, rest)
	last := rest[len(rest)-1]
	assert.Equal(t, EventAbort, last.Type)
	assert.ErrorIs(t, last.Err, ErrAborted)
	assert.True(t, ctrl.Aborted())

	all := append(seen, rest...)
	_, started := find(all, EventNodeStart, "never")
	assert.False(t, started)
	assert.Zero(t, count(all, EventDone))

	state, _ := run.State("slow")
	assert.Equal(t, StateAborted, state)
	assert.Equal(t, data.Text("KEPT"), run.Results()["first"]["out"])
}

func TestRun_ContextCancellationAborts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	g := node.NewGraph("ctx").AddNode(inputNode("q"))
	run := NewProcessor(g, quiet()).Run(ctx, nil, nil)
	until(t, run, EventRequireInput, "q")

	cancel()
	ev, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventAbort, ev.Type)
	<-run.Done()
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := node.NewGraph("cancelled").
		AddNode(stubNode("a", upper{}), stubNode("b", upper{})).
		Connect("a", "out", "b", "in")
	run := NewProcessor(g, quiet()).Run(ctx, node.Values{node.PortKey("a", "in"): data.Text("x")}, nil)
	events := drain(t, run)

	assert.Equal(t, []EventType{EventStart, EventAbort}, eventTypes(events))
	assert.ErrorIs(t, events[1].Err, ErrAborted)
	for _, id := range []string{"a", "b"} {
		state, _ := run.State(id)
		assert.Equal(t, StatePending, state, id)
	}
}

func TestRun_SubGraphAbort(t *testing.T) {
	t.Parallel()

	inner := node.NewGraph("inner").
		AddNode(inputNode("topic"), stubNode("shout", upper{})).
		Connect("topic", "value", "shout", "in")
	g := node.NewGraph("outer").
		AddNode(&node.Node{ID: "sub", Payload: node.SubGraph(inner)}, stubNode("free", constant(data.Text("ok"))))

	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)
	seen := until(t, run, EventNewAbortController, "sub")
	ctrl := seen[len(seen)-1].Controller
	require.NotNil(t, ctrl)
	until(t, run, EventRequireInput, "topic")

	ctrl.Abort()
	rest := drain(t, run)

	i, ok := find(rest, EventGraphAbort, "")
	require.True(t, ok)
	assert.True(t, rest[i].IsSubProcessor)
	assert.NotEqual(t, run.ID(), rest[i].RunID)

	j, ok := find(rest, EventNodeError, "sub")
	require.True(t, ok)
	assert.Greater(t, j, i)
	assert.False(t, rest[j].IsSubProcessor)
	assert.ErrorIs(t, rest[j].Err, ErrAborted)

	last := rest[len(rest)-1]
	assert.Equal(t, EventDone, last.Type)
	assert.Equal(t, run.ID(), last.RunID)
	assert.Zero(t, count(rest, EventAbort))
	assert.Equal(t, data.Text("ok"), last.Results["free"]["out"])
}

func TestRun_SubGraph(t *testing.T) {
	t.Parallel()

	inner := node.NewGraph("inner").
		AddNode(inputNode("topic"), stubNode("shout", upper{})).
		Connect("topic", "value", "shout", "in")
	sub := &node.Node{
		ID:      "sub",
		Type:    "subgraph",
		Inputs:  []node.PortDef{{Name: "topic", Types: stringPort, Required: true}},
		Outputs: []node.PortDef{{Name: "shout.out", Types: stringPort}},
		Payload: node.SubGraph(inner),
	}
	g := node.NewGraph("outer").
		AddNode(stubNode("source", constant(data.Text("go"))), sub).
		Connect("source", "out", "sub", "topic")

	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)
	events := drain(t, run)

	want := []EventType{EventNodeStart, EventNodeFinish, EventNodeStart, EventNodeFinish, EventDone}
	assert.Equal(t, want, eventTypes(lifecycle(events)))

	var nested []Event
	for _, ev := range events {
		if ev.IsSubProcessor {
			nested = append(nested, ev)
		}
	}
	require.NotEmpty(t, nested)
	_, ok := find(nested, EventNodeFinish, "shout")
	assert.True(t, ok)
	assert.Zero(t, count(nested, EventDone))
	assert.NotEqual(t, run.ID(), nested[0].RunID)

	done := events[len(events)-1]
	assert.Equal(t, data.Text("GO"), done.Results["sub"]["shout.out"])
}

func TestRun_SubGraphUserInput(t *testing.T) {
	t.Parallel()

	inner := node.NewGraph("inner").
		AddNode(inputNode("topic"), stubNode("shout", upper{})).
		Connect("topic", "value", "shout", "in")
	g := node.NewGraph("outer").AddNode(&node.Node{ID: "sub", Payload: node.SubGraph(inner)})

	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)
	seen := until(t, run, EventRequireInput, "topic")
	assert.True(t, seen[len(seen)-1].IsSubProcessor)

	require.NoError(t, run.UserInput("topic", data.Text("nested")))
	ev, err := run.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, EventDone, ev.Type)
	assert.Equal(t, data.Text("NESTED"), ev.Results["sub"]["shout.out"])
}

func TestRun_SubGraphFailure(t *testing.T) {
	t.Parallel()

	inner := node.NewGraph("inner").AddNode(stubNode("bad", failing("inner boom")))
	g := node.NewGraph("outer").
		AddNode(&node.Node{ID: "sub", Payload: node.SubGraph(inner)}, stubNode("after", upper{}))
	g.Nodes[0].Outputs = []node.PortDef{{Name: "bad.out"}}
	g.Connect("sub", "bad.out", "after", "in")

	run := NewProcessor(g, quiet()).Run(context.Background(), nil, nil)
	events := drain(t, run)

	i, ok := find(events, EventNodeError, "bad")
	require.True(t, ok)
	assert.True(t, events[i].IsSubProcessor)

	i, ok = find(events, EventNodeError, "sub")
	require.True(t, ok)
	assert.False(t, events[i].IsSubProcessor)
	assert.ErrorContains(t, events[i].Err, "inner boom")

	_, excluded := find(events, EventNodeExcluded, "after")
	assert.True(t, excluded)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestRun_PanicBecomesNodeError(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("panic").AddNode(stubNode("p", fn(
		func(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
			panic("kaboom")
		})))

	events := drain(t, NewProcessor(g, quiet()).Run(context.Background(), nil, nil))
	i, ok := find(events, EventNodeError, "p")
	require.True(t, ok)
	assert.ErrorContains(t, events[i].Err, "kaboom")
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestRun_InvalidInputConversion(t *testing.T) {
	t.Parallel()

	list := stubNode("list", constant(data.Must(data.Number.Array(), []any{1.0, 2.0})))
	list.Outputs[0].Types = data.Types(data.Number.Array())
	g := node.NewGraph("convert").
		AddNode(list, stubNode("shout", upper{})).
		Connect("list", "out", "shout", "in")

	events := drain(t, NewProcessor(g, quiet()).Run(context.Background(), nil, nil))
	i, ok := find(events, EventNodeError, "shout")
	require.True(t, ok)
	assert.ErrorIs(t, events[i].Err, ErrInvalidInput)

	start, ok := find(events, EventNodeStart, "shout")
	require.True(t, ok)
	assert.Less(t, start, i)
}

func TestRun_Retry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	flaky := fn(func(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("transient")
		}
		return node.Values{"out": data.Text("ok")}, nil
	})
	g := node.NewGraph("retry").AddNode(stubNode("flaky", flaky))

	run := NewProcessor(g, quiet(), WithRetry(&RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})).
		Run(context.Background(), nil, nil)
	events := drain(t, run)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, count(events, EventTrace))
	i, ok := find(events, EventTrace, "flaky")
	require.True(t, ok)
	assert.Contains(t, events[i].Message, "attempt 1 failed: transient")
	assert.Equal(t, data.Text("ok"), events[len(events)-1].Results["flaky"]["out"])
}

func TestRun_NodeTrace(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("trace").AddNode(stubNode("t", fn(
		func(_ context.Context, _ node.Values, pc *node.ProcessContext) (node.Values, error) {
			pc.Trace("working on %s", pc.NodeID)
			return nil, nil
		})))

	events := drain(t, NewProcessor(g, quiet()).Run(context.Background(), nil, nil))
	i, ok := find(events, EventTrace, "t")
	require.True(t, ok)
	assert.Equal(t, "working on t", events[i].Message)

	traced := drain(t, NewProcessor(g, quiet(), WithTrace()).Run(context.Background(), nil, nil))
	assert.Greater(t, count(traced, EventTrace), 1)
}

func TestRun_ResultStoreAndPriorResults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewMemoryResultStore()

	var calls atomic.Int32
	counted := fn(func(context.Context, node.Values, *node.ProcessContext) (node.Values, error) {
		calls.Add(1)
		return node.Values{"out": data.Text("first")}, nil
	})
	g := node.NewGraph("resume").
		AddNode(stubNode("a", counted), stubNode("b", upper{})).
		Connect("a", "out", "b", "in")

	run := NewProcessor(g, quiet(), WithResultStore(s)).Run(ctx, nil, nil)
	drain(t, run)
	require.Equal(t, int32(1), calls.Load())

	prior, err := LoadPriorResults(ctx, s, run.ID())
	require.NoError(t, err)
	assert.Equal(t, data.Text("first"), prior["a"]["out"])
	assert.Equal(t, data.Text("FIRST"), prior["b"]["out"])

	delete(prior, "b")
	again := NewProcessor(g, quiet(), WithPriorResults(prior)).Run(ctx, nil, nil)
	events := drain(t, again)

	assert.Equal(t, int32(1), calls.Load(), "cached node ran again")
	i, ok := find(events, EventNodeFinish, "a")
	require.True(t, ok)
	assert.True(t, events[i].Cached)
	j, ok := find(events, EventNodeFinish, "b")
	require.True(t, ok)
	assert.False(t, events[j].Cached)
	assert.Equal(t, data.Text("FIRST"), events[len(events)-1].Results["b"]["out"])
}

func TestRun_ResumeRestoresInputNodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewMemoryResultStore()
	g := node.NewGraph("ask").
		AddNode(inputNode("question"), stubNode("answer", upper{})).
		Connect("question", "value", "answer", "in")

	run := NewProcessor(g, quiet(), WithResultStore(s)).Run(ctx, nil, nil)
	until(t, run, EventRequireInput, "question")
	require.NoError(t, run.UserInput("question", data.Text("why")))
	drain(t, run)

	prior, err := LoadPriorResults(ctx, s, run.ID())
	require.NoError(t, err)
	assert.Equal(t, data.Text("why"), prior["question"]["value"])

	delete(prior, "answer")
	events := drain(t, NewProcessor(g, quiet(), WithPriorResults(prior)).Run(ctx, nil, nil))
	assert.Zero(t, count(events, EventRequireInput))
	assert.Equal(t, data.Text("WHY"), events[len(events)-1].Results["answer"]["out"])
}

func TestRun_OutputValidation(t *testing.T) {
	t.Parallel()

	bad := stubNode("bad", constant(data.Data{Type: data.Number, Value: "nan"}))
	events := drain(t, NewProcessor(node.NewGraph("out").AddNode(bad), quiet()).Run(context.Background(), nil, nil))
	i, ok := find(events, EventNodeError, "bad")
	require.True(t, ok)
	assert.ErrorIs(t, events[i].Err, ErrInvalidOutput)

	inf := stubNode("inf", constant(data.Data{Type: data.Number, Value: math.Inf(1)}))
	events = drain(t, NewProcessor(node.NewGraph("out").AddNode(inf), quiet()).Run(context.Background(), nil, nil))
	i, ok = find(events, EventNodeError, "inf")
	require.True(t, ok)
	assert.ErrorIs(t, events[i].Err, ErrInvalidOutput)
	_, finished := find(events, EventNodeFinish, "inf")
	assert.False(t, finished)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	t.Parallel()

	g := node.NewGraph("shared").AddNode(stubNode("s", upper{}))
	p := NewProcessor(g, quiet())

	a := p.Run(context.Background(), node.Values{node.PortKey("s", "in"): data.Text("a")}, nil)
	b := p.Run(context.Background(), node.Values{node.PortKey("s", "in"): data.Text("b")}, nil)

	ea, err := a.Wait(context.Background())
	require.NoError(t, err)
	eb, err := b.Wait(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, data.Text("A"), ea.Results["s"]["out"])
	assert.Equal(t, data.Text("B"), eb.Results["s"]["out"])
}
