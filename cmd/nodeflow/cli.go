package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/smallnest/nodeflow/config"
	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/flow"
	"github.com/smallnest/nodeflow/graph"
	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/nodes"
	"github.com/smallnest/nodeflow/transport/sse"
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

const usage = `nodeflow - run node graphs described in JSON.

Usage:
  nodeflow run [options] FLOW.json     run a graph and print its events
  nodeflow graph [options] FLOW.json   print the graph as mermaid, dot or ascii
  nodeflow serve [options]             serve runs over HTTP with SSE streams
  nodeflow kinds                       list the registered node kinds

Configuration is read from NODEFLOW_* environment variables and .env.
`

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return &ExitError{Code: 2}
	}

	switch args[0] {
	case "run":
		return runFlow(args[1:], stdin, stdout, stderr)
	case "graph":
		return drawFlow(args[1:], stdout, stderr)
	case "serve":
		return serve(args[1:], stderr)
	case "kinds":
		for _, k := range nodes.NewRegistry().Kinds() {
			fmt.Fprintln(stdout, k)
		}
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	fmt.Fprint(stderr, usage)
	return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q", args[0])}
}

// inputFlags collects repeated -input name=value flags. Values are JSON when
// they parse as JSON and plain strings otherwise.
type inputFlags node.Values

func (f inputFlags) String() string { return fmt.Sprint(len(f)) }

func (f inputFlags) Set(s string) error {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("input %q must be name=value", s)
	}
	f[name] = parseValue(raw)
	return nil
}

func parseValue(raw string) data.Data {
	if d, err := data.FromJSON([]byte(raw)); err == nil {
		return d
	}
	return data.Text(raw)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return &ExitError{Code: 0}
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return nil
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

// readFlow loads and checks the graph at path. Graphs that parse but cannot
// be built are reported as *graph.GraphError.
func readFlow(path string) (*node.Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := flow.Parse(b)
	if err != nil {
		return nil, err
	}
	g, err := flow.Build(d, nodes.NewRegistry())
	if err != nil {
		return nil, &graph.GraphError{Graph: d.Name, Problems: []error{err}}
	}
	if err := graph.Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

func runFlow(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	inputs := inputFlags{}
	fs.Var(inputs, "input", "Run input as name=value. Repeatable.")
	envFile := fs.String("env", "", "Load configuration from this .env file.")
	resume := fs.String("resume", "", "Reuse stored results of this run id.")
	jsonOut := fs.Bool("json", false, "Print events as SSE frames instead of styled text.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return &ExitError{Code: 2, Message: "run expects exactly one FLOW.json"}
	}

	cfg, err := loadConfig(*envFile)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	g, err := readFlow(fs.Arg(0))
	var graphErr *graph.GraphError
	if errors.As(err, &graphErr) {
		return reportGraphError(stdout, *jsonOut, graphErr)
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resultStore, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := cfg.ProcessorOptions(logger)
	if resultStore != nil {
		opts = append(opts, graph.WithResultStore(resultStore))
		if *resume != "" {
			prior, err := graph.LoadPriorResults(ctx, resultStore, *resume)
			if err != nil {
				return err
			}
			opts = append(opts, graph.WithPriorResults(prior))
		}
	} else if *resume != "" {
		return &ExitError{Code: 2, Message: "-resume needs a result store, set " + config.Prefix + "STORE"}
	}

	r := graph.NewProcessor(g, opts...).Run(ctx, node.Values(inputs), cfg.Settings())
	last, err := consume(r, stdin, stdout, *jsonOut)
	if err != nil {
		return err
	}
	switch last.Type {
	case graph.EventDone:
		return nil
	case graph.EventAbort, graph.EventGraphAbort:
		return &ExitError{Code: 130, Message: "run aborted"}
	}
	return fmt.Errorf("run %s failed: %w", r.ID(), last.Err)
}

// consume prints every event of r and answers requireInput events with lines
// read from in. End of input aborts the run.
func consume(r *graph.Run, in io.Reader, out io.Writer, raw bool) (graph.Event, error) {
	lines := bufio.NewScanner(in)
	renderer := newRenderer(out)
	var sw *sse.Writer
	if raw {
		sw = sse.NewWriter(out)
	}

	var last graph.Event
	for ev := range r.Events() {
		if sw != nil {
			if err := sw.WriteEvent(ev); err != nil {
				r.Abort()
				return last, err
			}
		} else {
			renderer.Render(ev)
		}
		if ev.RunID == r.ID() && ev.IsTerminal() {
			last = ev
		}
		if ev.Type == graph.EventRequireInput {
			askInput(r, ev, lines, renderer)
		}
	}
	if sw != nil {
		if err := sw.WriteDone(); err != nil {
			return last, err
		}
	}
	return last, nil
}

// reportGraphError prints a graph that could not be built the way a run
// would report it: a single graphError event.
func reportGraphError(out io.Writer, raw bool, err *graph.GraphError) error {
	ev := graph.Event{Type: graph.EventGraphError, Time: time.Now(), Err: err}
	if raw {
		if werr := sse.NewWriter(out).WriteGraphError(err); werr != nil {
			return werr
		}
	} else {
		newRenderer(out).Render(ev)
	}
	return &ExitError{Code: 1}
}

func askInput(r *graph.Run, ev graph.Event, lines *bufio.Scanner, renderer *renderer) {
	id := ev.NodeID()
	for {
		renderer.Prompt(id, ev.Ports)
		if !lines.Scan() {
			r.Abort()
			return
		}
		err := r.UserInput(id, parseValue(lines.Text()))
		if err == nil {
			return
		}
		renderer.Problem(err)
		if !errors.Is(err, graph.ErrInvalidInput) {
			return
		}
	}
}

func drawFlow(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("graph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "mermaid", "Output format: mermaid, dot or ascii.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return &ExitError{Code: 2, Message: "graph expects exactly one FLOW.json"}
	}

	g, err := readFlow(fs.Arg(0))
	if err != nil {
		return err
	}
	exp := graph.NewExporter(g)
	switch strings.ToLower(*format) {
	case "mermaid":
		fmt.Fprint(stdout, exp.DrawMermaid())
	case "dot":
		fmt.Fprint(stdout, exp.DrawDOT())
	case "ascii":
		fmt.Fprint(stdout, exp.DrawASCII())
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown format %q", *format)}
	}
	return nil
}

func serve(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "Load configuration from this .env file.")
	addr := fs.String("addr", "", "Listen address. Overrides "+config.Prefix+"ADDR.")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, err := loadConfig(*envFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	logger := cfg.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resultStore, closeStore, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := cfg.ProcessorOptions(logger)
	if resultStore != nil {
		opts = append(opts, graph.WithResultStore(resultStore))
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: sse.NewServer(nodes.NewRegistry(),
			sse.WithProcessorOptions(opts...),
			sse.WithSettings(cfg.Settings()),
			sse.WithLogger(logger),
			sse.WithRetention(cfg.Server.Retention),
		),
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	logger.Info("listening on %s", cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
