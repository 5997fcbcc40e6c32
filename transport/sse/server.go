package sse

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/flow"
	"github.com/smallnest/nodeflow/graph"
	"github.com/smallnest/nodeflow/log"
	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/registry"
)

// RunRequest starts a run.
type RunRequest struct {
	Graph    json.RawMessage            `json:"graph"`
	Inputs   map[string]json.RawMessage `json:"inputs,omitempty"`
	Settings map[string]any             `json:"settings,omitempty"`
}

// InputRequest resumes a node waiting for input.
type InputRequest struct {
	NodeID string          `json:"nodeId"`
	Value  json.RawMessage `json:"value"`
}

// ResultsResponse is the body of GET /runs/{id}/results.
type ResultsResponse struct {
	RunID   string                     `json:"runId"`
	Results map[string]node.Values     `json:"results"`
	States  map[string]graph.NodeState `json:"states"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type entry struct {
	run *graph.Run
	g   *node.Graph
}

// Server exposes graph runs over HTTP:
//
//	POST   /runs                 start a run, respond with its event stream
//	POST   /runs/{id}/input      deliver userInput
//	POST   /runs/{id}/abort      abort the run
//	GET    /runs/{id}/results    results and node states
//	DELETE /runs/{id}            forget a settled run
//
// Settled runs are forgotten on their own once the retention period has
// passed since they settled.
type Server struct {
	reg       *registry.Registry
	opts      []graph.Option
	settings  node.Settings
	logger    log.Logger
	retention time.Duration
	mux       *http.ServeMux

	mu   sync.Mutex
	runs map[string]entry
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithProcessorOptions applies opts to every run.
func WithProcessorOptions(opts ...graph.Option) ServerOption {
	return func(s *Server) { s.opts = append(s.opts, opts...) }
}

// WithSettings sets base settings merged under each request's settings.
func WithSettings(settings node.Settings) ServerOption {
	return func(s *Server) { s.settings = settings }
}

// WithLogger sets the server logger.
func WithLogger(l log.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// DefaultRetention is how long settled runs stay queryable by default.
const DefaultRetention = 15 * time.Minute

// WithRetention sets how long a settled run stays queryable. Zero keeps runs
// until they are deleted.
func WithRetention(d time.Duration) ServerOption {
	return func(s *Server) { s.retention = d }
}

// NewServer creates a server building graphs through reg.
func NewServer(reg *registry.Registry, opts ...ServerOption) *Server {
	s := &Server{
		reg:       reg,
		logger:    log.GetDefaultLogger(),
		retention: DefaultRetention,
		runs:      make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("POST /runs", s.handleRun)
	s.mux.HandleFunc("POST /runs/{id}/input", s.handleInput)
	s.mux.HandleFunc("POST /runs/{id}/abort", s.handleAbort)
	s.mux.HandleFunc("GET /runs/{id}/results", s.handleResults)
	s.mux.HandleFunc("DELETE /runs/{id}", s.handleDelete)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run returns a run started by this server.
func (s *Server) Run(id string) (*graph.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.runs[id]
	return e.run, ok
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := flow.Parse(req.Graph)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	inputs := make(node.Values, len(req.Inputs))
	for key, raw := range req.Inputs {
		v, err := data.FromJSON(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		inputs[key] = v
	}
	settings := make(node.Settings, len(s.settings)+len(req.Settings))
	for k, v := range s.settings {
		settings[k] = v
	}
	for k, v := range req.Settings {
		settings[k] = v
	}

	g, err := flow.Build(d, s.reg)
	if err != nil {
		s.logger.Warn("graph %s could not be built: %v", d.Name, err)
		streamHeaders(w)
		w.WriteHeader(http.StatusOK)
		_ = NewWriter(w).WriteGraphError(&graph.GraphError{Graph: d.Name, Problems: []error{err}})
		return
	}

	run := graph.NewProcessor(g, s.opts...).Run(context.WithoutCancel(r.Context()), inputs, settings)
	s.track(run, g)
	s.logger.Info("run %s started for graph %s", run.ID(), g.Name)

	streamHeaders(w)
	w.Header().Set("X-Run-ID", run.ID())
	w.WriteHeader(http.StatusOK)

	if err := Stream(r.Context(), NewWriter(w), run); err != nil {
		s.logger.Warn("run %s: stream ended early: %v", run.ID(), err)
	}
}

// track registers run and schedules its removal once it has settled.
func (s *Server) track(run *graph.Run, g *node.Graph) {
	s.mu.Lock()
	s.runs[run.ID()] = entry{run: run, g: g}
	s.mu.Unlock()
	if s.retention <= 0 {
		return
	}
	go func() {
		<-run.Done()
		time.AfterFunc(s.retention, func() { s.forget(run.ID()) })
	}()
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.runs, id)
	s.mu.Unlock()
}

func streamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (entry, bool) {
	s.mu.Lock()
	e, ok := s.runs[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("run not found"))
	}
	return e, ok
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	v, err := data.FromJSON(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch err := e.run.UserInput(req.NodeID, v); {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
	case errors.Is(err, graph.ErrUnknownNode):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, graph.ErrNotAwaiting), errors.Is(err, graph.ErrRunFinished):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusBadRequest, err)
	}
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e.run.Abort()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	resp := ResultsResponse{
		RunID:   e.run.ID(),
		Results: e.run.Results(),
		States:  make(map[string]graph.NodeState, len(e.g.Nodes)),
	}
	for _, n := range e.g.Nodes {
		if st, ok := e.run.State(n.ID); ok {
			resp.States[n.ID] = st
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(w, r)
	if !ok {
		return
	}
	select {
	case <-e.run.Done():
	default:
		writeError(w, http.StatusConflict, errors.New("run is still active"))
		return
	}
	s.forget(e.run.ID())
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
