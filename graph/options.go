package graph

import (
	"github.com/smallnest/nodeflow/log"
	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/store"
)

// DefaultEventBuffer is the capacity of a run's event channel.
const DefaultEventBuffer = 64

// Options configures a Processor.
type Options struct {
	// FailFast aborts all remaining work on the first node error instead of
	// excluding only the failed node's dependents.
	FailFast bool
	// EventBuffer is the capacity of the event channel.
	EventBuffer int
	Logger      log.Logger
	// Retry, when set, retries failing leaf nodes.
	Retry *RetryConfig
	// Trace enables scheduler trace events.
	Trace bool
	// Store persists the outputs of every finished node.
	Store store.ResultStore
	// Prior holds outputs of nodes that should not run again.
	Prior map[string]node.Values
}

// Option mutates Options.
type Option func(*Options)

// WithFailFast stops the whole run on the first node error.
func WithFailFast() Option {
	return func(o *Options) { o.FailFast = true }
}

// WithEventBuffer sets the capacity of the event channel.
func WithEventBuffer(n int) Option {
	return func(o *Options) { o.EventBuffer = n }
}

// WithLogger sets the logger used by the processor.
func WithLogger(l log.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithRetry retries failing leaf nodes according to cfg.
func WithRetry(cfg *RetryConfig) Option {
	return func(o *Options) { o.Retry = cfg }
}

// WithTrace enables trace events describing scheduling decisions.
func WithTrace() Option {
	return func(o *Options) { o.Trace = true }
}

// WithResultStore persists the outputs of every finished node.
func WithResultStore(s store.ResultStore) Option {
	return func(o *Options) { o.Store = s }
}

// WithPriorResults marks nodes as already completed with the given outputs.
// Those nodes are not invoked; their events carry Cached.
func WithPriorResults(prior map[string]node.Values) Option {
	return func(o *Options) { o.Prior = prior }
}

func newOptions(opts []Option) Options {
	o := Options{EventBuffer: DefaultEventBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	if o.EventBuffer < 0 {
		o.EventBuffer = 0
	}
	if o.Logger == nil {
		o.Logger = log.GetDefaultLogger()
	}
	return o
}
