package node

import (
	"fmt"

	"github.com/smallnest/nodeflow/log"
)

// Settings is the shared, read-only configuration bag of a run: secrets,
// model handles, endpoint overrides.
type Settings map[string]any

// String returns the string setting key.
func (s Settings) String(key string) (string, bool) {
	v, ok := s[key].(string)
	return v, ok
}

// ProcessContext is what a node sees of the run executing it.
type ProcessContext struct {
	RunID    string
	NodeID   string
	Settings Settings
	Logger   log.Logger

	trace func(string)
}

// NewProcessContext builds a context for one node invocation. trace may be nil.
func NewProcessContext(runID, nodeID string, settings Settings, logger log.Logger, trace func(string)) *ProcessContext {
	if logger == nil {
		logger = &log.NoOpLogger{}
	}
	return &ProcessContext{
		RunID:    runID,
		NodeID:   nodeID,
		Settings: settings,
		Logger:   logger,
		trace:    trace,
	}
}

// Setting returns a value from the settings bag.
func (pc *ProcessContext) Setting(key string) (any, bool) {
	if pc == nil || pc.Settings == nil {
		return nil, false
	}
	v, ok := pc.Settings[key]
	return v, ok
}

// Trace emits a trace event on the run's event stream.
func (pc *ProcessContext) Trace(format string, args ...any) {
	if pc == nil || pc.trace == nil {
		return
	}
	pc.trace(fmt.Sprintf(format, args...))
}
