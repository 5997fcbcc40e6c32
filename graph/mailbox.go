package graph

import "sync"

// mailbox is an unbounded queue read by a run's coordinator. Pushing never
// blocks, so node goroutines and callers of UserInput cannot deadlock
// against a coordinator that is itself blocked emitting events.
type mailbox struct {
	mu    sync.Mutex
	items []any
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) push(msg any) {
	m.mu.Lock()
	m.items = append(m.items, msg)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// ready is signalled after at least one push since the last drain.
func (m *mailbox) ready() <-chan struct{} {
	return m.wake
}

func (m *mailbox) drain() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}
