package graph

import "context"

// AbortController is a cancellable token. Aborting a controller cancels
// every controller derived from it.
type AbortController struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAbortController derives a controller from parent. Cancelling parent
// aborts the controller.
func NewAbortController(parent context.Context) *AbortController {
	ctx, cancel := context.WithCancel(parent)
	return &AbortController{ctx: ctx, cancel: cancel}
}

// Abort cancels the controller. Calling it more than once is harmless.
func (c *AbortController) Abort() {
	c.cancel()
}

// Aborted reports whether the controller has been aborted.
func (c *AbortController) Aborted() bool {
	return c.ctx.Err() != nil
}

// OnAbort runs fn in its own goroutine once the controller is aborted. The
// returned stop function unregisters fn and reports whether it did so
// before fn ran.
func (c *AbortController) OnAbort(fn func()) (stop func() bool) {
	return context.AfterFunc(c.ctx, fn)
}

// Done is closed when the controller is aborted.
func (c *AbortController) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Context returns the context observed by work scoped to this controller.
func (c *AbortController) Context() context.Context {
	return c.ctx
}
