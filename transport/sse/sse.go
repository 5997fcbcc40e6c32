// Package sse streams run events as Server-Sent Events and exposes runs
// over HTTP.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smallnest/nodeflow/graph"
)

// DoneSentinel is written after the last event of a stream.
const DoneSentinel = "[DONE]"

// Encode frames ev as "event: <type>\ndata: <json>\n\n".
func Encode(ev graph.Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	out := make([]byte, 0, len(body)+len(ev.Type)+16)
	out = append(out, "event: "...)
	out = append(out, ev.Type...)
	out = append(out, "\ndata: "...)
	out = append(out, body...)
	out = append(out, "\n\n"...)
	return out, nil
}

// encodeOrReport frames ev, or an error frame naming the encoding failure
// so the client still learns that ev happened.
func encodeOrReport(ev graph.Event) ([]byte, error) {
	b, err := Encode(ev)
	if err == nil {
		return b, nil
	}
	return Encode(graph.Event{
		Type:           graph.EventError,
		RunID:          ev.RunID,
		Seq:            ev.Seq,
		Time:           ev.Time,
		Node:           ev.Node,
		IsSubProcessor: ev.IsSubProcessor,
		Err:            err,
	})
}

// Writer writes framed events, flushing after each one when the underlying
// writer supports it.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

func NewWriter(w io.Writer) *Writer {
	f, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: f}
}

// WriteEvent writes one event.
func (w *Writer) WriteEvent(ev graph.Event) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	return w.write(b)
}

// WriteGraphError reports a graph that could not be built as a run: a single
// graphError frame followed by the sentinel.
func (w *Writer) WriteGraphError(err error) error {
	if werr := w.WriteEvent(graph.Event{Type: graph.EventGraphError, Time: time.Now(), Err: err}); werr != nil {
		return werr
	}
	return w.WriteDone()
}

// WriteDone writes the end of stream sentinel.
func (w *Writer) WriteDone() error {
	return w.write([]byte("data: " + DoneSentinel + "\n\n"))
}

func (w *Writer) write(b []byte) error {
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

// Stream copies every event of run to w followed by the sentinel. Events
// that cannot be encoded are replaced by an error frame. When ctx ends first, the run is
// aborted and its remaining events are still drained.
func Stream(ctx context.Context, w *Writer, run *graph.Run) error {
	events := run.Events()
	var writeErr error
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if writeErr != nil {
					return writeErr
				}
				return w.WriteDone()
			}
			if writeErr != nil {
				continue
			}
			b, err := encodeOrReport(ev)
			if err != nil {
				continue
			}
			if err := w.write(b); err != nil {
				writeErr = err
				run.Abort()
			}
		case <-ctx.Done():
			run.Abort()
			ctx = context.Background()
		}
	}
}
