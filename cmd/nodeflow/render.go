package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/smallnest/nodeflow/graph"
	"github.com/smallnest/nodeflow/node"
)

// renderer prints events as one styled line each. Colors are dropped when out
// is not a terminal.
type renderer struct {
	out io.Writer

	run     lipgloss.Style
	start   lipgloss.Style
	finish  lipgloss.Style
	failure lipgloss.Style
	muted   lipgloss.Style
	ask     lipgloss.Style
}

func newRenderer(out io.Writer) *renderer {
	r := lipgloss.NewRenderer(out)
	return &renderer{
		out:     out,
		run:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		start:   r.NewStyle().Foreground(lipgloss.Color("14")),
		finish:  r.NewStyle().Foreground(lipgloss.Color("10")),
		failure: r.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		muted:   r.NewStyle().Faint(true),
		ask:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
	}
}

func (r *renderer) Render(ev graph.Event) {
	indent := ""
	if ev.IsSubProcessor {
		indent = "  "
	}
	line := r.line(ev)
	if line == "" {
		return
	}
	fmt.Fprintln(r.out, indent+line)
}

func (r *renderer) line(ev graph.Event) string {
	id := ev.NodeID()
	switch ev.Type {
	case graph.EventStart:
		return r.run.Render("run " + ev.RunID + " started")
	case graph.EventNodeStart:
		s := r.start.Render("> " + id)
		if ev.Cached {
			s += r.muted.Render(" (cached)")
		}
		return s
	case graph.EventNodeFinish:
		return r.finish.Render("ok "+id) + " " + r.muted.Render(summarize(ev.Outputs))
	case graph.EventNodeError:
		return r.failure.Render("x "+id) + " " + errText(ev.Err)
	case graph.EventNodeExcluded:
		return r.muted.Render("- " + id + " excluded")
	case graph.EventRequireInput:
		return r.ask.Render("? " + id + " awaits input")
	case graph.EventTrace:
		return r.muted.Render("  " + ev.Message)
	case graph.EventDone:
		var sb strings.Builder
		sb.WriteString(r.run.Render("done"))
		for _, id := range sortedKeys(ev.Results) {
			sb.WriteString("\n  " + r.finish.Render(id) + " " + summarize(ev.Results[id]))
		}
		return sb.String()
	case graph.EventAbort, graph.EventGraphAbort:
		return r.failure.Render("aborted")
	case graph.EventGraphError, graph.EventError:
		return r.failure.Render("error") + " " + errText(ev.Err)
	}
	return ""
}

// Prompt asks for the value of a waiting node.
func (r *renderer) Prompt(nodeID string, ports []string) {
	label := nodeID
	if len(ports) > 0 {
		label += " [" + strings.Join(ports, ", ") + "]"
	}
	fmt.Fprint(r.out, r.ask.Render(label+"> "))
}

func (r *renderer) Problem(err error) {
	fmt.Fprintln(r.out, r.failure.Render("! ")+err.Error())
}

func summarize(values node.Values) string {
	if len(values) == 0 {
		return "{}"
	}
	plain := make(map[string]any, len(values))
	for port, v := range values {
		plain[port] = v.Value
	}
	b, err := json.Marshal(plain)
	if err != nil {
		return fmt.Sprint(plain)
	}
	s := string(b)
	if len(s) > 200 {
		s = s[:197] + "..."
	}
	return s
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sortedKeys(m map[string]node.Values) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
