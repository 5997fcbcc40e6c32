package nodes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
)

// Loader split modes.
const (
	SplitWhole      = "whole"
	SplitLines      = "lines"
	SplitParagraphs = "paragraphs"
)

// TextLoader reads a text file into documents. Paths are resolved against
// Root when it is set and may not leave it.
type TextLoader struct {
	Root string
	Mode string
	// Marker separates paragraphs. Defaults to a blank line.
	Marker string
}

// NewTextLoader builds a loader from args "root", "mode" and "marker".
func NewTextLoader(args map[string]any) (*TextLoader, error) {
	l := &TextLoader{
		Root:   argString(args, "root", ""),
		Mode:   argString(args, "mode", SplitWhole),
		Marker: argString(args, "marker", "\n\n"),
	}
	switch l.Mode {
	case SplitWhole, SplitLines, SplitParagraphs:
	default:
		return nil, fmt.Errorf("unknown loader mode %q", l.Mode)
	}
	return l, nil
}

func (l *TextLoader) Kind() (string, string) { return "loader", "text" }

func (l *TextLoader) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "path", Types: data.Types(data.String), Required: true}},
		[]node.PortDef{
			{Name: "text", Types: data.Types(data.String)},
			{Name: "documents", Types: data.Types(data.Context.Array())},
		}
}

func (l *TextLoader) resolve(path string) (string, error) {
	if l.Root == "" {
		return path, nil
	}
	full := filepath.Join(l.Root, path)
	rel, err := filepath.Rel(l.Root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside %s", path, l.Root)
	}
	return full, nil
}

func (l *TextLoader) Process(ctx context.Context, in node.Values, pc *node.ProcessContext) (node.Values, error) {
	path, _ := in["path"].AsString()
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	text := string(content)

	var parts []string
	switch l.Mode {
	case SplitLines:
		parts = strings.Split(text, "\n")
	case SplitParagraphs:
		parts = strings.Split(text, l.Marker)
	default:
		parts = []string{text}
	}

	docs := make([]any, 0, len(parts))
	for i, p := range parts {
		if l.Mode != SplitWhole {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
		}
		md := map[string]any{"source": path, "type": "text"}
		if l.Mode != SplitWhole {
			md["part"] = i
		}
		docs = append(docs, data.Document{PageContent: p, Metadata: md})
	}
	pc.Trace("loaded %d bytes from %s as %d documents", len(content), path, len(docs))
	return node.Values{
		"text":      data.Text(text),
		"documents": data.Data{Type: data.Context.Array(), Value: docs},
	}, nil
}
