package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
)

// Markdown renders markdown to sanitized HTML.
type Markdown struct {
	policy *bluemonday.Policy
}

// NewMarkdown builds a markdown renderer. With args "strict" set, the
// output keeps no markup at all.
func NewMarkdown(args map[string]any) *Markdown {
	policy := bluemonday.UGCPolicy()
	if argBool(args, "strict") {
		policy = bluemonday.StrictPolicy()
	}
	return &Markdown{policy: policy}
}

func (m *Markdown) Kind() (string, string) { return "format", "markdown" }

func (m *Markdown) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "markdown", Types: data.Types(data.String), Required: true}},
		[]node.PortDef{{Name: "html", Types: data.Types(data.String)}}
}

func (m *Markdown) Process(_ context.Context, in node.Values, _ *node.ProcessContext) (node.Values, error) {
	src, _ := in["markdown"].AsString()

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(src))
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	out := m.policy.SanitizeBytes(markdown.Render(doc, renderer))

	return node.Values{"html": data.Text(string(out))}, nil
}

// HTMLText extracts readable text from HTML, optionally limited to the
// elements matching a CSS selector.
type HTMLText struct {
	Selector string
}

func (h *HTMLText) Kind() (string, string) { return "format", "html-text" }

func (h *HTMLText) Ports() (inputs, outputs []node.PortDef) {
	return []node.PortDef{{Name: "html", Types: data.Types(data.String), Required: true}},
		[]node.PortDef{{Name: "text", Types: data.Types(data.String)}}
}

func (h *HTMLText) Process(_ context.Context, in node.Values, _ *node.ProcessContext) (node.Values, error) {
	src, _ := in["html"].AsString()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	sel := doc.Selection
	if h.Selector != "" {
		sel = doc.Find(h.Selector)
	}
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	return node.Values{"text": data.Text(strings.Join(parts, "\n"))}, nil
}
