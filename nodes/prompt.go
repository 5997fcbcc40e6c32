package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

var (
	goTemplateVar = regexp.MustCompile(`\{\{\s*\.(\w+)\s*\}\}`)
	fStringVar    = regexp.MustCompile(`\{(\w+)\}`)
)

// Prompt renders a langchaingo prompt template. Every template variable is
// a required input port; list values are joined with blank lines.
type Prompt struct {
	template prompts.PromptTemplate
	role     llms.ChatMessageType
}

// NewPrompt builds a prompt node from args "template", "format"
// ("go-template" or "f-string"), "variables" and "role".
func NewPrompt(args map[string]any) (*Prompt, error) {
	text := argString(args, "template", "")
	if text == "" {
		return nil, fmt.Errorf("template is required")
	}
	vars, err := argStrings(args, "variables")
	if err != nil {
		return nil, err
	}

	format := prompts.TemplateFormatGoTemplate
	pattern := goTemplateVar
	switch f := argString(args, "format", string(prompts.TemplateFormatGoTemplate)); f {
	case string(prompts.TemplateFormatGoTemplate):
	case string(prompts.TemplateFormatFString):
		format, pattern = prompts.TemplateFormatFString, fStringVar
	default:
		return nil, fmt.Errorf("unsupported template format %q", f)
	}
	if len(vars) == 0 {
		vars = templateVariables(pattern, text)
	}

	tmpl := prompts.NewPromptTemplate(text, vars)
	tmpl.TemplateFormat = format
	return &Prompt{
		template: tmpl,
		role:     llms.ChatMessageType(argString(args, "role", string(llms.ChatMessageTypeHuman))),
	}, nil
}

func templateVariables(pattern *regexp.Regexp, text string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}

func (p *Prompt) Kind() (string, string) { return "prompt", "template" }

func (p *Prompt) Ports() (inputs, outputs []node.PortDef) {
	for _, v := range p.template.InputVariables {
		inputs = append(inputs, node.PortDef{
			Name:     v,
			Types:    data.Types(data.String, data.String.Array()),
			Required: true,
		})
	}
	return inputs, []node.PortDef{
		{Name: "prompt", Types: data.Types(data.String)},
		{Name: "message", Types: data.Types(data.ChatMessage)},
	}
}

func (p *Prompt) Process(_ context.Context, in node.Values, pc *node.ProcessContext) (node.Values, error) {
	values := make(map[string]any, len(in))
	for name, d := range in {
		values[name] = joinText(d)
	}
	text, err := p.template.Format(values)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	pc.Trace("rendered %d characters", len(text))
	return node.Values{
		"prompt":  data.Text(text),
		"message": data.Data{Type: data.ChatMessage, Value: data.Message{Role: p.role, Content: text}},
	}, nil
}

func joinText(d data.Data) string {
	if items, ok := d.Items(); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			s, _ := item.AsString()
			parts = append(parts, s)
		}
		return strings.Join(parts, "\n\n")
	}
	s, _ := d.AsString()
	return s
}
