package nodes

import (
	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
	"github.com/smallnest/nodeflow/registry"
)

// RegisterBuiltins adds every builtin kind to r. Input nodes are registered
// once per data type, with the type as subtype.
func RegisterBuiltins(r *registry.Registry) {
	for _, t := range data.ScalarTypes {
		for _, typ := range []data.DataType{t, t.Array()} {
			r.RegisterTitled("input", string(typ), "Input", func(args map[string]any) (node.Implementation, error) {
				return NewInput(typ, args)
			})
		}
	}

	r.RegisterTitled("text", "static", "Text", func(args map[string]any) (node.Implementation, error) {
		return &StaticText{Text: argString(args, "text", "")}, nil
	})
	r.RegisterTitled("text", "join", "Join", func(args map[string]any) (node.Implementation, error) {
		return &JoinText{Separator: argString(args, "separator", "\n")}, nil
	})
	r.RegisterTitled("prompt", "template", "Prompt", func(args map[string]any) (node.Implementation, error) {
		return NewPrompt(args)
	})
	r.RegisterTitled("chat-model", "langchain", "Chat Model", func(args map[string]any) (node.Implementation, error) {
		return NewChat(args)
	})
	r.RegisterTitled("chat-model", "openai", "OpenAI", func(args map[string]any) (node.Implementation, error) {
		return NewOpenAIChat(args)
	})
	r.RegisterTitled("splitter", "recursive", "Text Splitter", func(args map[string]any) (node.Implementation, error) {
		return NewSplitter(args)
	})
	r.RegisterTitled("loader", "text", "Text Loader", func(args map[string]any) (node.Implementation, error) {
		return NewTextLoader(args)
	})
	r.RegisterTitled("format", "markdown", "Markdown", func(args map[string]any) (node.Implementation, error) {
		return NewMarkdown(args), nil
	})
	r.RegisterTitled("format", "html-text", "HTML Text", func(args map[string]any) (node.Implementation, error) {
		return &HTMLText{Selector: argString(args, "selector", "")}, nil
	})
	r.RegisterTitled("guardrail", "validator", "Validator", func(args map[string]any) (node.Implementation, error) {
		return NewValidator(args)
	})
}

// NewRegistry returns a registry holding the builtin kinds.
func NewRegistry() *registry.Registry {
	r := registry.New()
	RegisterBuiltins(r)
	return r
}
