package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallnest/nodeflow/data"
	"github.com/smallnest/nodeflow/node"
	"github.com/tmc/langchaingo/llms"
)

// SettingModel is the settings key under which a run may supply the
// llms.Model used by chat-model/langchain nodes without their own model.
const SettingModel = "llm.model"

var errNoModel = errors.New("no chat model configured")

func chatPorts() (inputs, outputs []node.PortDef) {
	return []node.PortDef{
			{Name: "prompt", Types: data.Types(data.String, data.ChatMessage, data.ChatMessage.Array()), Required: true},
			{Name: "system", Types: data.Types(data.String)},
		}, []node.PortDef{
			{Name: "response", Types: data.Types(data.String)},
			{Name: "message", Types: data.Types(data.ChatMessage)},
		}
}

// conversation orders the optional system text before the prompt messages.
func conversation(in node.Values) ([]data.Message, error) {
	var msgs []data.Message
	if s, ok := in["system"].AsString(); ok && s != "" {
		msgs = append(msgs, data.Message{Role: llms.ChatMessageTypeSystem, Content: s})
	}

	prompt := in["prompt"]
	switch {
	case prompt.Type == data.String:
		s, _ := prompt.AsString()
		msgs = append(msgs, data.Message{Role: llms.ChatMessageTypeHuman, Content: s})
	case prompt.Type == data.ChatMessage:
		msgs = append(msgs, message(prompt.Value))
	case prompt.Type == data.ChatMessage.Array():
		items, _ := prompt.Items()
		for _, item := range items {
			msgs = append(msgs, message(item.Value))
		}
	default:
		return nil, fmt.Errorf("unsupported prompt type %s", prompt.Type)
	}
	return msgs, nil
}

func message(v any) data.Message {
	switch m := v.(type) {
	case data.Message:
		return m
	case *data.Message:
		return *m
	}
	return data.Message{}
}

func reply(content string) node.Values {
	return node.Values{
		"response": data.Text(content),
		"message":  data.Data{Type: data.ChatMessage, Value: data.Message{Role: llms.ChatMessageTypeAI, Content: content}},
	}
}

// Chat sends the conversation to a langchaingo model.
type Chat struct {
	Model       llms.Model
	ModelName   string
	Temperature *float64
	MaxTokens   int
}

// NewChat builds a chat node. args may carry "model" (an llms.Model),
// "modelName", "temperature" and "maxTokens".
func NewChat(args map[string]any) (*Chat, error) {
	c := &Chat{ModelName: argString(args, "modelName", "")}
	if m, ok := args["model"].(llms.Model); ok {
		c.Model = m
	}
	t, ok, err := argFloat(args, "temperature")
	if err != nil {
		return nil, err
	}
	if ok {
		c.Temperature = &t
	}
	if c.MaxTokens, err = argInt(args, "maxTokens", 0); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Chat) Kind() (string, string) { return "chat-model", "langchain" }

func (c *Chat) Ports() (inputs, outputs []node.PortDef) { return chatPorts() }

func (c *Chat) Process(ctx context.Context, in node.Values, pc *node.ProcessContext) (node.Values, error) {
	model := c.Model
	if model == nil {
		if v, ok := pc.Setting(SettingModel); ok {
			model, _ = v.(llms.Model)
		}
	}
	if model == nil {
		return nil, errNoModel
	}

	msgs, err := conversation(in)
	if err != nil {
		return nil, err
	}
	content := make([]llms.MessageContent, len(msgs))
	for i, m := range msgs {
		content[i] = llms.TextParts(m.Role, m.Content)
	}

	var opts []llms.CallOption
	if c.ModelName != "" {
		opts = append(opts, llms.WithModel(c.ModelName))
	}
	if c.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*c.Temperature))
	}
	if c.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}
	pc.Trace("model returned %d choices", len(resp.Choices))
	return reply(resp.Choices[0].Content), nil
}
