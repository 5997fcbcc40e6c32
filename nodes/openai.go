package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/smallnest/nodeflow/node"
	"github.com/tmc/langchaingo/llms"
)

// Settings keys read by chat-model/openai nodes when their args leave the
// value empty.
const (
	SettingOpenAIKey     = "openai.apiKey"
	SettingOpenAIBaseURL = "openai.baseURL"
	SettingOpenAIModel   = "openai.model"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIChat calls an OpenAI compatible chat completion endpoint.
type OpenAIChat struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewOpenAIChat builds a node from args "apiKey", "baseURL", "model",
// "temperature" and "maxTokens".
func NewOpenAIChat(args map[string]any) (*OpenAIChat, error) {
	c := &OpenAIChat{
		APIKey:  argString(args, "apiKey", ""),
		BaseURL: argString(args, "baseURL", ""),
		Model:   argString(args, "model", ""),
	}
	t, _, err := argFloat(args, "temperature")
	if err != nil {
		return nil, err
	}
	c.Temperature = float32(t)
	if c.MaxTokens, err = argInt(args, "maxTokens", 0); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *OpenAIChat) Kind() (string, string) { return "chat-model", "openai" }

func (c *OpenAIChat) Ports() (inputs, outputs []node.PortDef) { return chatPorts() }

func (c *OpenAIChat) client(pc *node.ProcessContext) (*openai.Client, string, error) {
	setting := func(own, key string) string {
		if own != "" {
			return own
		}
		if s, ok := pc.Setting(key); ok {
			if str, ok := s.(string); ok {
				return str
			}
		}
		return ""
	}

	key := setting(c.APIKey, SettingOpenAIKey)
	if key == "" {
		return nil, "", errors.New("openai api key is not configured")
	}
	cfg := openai.DefaultConfig(key)
	if base := setting(c.BaseURL, SettingOpenAIBaseURL); base != "" {
		cfg.BaseURL = base
	}
	model := setting(c.Model, SettingOpenAIModel)
	if model == "" {
		model = defaultOpenAIModel
	}
	return openai.NewClientWithConfig(cfg), model, nil
}

func (c *OpenAIChat) Process(ctx context.Context, in node.Values, pc *node.ProcessContext) (node.Values, error) {
	client, model, err := c.client(pc)
	if err != nil {
		return nil, err
	}
	msgs, err := conversation(in)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openAIRole(m.Role),
			Content: m.Content,
		})
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from API")
	}
	pc.Trace("%s used %d tokens", model, resp.Usage.TotalTokens)
	return reply(resp.Choices[0].Message.Content), nil
}

func openAIRole(role llms.ChatMessageType) string {
	switch role {
	case llms.ChatMessageTypeSystem:
		return openai.ChatMessageRoleSystem
	case llms.ChatMessageTypeAI:
		return openai.ChatMessageRoleAssistant
	case llms.ChatMessageTypeTool:
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}
