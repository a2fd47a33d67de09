package agentprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentforge/workflow-engine/workflow"
)

// OpenAIChatClient captures the subset of the go-openai client used by the
// adapter, so tests can substitute a mock.
type OpenAIChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider implements Provider via the OpenAI Chat Completions API.
type OpenAIProvider struct {
	chat          OpenAIChatClient
	modelPrefixes []string
}

// NewOpenAIProvider wraps a ChatClient. prefixes (default "gpt-", "o1", "o3") select
// which model identifiers this provider claims in Supports.
func NewOpenAIProvider(chat OpenAIChatClient, prefixes ...string) (*OpenAIProvider, error) {
	if chat == nil {
		return nil, errors.New("agentprovider: openai client is required")
	}
	if len(prefixes) == 0 {
		prefixes = []string{"gpt-", "o1", "o3"}
	}
	return &OpenAIProvider{chat: chat, modelPrefixes: prefixes}, nil
}

// NewOpenAIProviderFromAPIKey constructs a provider using the default
// go-openai HTTP client.
func NewOpenAIProviderFromAPIKey(apiKey string) (*OpenAIProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("agentprovider: api key is required")
	}
	return NewOpenAIProvider(openai.NewClient(apiKey))
}

func (p *OpenAIProvider) Supports(model string) bool {
	for _, prefix := range p.modelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (p *OpenAIProvider) Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (string, map[string]any, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if agent.SystemRole != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: agent.SystemRole})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	req := openai.ChatCompletionRequest{
		Model:       agent.Model,
		Messages:    messages,
		Temperature: float32(agent.Temperature),
	}
	resp, err := p.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("agentprovider: openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("agentprovider: openai returned no choices")
	}
	metadata := map[string]any{
		"finishReason":     string(resp.Choices[0].FinishReason),
		"promptTokens":     resp.Usage.PromptTokens,
		"completionTokens": resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, metadata, nil
}
