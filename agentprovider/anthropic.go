package agentprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentforge/workflow-engine/workflow"
)

// AnthropicMessagesClient captures the subset of the Anthropic SDK used by
// the adapter, so tests can substitute a mock in place of *sdk.MessageService.
type AnthropicMessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicProvider implements Provider on top of Anthropic's Messages API.
// It supports model ids matching a configured prefix set (by default,
// anything prefixed "claude-").
type AnthropicProvider struct {
	msg          AnthropicMessagesClient
	maxTokens    int
	modelPrefixes []string
}

// NewAnthropicProvider wraps a MessagesClient. maxTokens bounds every
// completion's max_tokens; prefixes (default "claude-") select which model
// identifiers this provider claims in Supports.
func NewAnthropicProvider(msg AnthropicMessagesClient, maxTokens int, prefixes ...string) (*AnthropicProvider, error) {
	if msg == nil {
		return nil, errors.New("agentprovider: anthropic client is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	if len(prefixes) == 0 {
		prefixes = []string{"claude-"}
	}
	return &AnthropicProvider{msg: msg, maxTokens: maxTokens, modelPrefixes: prefixes}, nil
}

// NewAnthropicProviderFromAPIKey constructs a provider using the default
// Anthropic HTTP client authenticated with apiKey. An empty apiKey is an
// error.
func NewAnthropicProviderFromAPIKey(apiKey string, maxTokens int) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("agentprovider: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicProvider(&client.Messages, maxTokens)
}

func (p *AnthropicProvider) Supports(model string) bool {
	for _, prefix := range p.modelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (p *AnthropicProvider) Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (string, map[string]any, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(agent.Model),
		MaxTokens: int64(p.maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if agent.SystemRole != "" {
		params.System = []sdk.TextBlockParam{{Text: agent.SystemRole}}
	}
	if agent.Temperature > 0 {
		params.Temperature = sdk.Float(agent.Temperature)
	}

	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return "", nil, fmt.Errorf("agentprovider: anthropic messages.new: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if tb := block.AsAny(); tb != nil {
			if t, ok := tb.(sdk.TextBlock); ok {
				text.WriteString(t.Text)
			}
		}
	}
	metadata := map[string]any{
		"stopReason":   string(msg.StopReason),
		"inputTokens":  msg.Usage.InputTokens,
		"outputTokens": msg.Usage.OutputTokens,
	}
	return text.String(), metadata, nil
}
