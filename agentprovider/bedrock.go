package agentprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/agentforge/workflow-engine/workflow"
)

// BedrockRuntimeClient mirrors the subset of the AWS Bedrock runtime client
// required by the adapter, matching *bedrockruntime.Client.
type BedrockRuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider implements Provider via the AWS Bedrock Converse API.
type BedrockProvider struct {
	runtime       BedrockRuntimeClient
	modelPrefixes []string
}

// NewBedrockProvider wraps a runtime client. prefixes (default
// "anthropic.", "amazon.", "meta.") select which model identifiers this
// provider claims in Supports.
func NewBedrockProvider(runtime BedrockRuntimeClient, prefixes ...string) (*BedrockProvider, error) {
	if runtime == nil {
		return nil, errors.New("agentprovider: bedrock runtime client is required")
	}
	if len(prefixes) == 0 {
		prefixes = []string{"anthropic.", "amazon.", "meta."}
	}
	return &BedrockProvider{runtime: runtime, modelPrefixes: prefixes}, nil
}

func (p *BedrockProvider) Supports(model string) bool {
	for _, prefix := range p.modelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (p *BedrockProvider) Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (string, map[string]any, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: &agent.Model,
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: prompt},
				},
			},
		},
	}
	if agent.SystemRole != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: agent.SystemRole},
		}
	}
	if agent.Temperature > 0 {
		temp := float32(agent.Temperature)
		input.InferenceConfig = &brtypes.InferenceConfiguration{Temperature: &temp}
	}

	out, err := p.runtime.Converse(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("agentprovider: bedrock converse: %w", err)
	}

	var text strings.Builder
	if msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msgOutput.Value.Content {
			if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
				text.WriteString(tb.Value)
			}
		}
	}

	metadata := map[string]any{"stopReason": string(out.StopReason)}
	if out.Usage != nil {
		metadata["inputTokens"] = out.Usage.InputTokens
		metadata["outputTokens"] = out.Usage.OutputTokens
	}
	return text.String(), metadata, nil
}
