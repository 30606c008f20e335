package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-medical-chat-booking/internal/integrations/llm"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements llm.Client over the Bedrock Converse API.
type Client struct {
	api     converseAPI
	modelID string
}

func NewClient(api converseAPI, modelID string) *Client {
	if api == nil {
		panic("bedrock: converse client cannot be nil")
	}
	return &Client{api: api, modelID: modelID}
}

// NewClientFromDefaultConfig loads AWS credentials from the default chain.
func NewClientFromDefaultConfig(ctx context.Context, region, modelID string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return NewClient(bedrockruntime.NewFromConfig(cfg), modelID), nil
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := req.Model
	if strings.TrimSpace(modelID) == "" {
		modelID = c.modelID
	}
	if strings.TrimSpace(modelID) == "" {
		return llm.Response{}, errors.New("bedrock: model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	// Converse rejects two consecutive messages with the same role
	merged := llm.MergeConsecutive(req.Messages)
	messages := make([]brtypes.Message, 0, len(merged))
	for _, msg := range merged {
		switch msg.Role {
		case llm.RoleSystem:
			systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: msg.Content})
		case llm.RoleUser:
			messages = append(messages, textMessage(brtypes.ConversationRoleUser, msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, textMessage(brtypes.ConversationRoleAssistant, msg.Content))
		default:
			return llm.Response{}, fmt.Errorf("bedrock: unsupported role %q", msg.Role)
		}
	}

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil {
		inference = nil
	}

	out, err := c.api.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	})
	if err != nil {
		return llm.Response{}, fmt.Errorf("bedrock: converse failed: %w", err)
	}

	text, err := extractOutputText(out)
	if err != nil {
		return llm.Response{}, err
	}

	return llm.Response{
		Text:       strings.TrimSpace(text),
		StopReason: string(out.StopReason),
	}, nil
}

func textMessage(role brtypes.ConversationRole, content string) brtypes.Message {
	return brtypes.Message{
		Role: role,
		Content: []brtypes.ContentBlock{
			&brtypes.ContentBlockMemberText{Value: content},
		},
	}
}

func extractOutputText(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", errors.New("bedrock: response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock: response did not include a message output")
	}

	var builder strings.Builder
	for _, block := range msgOut.Value.Content {
		if textBlock, ok := block.(*brtypes.ContentBlockMemberText); ok {
			builder.WriteString(textBlock.Value)
		}
	}
	if strings.TrimSpace(builder.String()) == "" {
		return "", errors.New("bedrock: response contained no text content blocks")
	}
	return builder.String(), nil
}
