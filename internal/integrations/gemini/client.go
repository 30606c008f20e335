package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-medical-chat-booking/internal/integrations/llm"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultModel = "gemini-2.5-flash"

// Client implements llm.Client using Google's Gemini API.
type Client struct {
	client  *genai.Client
	modelID string
}

func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &Client{
		client:  client,
		modelID: modelID,
	}, nil
}

// Complete replays the conversation as chat history and sends the last message.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	modelID := c.modelID
	if strings.TrimSpace(req.Model) != "" {
		modelID = req.Model
	}
	model := c.client.GenerativeModel(modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if systemText := strings.TrimSpace(strings.Join(req.System, "\n\n")); systemText != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
	}

	history, last, err := splitHistory(req.Messages)
	if err != nil {
		return llm.Response{}, err
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini: completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return llm.Response{}, errors.New("gemini: returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return llm.Response{}, errors.New("gemini: returned empty content")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return llm.Response{
		Text:       strings.TrimSpace(text.String()),
		StopReason: fmt.Sprint(candidate.FinishReason),
	}, nil
}

// splitHistory converts all but the final message into Gemini chat history.
// The final message must come from the user.
func splitHistory(messages []llm.Message) ([]*genai.Content, string, error) {
	merged := llm.MergeConsecutive(messages)
	if len(merged) == 0 {
		return nil, "", errors.New("gemini: requires at least one message")
	}

	last := merged[len(merged)-1]
	if last.Role != llm.RoleUser {
		return nil, "", fmt.Errorf("gemini: last message must be from the user, got %q", last.Role)
	}

	history := make([]*genai.Content, 0, len(merged)-1)
	for _, msg := range merged[:len(merged)-1] {
		role := "user"
		switch msg.Role {
		case llm.RoleSystem:
			continue
		case llm.RoleAssistant:
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history, last.Content, nil
}

// Close releases resources held by the Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
