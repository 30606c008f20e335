package usecase

import (
	"context"
	"fmt"
	"time"

	"go-medical-chat-booking/config"
	"go-medical-chat-booking/internal/domain/entity"
	"go-medical-chat-booking/internal/integrations/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// UnderstandingProvider turns conversation history plus a new utterance into
// a raw reply for ExtractIntent. Failures wrap ErrProviderUnavailable.
type UnderstandingProvider interface {
	Converse(ctx context.Context, history []entity.ConversationTurn, utterance string) (string, error)
}

type llmUnderstandingProvider struct {
	client      llm.Client
	model       string
	maxTokens   int32
	temperature float32
	now         func() time.Time
	tracer      trace.Tracer
}

func NewUnderstandingProvider(client llm.Client, cfg config.LLMConfig) UnderstandingProvider {
	return &llmUnderstandingProvider{
		client:      client,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		now:         time.Now,
		tracer:      otel.Tracer("medical-chat-booking.usecase.understanding"),
	}
}

func (p *llmUnderstandingProvider) Converse(ctx context.Context, history []entity.ConversationTurn, utterance string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "understanding.converse", trace.WithAttributes(
		attribute.Int("conversation.turns", len(history)),
	))
	defer span.End()

	messages := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Role == entity.TurnRoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: utterance})

	resp, err := p.client.Complete(ctx, llm.Request{
		Model:       p.model,
		System:      []string{BookingSystemPrompt(p.now())},
		Messages:    llm.MergeConsecutive(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	span.SetAttributes(attribute.String("llm.stop_reason", resp.StopReason))
	return resp.Text, nil
}
