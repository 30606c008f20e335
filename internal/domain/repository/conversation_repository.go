package repository

import (
	"context"

	"go-medical-chat-booking/internal/domain/entity"
)

// ConversationRepository holds the ordered turn history of each session.
// Sessions never share state.
type ConversationRepository interface {
	Append(ctx context.Context, sessionID string, turn entity.ConversationTurn) error
	History(ctx context.Context, sessionID string) ([]entity.ConversationTurn, error)
	Clear(ctx context.Context, sessionID string) error
}
