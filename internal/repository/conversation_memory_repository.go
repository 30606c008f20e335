package repository

import (
	"context"
	"sync"

	"go-medical-chat-booking/internal/domain/entity"
	domainRepo "go-medical-chat-booking/internal/domain/repository"
)

// memoryConversationRepository keeps histories in process memory. Suitable
// for a single instance; use the Redis repository when scaling out.
type memoryConversationRepository struct {
	mu       sync.RWMutex
	sessions map[string][]entity.ConversationTurn
}

func NewMemoryConversationRepository() domainRepo.ConversationRepository {
	return &memoryConversationRepository{
		sessions: make(map[string][]entity.ConversationTurn),
	}
}

func (r *memoryConversationRepository) Append(ctx context.Context, sessionID string, turn entity.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append(r.sessions[sessionID], turn)
	return nil
}

// History returns a copy so callers cannot mutate stored turns
func (r *memoryConversationRepository) History(ctx context.Context, sessionID string) ([]entity.ConversationTurn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	turns := r.sessions[sessionID]
	history := make([]entity.ConversationTurn, len(turns))
	copy(history, turns)
	return history, nil
}

func (r *memoryConversationRepository) Clear(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
