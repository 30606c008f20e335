package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-medical-chat-booking/internal/domain/entity"
	domainRepo "go-medical-chat-booking/internal/domain/repository"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisConversationKeyPrefix prefixes the per-session turn list
const RedisConversationKeyPrefix = "conversation:"

type redisConversationRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
	tracer      trace.Tracer
}

// NewRedisConversationRepository stores each session as a Redis list of JSON
// turns. The TTL is refreshed on every append so abandoned negotiations expire.
func NewRedisConversationRepository(redisClient *redis.Client, ttl time.Duration) domainRepo.ConversationRepository {
	if redisClient == nil {
		panic("repository: redis client cannot be nil")
	}
	return &redisConversationRepository{
		redisClient: redisClient,
		ttl:         ttl,
		tracer:      otel.Tracer("medical-chat-booking.repository.conversation"),
	}
}

func (r *redisConversationRepository) Append(ctx context.Context, sessionID string, turn entity.ConversationTurn) error {
	ctx, span := r.tracer.Start(ctx, "conversation.append")
	defer span.End()

	data, err := json.Marshal(turn)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal conversation turn: %w", err)
	}

	key := conversationKey(sessionID)
	pipe := r.redisClient.TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("append conversation turn for session %s: %w", sessionID, err)
	}
	return nil
}

func (r *redisConversationRepository) History(ctx context.Context, sessionID string) ([]entity.ConversationTurn, error) {
	ctx, span := r.tracer.Start(ctx, "conversation.history")
	defer span.End()

	items, err := r.redisClient.LRange(ctx, conversationKey(sessionID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load conversation for session %s: %w", sessionID, err)
	}

	history := make([]entity.ConversationTurn, 0, len(items))
	for _, item := range items {
		var turn entity.ConversationTurn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("decode conversation turn for session %s: %w", sessionID, err)
		}
		history = append(history, turn)
	}
	return history, nil
}

func (r *redisConversationRepository) Clear(ctx context.Context, sessionID string) error {
	ctx, span := r.tracer.Start(ctx, "conversation.clear")
	defer span.End()

	if err := r.redisClient.Del(ctx, conversationKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("clear conversation for session %s: %w", sessionID, err)
	}
	return nil
}

func conversationKey(sessionID string) string {
	return RedisConversationKeyPrefix + sessionID
}
