package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// Errors
// =============================================================================

// ErrSlotLockTimeout is returned when a slot stays locked longer than the caller waits
var ErrSlotLockTimeout = errors.New("timed out waiting for slot lock")

// releaseLockScript deletes the lock key only if it still holds our token,
// so an expired lock re-acquired by another instance is never released by us.
var releaseLockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// =============================================================================
// Constants
// =============================================================================

const (
	// Redis key prefix for slot locks
	RedisSlotLockKeyPrefix = "slot:lock:"

	// Poll interval while waiting for a Redis lock held elsewhere
	lockRetryInterval = 25 * time.Millisecond

	// Interval for cleaning up stale mutexes
	mutexCleanupInterval = 10 * time.Minute

	// How long a mutex must be unused before cleanup
	mutexStaleThreshold = 10 * time.Minute
)

// =============================================================================
// Types
// =============================================================================

// SlotLocker serializes the check-then-write sequence for one doctor+slot key.
// The returned unlock func must be called exactly once.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalSlotLocker serializes writers inside one process with a mutex per slot key.
//
// Lock Ordering (to prevent deadlocks):
// 1. Acquire slot mutex FIRST
// 2. Then open the DB transaction
type LocalSlotLocker struct {
	log *logrus.Logger

	slotMu sync.Map // map[string]*mutexWithTimestamp

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

// mutexWithTimestamp tracks mutex usage for cleanup
type mutexWithTimestamp struct {
	mu       sync.Mutex
	lastUsed atomic.Int64 // Unix timestamp
}

// NewLocalSlotLocker starts a background goroutine that drops idle mutexes.
// Call Stop() during graceful shutdown.
func NewLocalSlotLocker(log *logrus.Logger) *LocalSlotLocker {
	l := &LocalSlotLocker{
		log:      log,
		stopChan: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupMutexMapLoop()

	return l
}

// Stop gracefully shuts down the cleanup loop.
// Safe to call multiple times.
func (l *LocalSlotLocker) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		close(l.stopChan)
		l.wg.Wait()
		l.log.Info("LocalSlotLocker stopped")
	}
}

// Lock blocks until the slot mutex is held. A mutex cannot be abandoned
// mid-wait, so ctx is only checked before waiting.
func (l *LocalSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		mt := l.getSlotMutex(key)
		mt.mu.Lock()
		// The cleanup loop may have evicted this mutex between load and lock;
		// only the mutex currently in the map guards the key.
		if current, ok := l.slotMu.Load(key); ok && current == mt {
			mt.lastUsed.Store(time.Now().Unix())
			return func() { mt.mu.Unlock() }, nil
		}
		mt.mu.Unlock()
	}
}

// getSlotMutex returns mutex for a specific slot key
func (l *LocalSlotLocker) getSlotMutex(key string) *mutexWithTimestamp {
	mt, _ := l.slotMu.LoadOrStore(key, &mutexWithTimestamp{})
	result := mt.(*mutexWithTimestamp)
	result.lastUsed.Store(time.Now().Unix())
	return result
}

// cleanupMutexMapLoop runs in background to clean stale mutexes
func (l *LocalSlotLocker) cleanupMutexMapLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(mutexCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.cleanupStaleMutexes(time.Now().Add(-mutexStaleThreshold))
		}
	}
}

// cleanupStaleMutexes removes mutexes unused since cutoff. TryLock skips
// mutexes that are held, and lastUsed is re-checked under the lock.
func (l *LocalSlotLocker) cleanupStaleMutexes(cutoff time.Time) int {
	cutoffUnix := cutoff.Unix()
	var cleaned int

	l.slotMu.Range(func(key, value any) bool {
		mt, ok := value.(*mutexWithTimestamp)
		if !ok {
			return true
		}

		if mt.mu.TryLock() {
			if mt.lastUsed.Load() < cutoffUnix {
				l.slotMu.Delete(key)
				cleaned++
			}
			mt.mu.Unlock()
		}
		return true
	})

	if cleaned > 0 {
		l.log.Debugf("Cleaned up %d stale slot mutexes", cleaned)
	}
	return cleaned
}

// RedisSlotLocker serializes writers across instances with a SET NX lock per
// slot key. The TTL bounds how long a crashed holder can block the slot.
type RedisSlotLocker struct {
	redisClient *redis.Client
	log         *logrus.Logger
	ttl         time.Duration
}

func NewRedisSlotLocker(redisClient *redis.Client, log *logrus.Logger, ttl time.Duration) *RedisSlotLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisSlotLocker{
		redisClient: redisClient,
		log:         log,
		ttl:         ttl,
	}
}

// Lock polls until the key is free, ctx is done, or one TTL has elapsed.
func (l *RedisSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := RedisSlotLockKeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		ok, err := l.redisClient.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			l.log.Warnf("Failed to acquire slot lock %s: %+v", lockKey, err)
			return nil, fmt.Errorf("acquire slot lock %s: %w", lockKey, err)
		}
		if ok {
			return func() { l.release(lockKey, token) }, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrSlotLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

func (l *RedisSlotLocker) release(lockKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseLockScript.Run(ctx, l.redisClient, []string{lockKey}, token).Err(); err != nil {
		// The TTL frees the key eventually
		l.log.Warnf("Failed to release slot lock %s (non-fatal): %+v", lockKey, err)
	}
}
