package redis

import (
	"context"
	"sync"
	"time"

	"classquiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// AttemptRegistry is a Redis-aware implementation of app.AttemptRegistry.
// Notes:
//   - Attempt state itself stays in process memory; the state machine is
//     owned by the websocket handler that created it.
//   - Redis marks session liveness with a TTL so operators can see
//     in-flight attempts and abandoned sessions age out on their own.
type AttemptRegistry struct {
	client *redis.Client
	ttl    time.Duration

	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptRegistry(client *redis.Client, ttl time.Duration) *AttemptRegistry {
	return &AttemptRegistry{
		client:   client,
		ttl:      ttl,
		attempts: make(map[string]*app.Attempt),
	}
}

func (r *AttemptRegistry) Put(sessionID string, attempt *app.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[sessionID] = attempt
	// best-effort liveness marker
	_ = r.client.Set(context.Background(), r.key(sessionID), "1", r.ttl).Err()
}

func (r *AttemptRegistry) Get(sessionID string) (*app.Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[sessionID]
	return attempt, ok
}

func (r *AttemptRegistry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, sessionID)
	_ = r.client.Del(context.Background(), r.key(sessionID)).Err()
}

func (r *AttemptRegistry) key(sessionID string) string {
	return "attempt:session:" + sessionID
}
