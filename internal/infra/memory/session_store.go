package memory

import (
	"sync"

	"classquiz-service/internal/app"
)

// AttemptRegistry is an in-memory implementation of app.AttemptRegistry.
type AttemptRegistry struct {
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptRegistry() *AttemptRegistry {
	return &AttemptRegistry{attempts: make(map[string]*app.Attempt)}
}

func (r *AttemptRegistry) Put(sessionID string, attempt *app.Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[sessionID] = attempt
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
}
