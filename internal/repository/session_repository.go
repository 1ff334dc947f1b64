package repository

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"dinory-ai/internal/models"
)

// SessionRepository is the keyed story-session store. All mutation goes
// through Mutate, which serializes concurrent submissions for the same
// session id while leaving unrelated sessions unblocked.
type SessionRepository interface {
	// Get returns a copy of the stored session or models.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*models.StorySession, error)
	// Save stores the session, replacing any previous value.
	Save(ctx context.Context, session *models.StorySession) error
	// Mutate applies fn to the stored session under the session's lock and
	// persists the result. fn returning an error aborts the write.
	Mutate(ctx context.Context, id string, fn func(*models.StorySession) error) (*models.StorySession, error)
	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// keyedMutex hands out one mutex per session id. Locks are never evicted;
// session churn is bounded by the number of active children.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m
}

// Compile-time check to ensure implementation satisfies the interface.
var _ SessionRepository = (*MemorySessionRepository)(nil)

// MemorySessionRepository is the default in-process store.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.StorySession
	keyLocks *keyedMutex
	logger   *zap.Logger
}

// NewMemorySessionRepository creates an empty in-memory session store.
func NewMemorySessionRepository(logger *zap.Logger) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*models.StorySession),
		keyLocks: newKeyedMutex(),
		logger:   logger.Named("MemorySessionRepo"),
	}
}

func (r *MemorySessionRepository) Get(ctx context.Context, id string) (*models.StorySession, error) {
	r.mu.RLock()
	session, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}
	return session.Clone(), nil
}

func (r *MemorySessionRepository) Save(ctx context.Context, session *models.StorySession) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session without id", models.ErrValidation)
	}
	r.mu.Lock()
	r.sessions[session.ID] = session.Clone()
	r.mu.Unlock()
	r.logger.Debug("Session saved", zap.String("session_id", session.ID))
	return nil
}

func (r *MemorySessionRepository) Mutate(ctx context.Context, id string, fn func(*models.StorySession) error) (*models.StorySession, error) {
	lock := r.keyLocks.lock(id)
	defer lock.Unlock()

	r.mu.RLock()
	stored, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}

	working := stored.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = working
	r.mu.Unlock()
	return working.Clone(), nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	return nil
}
