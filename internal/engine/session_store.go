// Package engine implements the conversation engine: the per-user session
// store and the transition algorithm over a flow definition.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/menuflow/menuflow/internal/models"
)

// SessionStore maps user identifiers to in-memory sessions with lazy
// creation. It is a keyed container, not a concurrency primitive: the engine
// assumes a single in-flight transition per user. The mutex only guards the
// map itself so that read-only observers (Peek, Count) can run alongside the
// responder loop.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*models.Session
	startStepID string
}

// NewSessionStore creates a SessionStore seeding new sessions at startStepID.
func NewSessionStore(startStepID string) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*models.Session),
		startStepID: startStepID,
	}
}

// GetOrCreate returns the existing session for userID, or creates one at the
// start step with empty answers and history.
func (ss *SessionStore) GetOrCreate(userID string) *models.Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if sess, ok := ss.sessions[userID]; ok {
		return sess
	}

	now := time.Now()
	sess := &models.Session{
		UserID:        userID,
		CurrentStepID: ss.startStepID,
		Answers:       make(map[string]string),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ss.sessions[userID] = sess
	slog.Debug("SessionStore created session", "userID", userID, "startStep", ss.startStepID)
	return sess
}

// Reset discards any existing session for userID. Resetting a non-existent
// session is a no-op, not an error.
func (ss *SessionStore) Reset(userID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if _, ok := ss.sessions[userID]; !ok {
		slog.Debug("SessionStore reset no-op, session absent", "userID", userID)
		return
	}
	delete(ss.sessions, userID)
	slog.Info("SessionStore session reset", "userID", userID)
}

// Peek returns a read-only snapshot of the session for userID, if one exists.
// It never creates or mutates a session.
func (ss *SessionStore) Peek(userID string) (models.Session, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	sess, ok := ss.sessions[userID]
	if !ok {
		return models.Session{}, false
	}
	return sess.Clone(), true
}

// Count returns the number of live sessions.
func (ss *SessionStore) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}
