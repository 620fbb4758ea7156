// Package store provides persistence backends for MenuFlow.
//
// The engine never depends on this package; it is the optional persistence
// adapter that records committed session snapshots and the message log. An
// in-memory store backs tests and storeless deployments, with SQLite and
// PostgreSQL backends for durability.
package store

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/menuflow/menuflow/internal/models"
)

// Store is the persistence contract shared by all backends.
type Store interface {
	// SaveSession inserts or replaces the snapshot for the record's user id.
	SaveSession(rec models.SessionRecord) error
	// GetSession returns the stored snapshot for userID, or nil if absent.
	GetSession(userID string) (*models.SessionRecord, error)
	// DeleteSession removes the snapshot for userID; absent is not an error.
	DeleteSession(userID string) error
	// ListSessions returns all stored session snapshots.
	ListSessions() ([]models.SessionRecord, error)
	// AddMessage appends one message log entry.
	AddMessage(rec models.MessageRecord) error
	// GetMessages returns the message log for userID in insertion order.
	GetMessages(userID string) ([]models.MessageRecord, error)
	// AddReceipt appends one delivery status event.
	AddReceipt(rec models.ReceiptRecord) error
	// GetReceipts returns the delivery status events for userID in insertion
	// order.
	GetReceipts(userID string) ([]models.ReceiptRecord, error)
	// Close releases any held resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL-style DSNs and "sqlite"
// for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a Store kept entirely in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionRecord
	messages []models.MessageRecord
	receipts []models.ReceiptRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.SessionRecord),
	}
}

// SaveSession inserts or replaces the snapshot for the record's user id.
func (s *InMemoryStore) SaveSession(rec models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.UserID] = rec
	slog.Debug("InMemoryStore SaveSession succeeded", "userID", rec.UserID, "step", rec.CurrentStepID)
	return nil
}

// GetSession returns the stored snapshot for userID, or nil if absent.
func (s *InMemoryStore) GetSession(userID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// DeleteSession removes the snapshot for userID.
func (s *InMemoryStore) DeleteSession(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// ListSessions returns all stored session snapshots sorted by user id.
func (s *InMemoryStore) ListSessions() ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]models.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].UserID < recs[j].UserID })
	return recs, nil
}

// AddMessage appends one message log entry.
func (s *InMemoryStore) AddMessage(rec models.MessageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, rec)
	return nil
}

// GetMessages returns the message log for userID in insertion order.
func (s *InMemoryStore) GetMessages(userID string) ([]models.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.MessageRecord
	for _, rec := range s.messages {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AddReceipt appends one delivery status event.
func (s *InMemoryStore) AddReceipt(rec models.ReceiptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, rec)
	return nil
}

// GetReceipts returns the delivery status events for userID in insertion
// order.
func (s *InMemoryStore) GetReceipts(userID string) ([]models.ReceiptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ReceiptRecord
	for _, rec := range s.receipts {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
