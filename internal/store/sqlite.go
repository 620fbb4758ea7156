// Package store provides persistence backends for MenuFlow.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/menuflow/menuflow/internal/models"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveSession stores or updates the session snapshot for a user.
func (s *SQLiteStore) SaveSession(rec models.SessionRecord) error {
	answersJSON, err := marshalAnswers(rec.Answers)
	if err != nil {
		slog.Error("SQLiteStore SaveSession JSON marshal failed", "error", err, "userID", rec.UserID)
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO sessions (user_id, flow_name, current_step_id, answers, intent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.FlowName, rec.CurrentStepID, answersJSON, rec.Intent, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save session for %s: %w", rec.UserID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "userID", rec.UserID, "step", rec.CurrentStepID)
	return nil
}

// GetSession retrieves the session snapshot for a user.
func (s *SQLiteStore) GetSession(userID string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	var answersJSON string

	err := s.db.QueryRow(`
		SELECT user_id, flow_name, current_step_id, answers, intent, created_at, updated_at
		FROM sessions WHERE user_id = ?`, userID).Scan(
		&rec.UserID, &rec.FlowName, &rec.CurrentStepID, &answersJSON, &rec.Intent, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "userID", userID)
		return nil, err
	}

	rec.Answers = unmarshalAnswers(answersJSON, userID)
	return &rec, nil
}

// DeleteSession removes the session snapshot for a user.
func (s *SQLiteStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "userID", userID)
		return err
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "userID", userID)
	return nil
}

// ListSessions returns all stored session snapshots.
func (s *SQLiteStore) ListSessions() ([]models.SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT user_id, flow_name, current_step_id, answers, intent, created_at, updated_at
		FROM sessions ORDER BY user_id`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var recs []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		var answersJSON string
		if err := rows.Scan(&rec.UserID, &rec.FlowName, &rec.CurrentStepID, &answersJSON, &rec.Intent, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.Answers = unmarshalAnswers(answersJSON, rec.UserID)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return recs, nil
}

// AddMessage appends one message log entry.
func (s *SQLiteStore) AddMessage(rec models.MessageRecord) error {
	_, err := s.db.Exec(`INSERT INTO messages (id, user_id, direction, body, step_id, time) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Direction, rec.Body, rec.StepID, rec.Time)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to insert message for %s: %w", rec.UserID, err)
	}
	slog.Debug("SQLiteStore AddMessage succeeded", "userID", rec.UserID, "direction", rec.Direction)
	return nil
}

// GetMessages returns the message log for a user in insertion order.
func (s *SQLiteStore) GetMessages(userID string) ([]models.MessageRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, direction, body, step_id, time FROM messages WHERE user_id = ? ORDER BY time`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var recs []models.MessageRecord
	for rows.Next() {
		var rec models.MessageRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Direction, &rec.Body, &rec.StepID, &rec.Time); err != nil {
			slog.Error("SQLiteStore GetMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return recs, nil
}

// AddReceipt appends one delivery status event.
func (s *SQLiteStore) AddReceipt(rec models.ReceiptRecord) error {
	_, err := s.db.Exec(`INSERT INTO receipts (id, user_id, status, time) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Status, rec.Time)
	if err != nil {
		slog.Error("SQLiteStore AddReceipt failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to insert receipt for %s: %w", rec.UserID, err)
	}
	slog.Debug("SQLiteStore AddReceipt succeeded", "userID", rec.UserID, "status", rec.Status)
	return nil
}

// GetReceipts returns the delivery status events for a user in insertion order.
func (s *SQLiteStore) GetReceipts(userID string) ([]models.ReceiptRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, status, time FROM receipts WHERE user_id = ? ORDER BY time`, userID)
	if err != nil {
		slog.Error("SQLiteStore GetReceipts query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var recs []models.ReceiptRecord
	for rows.Next() {
		var rec models.ReceiptRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Status, &rec.Time); err != nil {
			slog.Error("SQLiteStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore GetReceipts rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return recs, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// marshalAnswers converts the answers map to its JSON column representation.
func marshalAnswers(answers map[string]string) (string, error) {
	if len(answers) == 0 {
		return "", nil
	}
	jsonBytes, err := json.Marshal(answers)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// unmarshalAnswers converts the JSON column back to a map. A corrupt column
// yields an empty map rather than a failure.
func unmarshalAnswers(answersJSON, userID string) map[string]string {
	if answersJSON == "" {
		return nil
	}
	answers := make(map[string]string)
	if err := json.Unmarshal([]byte(answersJSON), &answers); err != nil {
		slog.Error("Store answers JSON unmarshal failed", "error", err, "userID", userID)
		return make(map[string]string)
	}
	return answers
}
