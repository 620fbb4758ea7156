// Package store provides persistence backends for MenuFlow.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/menuflow/menuflow/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run PostgreSQL migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveSession stores or updates the session snapshot for a user.
func (s *PostgresStore) SaveSession(rec models.SessionRecord) error {
	answersJSON, err := marshalAnswers(rec.Answers)
	if err != nil {
		slog.Error("PostgresStore SaveSession JSON marshal failed", "error", err, "userID", rec.UserID)
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (user_id, flow_name, current_step_id, answers, intent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			flow_name = EXCLUDED.flow_name,
			current_step_id = EXCLUDED.current_step_id,
			answers = EXCLUDED.answers,
			intent = EXCLUDED.intent,
			updated_at = EXCLUDED.updated_at`,
		rec.UserID, rec.FlowName, rec.CurrentStepID, answersJSON, rec.Intent, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to save session for %s: %w", rec.UserID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "userID", rec.UserID, "step", rec.CurrentStepID)
	return nil
}

// GetSession retrieves the session snapshot for a user.
func (s *PostgresStore) GetSession(userID string) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	var answersJSON string

	err := s.db.QueryRow(`
		SELECT user_id, flow_name, current_step_id, answers, intent, created_at, updated_at
		FROM sessions WHERE user_id = $1`, userID).Scan(
		&rec.UserID, &rec.FlowName, &rec.CurrentStepID, &answersJSON, &rec.Intent, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "userID", userID)
		return nil, err
	}

	rec.Answers = unmarshalAnswers(answersJSON, userID)
	return &rec, nil
}

// DeleteSession removes the session snapshot for a user.
func (s *PostgresStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "userID", userID)
		return err
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "userID", userID)
	return nil
}

// ListSessions returns all stored session snapshots.
func (s *PostgresStore) ListSessions() ([]models.SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT user_id, flow_name, current_step_id, answers, intent, created_at, updated_at
		FROM sessions ORDER BY user_id`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var recs []models.SessionRecord
	for rows.Next() {
		var rec models.SessionRecord
		var answersJSON string
		if err := rows.Scan(&rec.UserID, &rec.FlowName, &rec.CurrentStepID, &answersJSON, &rec.Intent, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			slog.Error("PostgresStore ListSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		rec.Answers = unmarshalAnswers(answersJSON, rec.UserID)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return recs, nil
}

// AddMessage appends one message log entry.
func (s *PostgresStore) AddMessage(rec models.MessageRecord) error {
	_, err := s.db.Exec(`INSERT INTO messages (id, user_id, direction, body, step_id, time) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.Direction, rec.Body, rec.StepID, rec.Time)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to insert message for %s: %w", rec.UserID, err)
	}
	slog.Debug("PostgresStore AddMessage succeeded", "userID", rec.UserID, "direction", rec.Direction)
	return nil
}

// GetMessages returns the message log for a user in insertion order.
func (s *PostgresStore) GetMessages(userID string) ([]models.MessageRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, direction, body, step_id, time FROM messages WHERE user_id = $1 ORDER BY time`, userID)
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var recs []models.MessageRecord
	for rows.Next() {
		var rec models.MessageRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Direction, &rec.Body, &rec.StepID, &rec.Time); err != nil {
			slog.Error("PostgresStore GetMessages scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return recs, nil
}

// AddReceipt appends one delivery status event.
func (s *PostgresStore) AddReceipt(rec models.ReceiptRecord) error {
	_, err := s.db.Exec(`INSERT INTO receipts (id, user_id, status, time) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.UserID, rec.Status, rec.Time)
	if err != nil {
		slog.Error("PostgresStore AddReceipt failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to insert receipt for %s: %w", rec.UserID, err)
	}
	slog.Debug("PostgresStore AddReceipt succeeded", "userID", rec.UserID, "status", rec.Status)
	return nil
}

// GetReceipts returns the delivery status events for a user in insertion order.
func (s *PostgresStore) GetReceipts(userID string) ([]models.ReceiptRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, status, time FROM receipts WHERE user_id = $1 ORDER BY time`, userID)
	if err != nil {
		slog.Error("PostgresStore GetReceipts query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var recs []models.ReceiptRecord
	for rows.Next() {
		var rec models.ReceiptRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Status, &rec.Time); err != nil {
			slog.Error("PostgresStore GetReceipts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan receipt row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore GetReceipts rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate receipt rows: %w", err)
	}
	return recs, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
