// Package messaging provides the responder loop for stateful conversations.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/menuflow/menuflow/internal/engine"
	"github.com/menuflow/menuflow/internal/models"
	"github.com/menuflow/menuflow/internal/store"
)

// Responder consumes incoming messages from a Service, runs the engine
// transition for each, and sends the resulting reply back on the same
// channel. It is the single writer for all sessions: one goroutine processes
// messages in arrival order, which serializes per-user transitions.
//
// The engine commit is at-most-once; delivery and persistence failures are
// logged and never roll the session back.
type Responder struct {
	engine     *engine.Engine
	msgService Service
	store      store.Store // optional message log, may be nil
}

// NewResponder creates a Responder wiring the engine to a messaging service.
// The store may be nil to disable the message log.
func NewResponder(eng *engine.Engine, msgService Service, st store.Store) *Responder {
	return &Responder{
		engine:     eng,
		msgService: msgService,
		store:      st,
	}
}

// Start begins processing responses and receipts from the messaging
// service. It returns once the processing goroutine is launched; the
// goroutine runs until the context is cancelled or the responses channel
// closes.
func (r *Responder) Start(ctx context.Context) {
	slog.Info("Responder starting response processing")

	go func() {
		defer slog.Info("Responder stopped response processing")

		for {
			select {
			case resp, ok := <-r.msgService.Responses():
				if !ok {
					slog.Debug("Responder responses channel closed")
					return
				}
				if err := r.ProcessResponse(ctx, resp); err != nil {
					slog.Error("Responder failed to process response", "error", err, "from", resp.From)
				}
			case rcpt, ok := <-r.msgService.Receipts():
				if !ok {
					slog.Debug("Responder receipts channel closed")
					return
				}
				r.logReceipt(rcpt)
			case <-ctx.Done():
				slog.Debug("Responder stopping due to context cancellation")
				return
			}
		}
	}()
}

// ProcessResponse runs one incoming message through the engine and delivers
// the reply.
func (r *Responder) ProcessResponse(ctx context.Context, resp models.Response) error {
	from, err := r.msgService.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		slog.Error("Responder sender validation failed", "error", err, "from", resp.From)
		return fmt.Errorf("invalid sender: %w", err)
	}

	slog.Debug("Responder processing response", "from", from, "body_length", len(resp.Body))

	r.logMessage(from, models.DirectionInbound, resp.Body, "")

	reply := r.engine.HandleMessage(from, resp.Body)

	if err := r.msgService.SendReply(ctx, from, reply); err != nil {
		// The session has already committed; delivery is best-effort.
		slog.Error("Responder failed to deliver reply", "error", err, "from", from, "replyKind", reply.Kind)
		return fmt.Errorf("failed to deliver reply: %w", err)
	}

	stepID := ""
	if sess, ok := r.engine.Sessions().Peek(from); ok {
		stepID = sess.CurrentStepID
	}
	r.logMessage(from, models.DirectionOutbound, reply.Text, stepID)

	slog.Info("Responder reply delivered", "from", from, "replyKind", reply.Kind)
	return nil
}

// logMessage appends one entry to the persisted message log, if a store is
// configured. Failures are logged and dropped.
func (r *Responder) logMessage(userID string, direction models.MessageDirection, body, stepID string) {
	if r.store == nil {
		return
	}
	rec := models.MessageRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Direction: direction,
		Body:      body,
		StepID:    stepID,
		Time:      time.Now(),
	}
	if err := r.store.AddMessage(rec); err != nil {
		slog.Error("Responder failed to persist message", "error", err, "userID", userID, "direction", direction)
	}
}

// logReceipt persists one delivery status event, if a store is configured.
// Failures are logged and dropped.
func (r *Responder) logReceipt(rcpt models.Receipt) {
	if r.store == nil {
		return
	}
	userID, err := r.msgService.ValidateAndCanonicalizeRecipient(rcpt.To)
	if err != nil {
		slog.Warn("Responder dropping receipt with invalid recipient", "error", err, "to", rcpt.To)
		return
	}
	rec := models.ReceiptRecord{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: rcpt.Status,
		Time:   time.Unix(rcpt.Time, 0),
	}
	if err := r.store.AddReceipt(rec); err != nil {
		slog.Error("Responder failed to persist receipt", "error", err, "userID", userID, "status", rcpt.Status)
	}
}
