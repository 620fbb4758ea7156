// Package store provides the engine commit listener that persists sessions.
package store

import (
	"log/slog"

	"github.com/menuflow/menuflow/internal/models"
)

// Recorder subscribes to engine commits and persists session snapshots.
// Persistence is best-effort: a failed write is logged and dropped, never
// surfaced back into the transition that produced it.
type Recorder struct {
	store    Store
	flowName string
}

// NewRecorder creates a Recorder writing to the given store.
func NewRecorder(st Store, flowName string) *Recorder {
	return &Recorder{store: st, flowName: flowName}
}

// SessionCommitted persists the committed session snapshot.
func (r *Recorder) SessionCommitted(snapshot models.Session) {
	rec := models.SessionRecord{
		UserID:        snapshot.UserID,
		FlowName:      r.flowName,
		CurrentStepID: snapshot.CurrentStepID,
		Answers:       snapshot.Answers,
		Intent:        snapshot.Intent,
		CreatedAt:     snapshot.CreatedAt,
		UpdatedAt:     snapshot.UpdatedAt,
	}
	if err := r.store.SaveSession(rec); err != nil {
		slog.Error("Recorder failed to persist session snapshot", "error", err, "userID", snapshot.UserID)
		return
	}
	slog.Debug("Recorder persisted session snapshot", "userID", snapshot.UserID, "step", snapshot.CurrentStepID)
}
