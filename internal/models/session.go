// Package models defines session state structures for MenuFlow conversations.
package models

import "time"

// HistoryEntry records one captured input for observability. The transition
// algorithm never reads history back.
type HistoryEntry struct {
	StepID    string    `json:"step_id"`
	Input     string    `json:"input"`
	Timestamp time.Time `json:"timestamp"`
}

// Session tracks a single user's progress through a flow.
type Session struct {
	UserID        string            `json:"user_id"`
	CurrentStepID string            `json:"current_step_id"`
	Answers       map[string]string `json:"answers,omitempty"`
	Intent        string            `json:"intent,omitempty"`
	History       []HistoryEntry    `json:"history,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the session, safe to hand to observers while
// the original keeps being mutated.
func (s *Session) Clone() Session {
	out := *s
	if s.Answers != nil {
		out.Answers = make(map[string]string, len(s.Answers))
		for k, v := range s.Answers {
			out.Answers[k] = v
		}
	}
	if s.History != nil {
		out.History = make([]HistoryEntry, len(s.History))
		copy(out.History, s.History)
	}
	return out
}

// MessageDirection distinguishes inbound from outbound log entries.
type MessageDirection string

const (
	// DirectionInbound marks a message received from a user.
	DirectionInbound MessageDirection = "inbound"
	// DirectionOutbound marks a message sent to a user.
	DirectionOutbound MessageDirection = "outbound"
)

// SessionRecord is the persisted snapshot of a session, written by the
// persistence adapter after every committed transition.
type SessionRecord struct {
	UserID        string            `json:"user_id"`
	FlowName      string            `json:"flow_name"`
	CurrentStepID string            `json:"current_step_id"`
	Answers       map[string]string `json:"answers,omitempty"`
	Intent        string            `json:"intent,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ReceiptRecord is one persisted delivery status event for a user's
// outbound messages.
type ReceiptRecord struct {
	ID     string        `json:"id"`
	UserID string        `json:"user_id"`
	Status MessageStatus `json:"status"`
	Time   time.Time     `json:"time"`
}

// MessageRecord is one persisted message log entry.
type MessageRecord struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Direction MessageDirection `json:"direction"`
	Body      string           `json:"body"`
	StepID    string           `json:"step_id,omitempty"`
	Time      time.Time        `json:"time"`
}
