// Package engine implements the conversation transition algorithm.
package engine

import (
	"log/slog"
	"strings"
	"time"

	"github.com/menuflow/menuflow/internal/flow"
	"github.com/menuflow/menuflow/internal/models"
)

// Reserved control commands that reset a session from any step.
const (
	ControlCommandMenu  = "menu"
	ControlCommandStart = "start"
)

// User-facing texts for the two recoverable situations the engine handles
// itself.
const (
	// ResetHintText is returned when a session points at a step the flow no
	// longer contains.
	ResetHintText = "Something went wrong with your conversation. Send \"menu\" to start over."
	// InvalidChoicePrefix introduces the re-prompt for an unrecognized button
	// choice.
	InvalidChoicePrefix = "Please choose a valid option.\n\n"
)

// CommitListener receives a snapshot of every committed session change.
// Listeners run after the in-memory commit; their failures are theirs to
// handle and never roll the session back.
type CommitListener interface {
	SessionCommitted(snapshot models.Session)
}

// Engine owns one session per user and computes, for each incoming message,
// the user's next position in the flow and the reply to show them.
type Engine struct {
	flow      *flow.Flow
	sessions  *SessionStore
	listeners []CommitListener
}

// New creates an Engine over a validated flow definition.
func New(f *flow.Flow) *Engine {
	return &Engine{
		flow:     f,
		sessions: NewSessionStore(f.StartStepID()),
	}
}

// AddListener registers a commit listener. Not safe to call after message
// processing has started.
func (e *Engine) AddListener(l CommitListener) {
	e.listeners = append(e.listeners, l)
}

// Flow returns the flow definition the engine runs.
func (e *Engine) Flow() *flow.Flow { return e.flow }

// Sessions returns the engine's session store for read-only observation.
func (e *Engine) Sessions() *SessionStore { return e.sessions }

// IsControlCommand reports whether text is a reserved reset command.
// Matching is case-insensitive but otherwise exact.
func IsControlCommand(text string) bool {
	return strings.EqualFold(text, ControlCommandMenu) || strings.EqualFold(text, ControlCommandStart)
}

// HandleMessage runs one transition for userID with the given raw message
// text and returns the reply to deliver. The in-memory session mutation is
// committed before HandleMessage returns; downstream delivery failures must
// not undo it.
func (e *Engine) HandleMessage(userID, messageText string) models.Reply {
	slog.Debug("Engine HandleMessage invoked", "userID", userID, "body_length", len(messageText))

	// Control commands win over any in-progress step, including button steps
	// awaiting a choice.
	if IsControlCommand(messageText) {
		e.sessions.Reset(userID)
		sess := e.sessions.GetOrCreate(userID)
		reply := e.render(e.flow.Start(), sess)
		e.notifyCommitted(sess)
		slog.Info("Engine session reset by control command", "userID", userID, "command", strings.ToLower(messageText))
		return reply
	}

	sess := e.sessions.GetOrCreate(userID)

	current, err := e.flow.ResolveStep(sess.CurrentStepID)
	if err != nil {
		// Stale or foreign session state; instruct the user to reset rather
		// than failing past this boundary.
		slog.Error("Engine session points at unknown step", "error", err, "userID", userID, "stepID", sess.CurrentStepID)
		return models.Reply{Kind: models.ReplyKindText, Text: ResetHintText}
	}

	// Record the raw input before computing the transition. For button steps
	// this stores the option id the user sent, not the option's label.
	if current.StoreKey != "" {
		sess.Answers[current.StoreKey] = messageText
		sess.History = append(sess.History, models.HistoryEntry{
			StepID:    current.ID,
			Input:     messageText,
			Timestamp: time.Now(),
		})
		if sess.Intent == "" && current.DefaultIntent != "" {
			sess.Intent = current.DefaultIntent
			slog.Debug("Engine default intent recorded", "userID", userID, "intent", sess.Intent, "stepID", current.ID)
		}
	}

	var nextID string
	switch current.Kind {
	case models.StepKindButton:
		// Option matching is exact-string and case-sensitive against the raw
		// message text. An option without a mapped transition is a deliberate
		// invalid-choice case.
		target, ok := current.Transitions[messageText]
		if !ok {
			sess.UpdatedAt = time.Now()
			reply := models.Reply{
				Kind:    models.ReplyKindInteractive,
				Text:    InvalidChoicePrefix + flow.Interpolate(current.Text, sess.Answers),
				Options: cloneOptions(current.Options),
			}
			e.notifyCommitted(sess)
			slog.Info("Engine invalid button choice, re-prompting", "userID", userID, "stepID", current.ID)
			return reply
		}
		// The explicit user choice is authoritative: it overwrites any intent
		// recorded earlier, including this message's own default-intent write.
		if e.flow.HasIntent(messageText) {
			sess.Intent = messageText
			slog.Debug("Engine intent set from button choice", "userID", userID, "intent", sess.Intent)
		}
		nextID = target
	case models.StepKindInput, models.StepKindMessage:
		nextID = current.Next
	case models.StepKindEnd:
		// Terminal steps stay put; arbitrary text re-renders them.
		nextID = current.ID
	}

	next, err := e.flow.ResolveStep(nextID)
	if err != nil {
		// Unreachable for a validated flow, but never propagate past here.
		slog.Error("Engine transition target missing", "error", err, "userID", userID, "from", current.ID, "to", nextID)
		return models.Reply{Kind: models.ReplyKindText, Text: ResetHintText}
	}

	sess.CurrentStepID = next.ID
	sess.UpdatedAt = time.Now()
	reply := e.render(next, sess)
	e.notifyCommitted(sess)

	slog.Info("Engine transition committed", "userID", userID, "from", current.ID, "to", next.ID, "replyKind", reply.Kind)
	return reply
}

// render interpolates a step's template with the session's answers and builds
// the reply descriptor.
func (e *Engine) render(step models.Step, sess *models.Session) models.Reply {
	text := flow.Interpolate(step.Text, sess.Answers)
	switch {
	case step.Kind == models.StepKindEnd:
		return models.Reply{Kind: models.ReplyKindEnd, Text: text}
	case len(step.Options) > 0:
		return models.Reply{Kind: models.ReplyKindInteractive, Text: text, Options: cloneOptions(step.Options)}
	default:
		return models.Reply{Kind: models.ReplyKindText, Text: text}
	}
}

// notifyCommitted hands a snapshot of the committed session to every
// listener. Listener errors are the listener's concern.
func (e *Engine) notifyCommitted(sess *models.Session) {
	if len(e.listeners) == 0 {
		return
	}
	snapshot := sess.Clone()
	for _, l := range e.listeners {
		l.SessionCommitted(snapshot)
	}
}

func cloneOptions(opts []models.Option) []models.Option {
	if len(opts) == 0 {
		return nil
	}
	out := make([]models.Option, len(opts))
	copy(out, opts)
	return out
}
