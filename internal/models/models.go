// Package models defines the core data structures for MenuFlow.
//
// It includes the step graph node types, the engine's reply descriptor, and
// the inbound/outbound message envelopes shared across modules.
package models

import "errors"

// StepKind defines how a step behaves when a message arrives at it.
type StepKind string

const (
	// StepKindMessage shows text and advances on the next message.
	StepKindMessage StepKind = "message"
	// StepKindInput expects free text and records it.
	StepKindInput StepKind = "input"
	// StepKindButton expects one of a fixed set of option ids.
	StepKindButton StepKind = "button"
	// StepKindEnd terminates the flow; the session stays parked here.
	StepKindEnd StepKind = "end"
)

// IsValidStepKind checks if the given step kind is supported.
func IsValidStepKind(k StepKind) bool {
	switch k {
	case StepKindMessage, StepKindInput, StepKindButton, StepKindEnd:
		return true
	default:
		return false
	}
}

// Validation constants for flow definitions.
const (
	// MaxStepTextLength defines the maximum allowed length for step text
	MaxStepTextLength = 4096
	// MaxOptionLabelLength defines the maximum allowed length for option labels
	MaxOptionLabelLength = 100
	// MaxOptionsCount defines the maximum number of options per button step
	MaxOptionsCount = 10
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient  = errors.New("recipient cannot be empty")
	ErrEmptyUserID     = errors.New("user id cannot be empty")
	ErrEmptyStepID     = errors.New("step id cannot be empty")
	ErrStepTextTooLong = errors.New("step text exceeds maximum length")
)

// Option represents a selectable choice on a button step.
type Option struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Step is one node of a flow graph.
//
// Transition data depends on the kind: message and input steps carry a single
// Next target, button steps carry a Transitions mapping from option id to
// target, and end steps carry neither.
type Step struct {
	ID            string            `json:"id"`
	Kind          StepKind          `json:"kind"`
	Text          string            `json:"text"`
	Options       []Option          `json:"options,omitempty"`
	StoreKey      string            `json:"store_key,omitempty"`
	DefaultIntent string            `json:"default_intent,omitempty"`
	Next          string            `json:"next,omitempty"`
	Transitions   map[string]string `json:"transitions,omitempty"`
}

// ReplyKind classifies how a reply should be presented on the channel.
type ReplyKind string

const (
	// ReplyKindText is a plain text reply with no options.
	ReplyKindText ReplyKind = "text"
	// ReplyKindInteractive carries one or more selectable options.
	ReplyKindInteractive ReplyKind = "interactive"
	// ReplyKindEnd renders a terminal step.
	ReplyKindEnd ReplyKind = "end"
)

// Reply is the engine's sole output per processed message. It describes what
// to show the user next; delivery is the messaging adapter's concern.
type Reply struct {
	Kind    ReplyKind `json:"kind"`
	Text    string    `json:"text"`
	Options []Option  `json:"options,omitempty"`
}

// MessageStatus represents the delivery status of an outbound message.
type MessageStatus string

const (
	// MessageStatusSent indicates the message was sent.
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered indicates the message was delivered.
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead indicates the message was read.
	MessageStatusRead MessageStatus = "read"
	// MessageStatusFailed indicates the message failed to send.
	MessageStatusFailed MessageStatus = "failed"
)

// Receipt represents a delivery status event for an outbound message.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response represents an incoming message from a user, already reduced to
// plain text by the channel adapter (a button click arrives as the clicked
// option's id).
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}
