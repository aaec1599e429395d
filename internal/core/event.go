package core

import "github.com/vovakirdan/relaychat/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRegistered confirms that a connection is bound to a user.
	EventRegistered EventKind = iota
	// EventMessage notifies both participants about a new message.
	EventMessage
	// EventMessageRead notifies reader and sender about a processed read receipt.
	EventMessageRead
	// EventError notifies the initiating client about a failed command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	User    string
	Message *MessageEvent // non-nil for EventMessage
	Read    *ReadEvent    // non-nil for EventMessageRead
	Error   *CoreError
}

// MessageEvent carries a new message and the recipient's refreshed room list.
type MessageEvent struct {
	Chat       store.Message
	SenderName string
	// TargetDisplayName is the display name of the recipient's counterpart.
	TargetDisplayName string
	Rooms             []*store.RoomSummary
	// RoomID is set only when the room was created by this send.
	RoomID string
}

// ReadEvent carries the outcome of a read receipt for one recipient.
type ReadEvent struct {
	TargetID   string
	Rooms      []*store.RoomSummary
	MessageIDs []string
}
