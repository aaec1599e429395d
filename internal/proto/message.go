package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeRegister    = "register"
	InboundTypeMessage     = "message"
	InboundTypeMessageRead = "messageRead"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventRegistered  = "registered"
	EventMessage     = "message"
	EventMessageRead = "messageRead"
)

// RegisterData binds the connection to a user identity.
type RegisterData struct {
	UserID string `json:"userId"`
}

// MessageData is a direct message from the client.
// SenderID may be omitted once the connection is registered.
type MessageData struct {
	SenderID string `json:"senderId,omitempty"`
	TargetID string `json:"targetId"`
	Message  string `json:"message"`
}

// MessageReadData acknowledges a batch of messages sent by one user.
type MessageReadData struct {
	MessageIDs []string `json:"messageIds"`
	RoomID     string   `json:"roomId"`
	UserID     string   `json:"userId,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Chat is a persisted message as seen by clients.
type Chat struct {
	ID        string    `json:"chat_id"`
	RoomID    string    `json:"room_id"`
	SenderID  string    `json:"sender_id"`
	Sender    string    `json:"sender,omitempty"` // display name, set on live events
	IsRead    bool      `json:"is_read"`
	Msg       string    `json:"msg"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomSummary is one row of a user's room list.
type RoomSummary struct {
	RoomID            string     `json:"roomId"`
	UserID            string     `json:"userId"`
	Name              string     `json:"name"`
	ProfileImageIndex int        `json:"profileImageIndex"`
	LastMsg           string     `json:"lastMsg"`
	UnreadMsgCnt      *int       `json:"unReadMsgCnt"`
	LastActivity      *time.Time `json:"lastActivity"`
}

// EventRegisteredData confirms registration.
type EventRegisteredData struct {
	UserID string `json:"userId"`
}

// EventMessageData notifies a participant about a new message.
type EventMessageData struct {
	Chat              Chat          `json:"chat"`
	TargetDisplayName string        `json:"targetDisplayName"`
	UnreadSnapshot    []RoomSummary `json:"unreadSnapshot"`
	RoomID            string        `json:"roomId,omitempty"`
}

// EventMessageReadData carries a processed read receipt.
type EventMessageReadData struct {
	TargetID   string        `json:"targetId"`
	Rooms      []RoomSummary `json:"rooms"`
	MessageIDs []string      `json:"messageIds"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
