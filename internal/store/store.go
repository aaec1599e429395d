package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SnippetLength is the maximum number of runes kept as a message snippet.
const SnippetLength = 100

// User is a registered participant.
type User struct {
	ID                string
	DisplayName       string
	ProfileImageIndex int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Room is a direct conversation between exactly two users.
type Room struct {
	ID           string
	PairKey      string // "dm:{minUserID}:{maxUserID}"
	ParticipantA string // lexicographically smaller id
	ParticipantB string
	LastMessage  string
	LastActivity *time.Time
	CreatedAt    time.Time
}

// Counterpart returns the participant that is not userID.
func (r *Room) Counterpart(userID string) string {
	if r.ParticipantA == userID {
		return r.ParticipantB
	}
	return r.ParticipantA
}

// HasParticipant reports whether userID is one of the two participants.
func (r *Room) HasParticipant(userID string) bool {
	return r.ParticipantA == userID || r.ParticipantB == userID
}

// Message represents a persisted chat message.
type Message struct {
	ID        string
	RoomID    string
	SenderID  string
	Body      string
	IsRead    bool
	CreatedAt time.Time
}

// RoomUnread is the unread counter of one user in one room.
type RoomUnread struct {
	UserID      string
	RoomID      string
	Count       int
	LastSnippet string
	UpdatedAt   time.Time
}

// RoomSummary is one row of a user's room list.
type RoomSummary struct {
	RoomID                string
	CounterpartID         string
	CounterpartName       string
	CounterpartImageIndex int
	LastMessage           string
	UnreadCount           *int // nil when the user has no counter row for the room
	LastActivity          *time.Time
}

// Snippet truncates body to SnippetLength runes.
func Snippet(body string) string {
	runes := []rune(body)
	if len(runes) <= SnippetLength {
		return body
	}
	return string(runes[:SnippetLength])
}

// UserStore handles user persistence.
type UserStore interface {
	// UpsertUser creates the user or overwrites its display name and image index.
	UpsertUser(ctx context.Context, user *User) error

	// GetUser retrieves a user by ID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, id string) (*User, error)
}

// RoomStore handles room persistence.
type RoomStore interface {
	// GetOrCreateDirectRoom atomically finds or inserts the room for pairKey.
	// created is true only for the call whose insert won.
	GetOrCreateDirectRoom(ctx context.Context, pairKey, participantA, participantB string) (room *Room, created bool, err error)

	// GetRoomByPairKey retrieves a room by its pair key. Returns ErrNotFound if absent.
	GetRoomByPairKey(ctx context.Context, pairKey string) (*Room, error)

	// GetRoom retrieves a room by ID. Returns ErrNotFound if absent.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// ListRoomSummaries lists the rooms of userID, most recent activity first, nulls last.
	ListRoomSummaries(ctx context.Context, userID string) ([]*RoomSummary, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// SaveMessage persists a message and touches the room's last activity.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages returns the most recent limit messages of a room in chronological order.
	ListMessages(ctx context.Context, roomID string, limit int) ([]*Message, error)

	// MessageSenders returns the distinct senders of the given message ids.
	MessageSenders(ctx context.Context, ids []string) ([]string, error)

	// MarkMessagesRead flips unread messages of roomID not sent by readerID to read.
	// Returns the number of messages that transitioned.
	MarkMessagesRead(ctx context.Context, roomID, readerID string, ids []string) (int, error)
}

// UnreadStore handles unread counters.
type UnreadStore interface {
	// SaveUnreadMessage persists msg as SaveMessage does and counts it unread for
	// recipientID in the same transaction. Returns the recipient's new room count.
	SaveUnreadMessage(ctx context.Context, msg *Message, recipientID string) (int, error)

	// ReadMessages marks messages read as MarkMessagesRead does and subtracts the
	// number that transitioned from readerID's room counter in the same transaction.
	// Returns that number and the new room count.
	ReadMessages(ctx context.Context, roomID, readerID string, ids []string) (marked, count int, err error)

	// IncrementRoomUnread adds one to the counter, creating it if needed, and returns the new count.
	IncrementRoomUnread(ctx context.Context, userID, roomID, snippet string) (int, error)

	// DecrementRoomUnread subtracts delta floored at zero and returns the new count.
	// A missing counter is reported as zero.
	DecrementRoomUnread(ctx context.Context, userID, roomID string, delta int) (int, error)

	// GetRoomUnread returns the counter, zero if absent.
	GetRoomUnread(ctx context.Context, userID, roomID string) (int, error)

	// RecomputeUserUnread sets the user's total to the sum of its room counters and returns it.
	RecomputeUserUnread(ctx context.Context, userID string) (int, error)

	// GetUserUnread returns the stored total, zero if absent.
	GetUserUnread(ctx context.Context, userID string) (int, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore
	UnreadStore

	// Migrate applies the schema.
	Migrate(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
