package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegister binds the connection to a user identity.
	CommandRegister CommandKind = iota
	// CommandSendMessage delivers a direct message to another user.
	CommandSendMessage
	// CommandMarkRead acknowledges a batch of messages as read.
	CommandMarkRead
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// UserID is the identity to register, or the reading user for CommandMarkRead.
	UserID string

	SenderID string
	TargetID string
	Body     string

	RoomID     string
	MessageIDs []string
}
