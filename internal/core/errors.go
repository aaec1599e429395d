package core

import (
	"errors"

	"github.com/vovakirdan/relaychat/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotRegistered  = "not_registered"
	ErrCodeRoomNotFound   = "room_not_found"
	ErrCodeNotParticipant = "not_participant"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal"
)

var (
	ErrEmptyParticipant = errors.New("participant id is required")
	ErrSameParticipant  = errors.New("participants must be two distinct users")
	ErrEmptyMessage     = errors.New("message body is required")
	ErrNotRegistered    = errors.New("connection is not registered")
	ErrRoomNotFound     = errors.New("room not found")
	ErrNotParticipant   = errors.New("user is not a participant of the room")
	ErrMixedSenders     = errors.New("read receipt batch spans several senders")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ToCoreError maps an error to the code reported to clients.
// Store and other unexpected failures are reported generically.
func ToCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrEmptyParticipant),
		errors.Is(err, ErrSameParticipant),
		errors.Is(err, ErrEmptyMessage):
		return coreError(ErrCodeBadRequest, err.Error())
	case errors.Is(err, ErrNotRegistered):
		return coreError(ErrCodeNotRegistered, err.Error())
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeRoomNotFound, ErrRoomNotFound.Error())
	case errors.Is(err, ErrNotParticipant):
		return coreError(ErrCodeNotParticipant, err.Error())
	case errors.Is(err, ErrMixedSenders):
		return coreError(ErrCodeBadRequest, err.Error())
	default:
		return coreError(ErrCodeInternal, "internal server error")
	}
}
