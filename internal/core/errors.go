package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound   = "room_not_found"
	ErrCodeAlreadyStarted = "already_started"
	ErrCodeForbidden      = "forbidden"
	ErrCodeUpstream       = "upstream_failure"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrAlreadyStarted = errors.New("game already started")
	ErrForbidden      = errors.New("forbidden")
	ErrNotMember      = errors.New("not a member of this room")
	ErrAlreadyBound   = errors.New("session already in a room")
	ErrNotBound       = errors.New("session not in a room")
	ErrNoFreeCode     = errors.New("no free room code")
	ErrUpstream       = errors.New("avatar generation failed")
)

// Messages shown to players. Existing clients display them verbatim.
const (
	msgRoomNotFound   = "Raum nicht gefunden."
	msgAlreadyStarted = "In diesem Raum läuft bereits ein Spiel."
	msgAvatarFailed   = "Avatar konnte nicht erstellt werden."
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}

// roomErrorFor maps a join failure to the error shown to the client.
// Errors without a player-facing message return nil.
func roomErrorFor(err error) *CoreError {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return coreError(ErrCodeRoomNotFound, msgRoomNotFound, err)
	case errors.Is(err, ErrAlreadyStarted):
		return coreError(ErrCodeAlreadyStarted, msgAlreadyStarted, err)
	default:
		return nil
	}
}
