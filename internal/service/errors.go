package service

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	// ErrOperatorNotFound covers both an unknown username and a username
	// that exists but does not belong to an operator.
	ErrOperatorNotFound = errors.New("operator not found")
	// ErrStateConflict means the session was not in the status the
	// operation requires. Under racing callers it reads as "someone else
	// already acted", not as a bug.
	ErrStateConflict       = errors.New("session is not in the required state")
	ErrNoOperatorAvailable = errors.New("no operator is currently available")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrNotParticipant      = errors.New("user is not a participant of this session")
	ErrSessionEnded        = errors.New("session has already ended")

	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenEmpty   = errors.New("token is empty")
)
