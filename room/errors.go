// room/errors.go
package room

import "errors"

var (
	// ErrIllegalTransition covers any action that is not valid for the
	// caller's role or the room's current round state.
	ErrIllegalTransition = errors.New("illegal transition")

	ErrInvalidSubmission = errors.New("invalid submission")
	ErrAlreadySubmitted  = errors.New("already submitted")
	ErrConflict          = errors.New("conflict")
	ErrInvalidToken      = errors.New("invalid token")
	ErrRoomClosed        = errors.New("room closed")
	ErrNotFound          = errors.New("not found")
	ErrNoneAvailable     = errors.New("no open room available")
	ErrRoomFull          = errors.New("room full")
)
