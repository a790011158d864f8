package apperror

import (
	"context"
	"errors"
)

// Kinds. Every error surfaced by the game and member use cases unwraps to exactly one of these.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("storage unavailable")
)

var kinds = []error{
	ErrNotFound,
	ErrUnauthenticated,
	ErrForbidden,
	ErrInvalidState,
	ErrConflict,
	ErrInvalidArgument,
	ErrUnavailable,
}

var (
	ErrGameNotFound   = New(ErrNotFound, "game not found")
	ErrMemberNotFound = New(ErrNotFound, "member not found")

	ErrInvalidToken       = New(ErrUnauthenticated, "invalid or expired token")
	ErrInvalidCredentials = New(ErrUnauthenticated, "invalid credentials")

	ErrNotParticipant    = New(ErrForbidden, "you are not a participant of this game")
	ErrNotYourTurn       = New(ErrForbidden, "it's not your turn")
	ErrNotCreator        = New(ErrForbidden, "only the creator can close this game")
	ErrCannotJoinOwnGame = New(ErrForbidden, "you cannot join your own game")

	ErrGameIsNotOpen      = New(ErrInvalidState, "game is not open")
	ErrGameIsNotStarted   = New(ErrInvalidState, "game is not in progress")
	ErrGameNotFinished    = New(ErrInvalidState, "game is not finished")
	ErrGameCannotBeClosed = New(ErrInvalidState, "only open or finished games can be closed")

	ErrCellOccupied     = New(ErrConflict, "cell is already occupied")
	ErrOpponentTaken    = New(ErrConflict, "game already has an opponent")
	ErrUsernameTaken    = New(ErrConflict, "username is already taken")
	ErrConcurrentUpdate = New(ErrConflict, "game was modified concurrently, reload and retry")

	ErrInvalidCell        = New(ErrInvalidArgument, "position must be between 0 and 8")
	ErrIncompleteRoles    = New(ErrInvalidArgument, "game roles are incomplete")
	ErrInvalidUsername    = New(ErrInvalidArgument, "username must be between 1 and 150 characters")
	ErrInvalidPassword    = New(ErrInvalidArgument, "password must be at least 8 characters and at most 72 bytes")
	ErrInvalidDisplayName = New(ErrInvalidArgument, "display name must be at most 150 characters")
)

// Error is a domain error message tagged with its kind.
type Error struct {
	kind error
	msg  string
}

func New(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (that *Error) Error() string {
	return that.msg
}

func (that *Error) Unwrap() error {
	return that.kind
}

// KindOf returns the kind sentinel err unwraps to, or nil for errors outside the taxonomy.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}

// Code is the machine readable name of an error's kind.
func Code(err error) string {
	switch KindOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrForbidden:
		return "forbidden"
	case ErrInvalidState:
		return "invalid_state"
	case ErrConflict:
		return "conflict"
	case ErrInvalidArgument:
		return "invalid_argument"
	case ErrUnavailable:
		return "unavailable"
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// Message is the client facing text of err. Infrastructure details never leave the process.
func Message(err error) string {
	switch KindOf(err) {
	case nil:
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return "timed out waiting for the game, try again"
		case errors.Is(err, context.Canceled):
			return "request was canceled"
		}
		return "the server encountered a problem and could not process your request"
	case ErrUnavailable:
		return "storage is temporarily unavailable, try again later"
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}

	return KindOf(err).Error()
}
