package room

import (
	"errors"
	"fmt"
)

// JoinReason says why a join attempt was rejected.
type JoinReason string

const (
	// ReasonRoundInProgress: the room's retained lifecycle was not
	// "waiting", so joining would pollute an in-flight round.
	ReasonRoundInProgress JoinReason = "round_in_progress"
	// ReasonRoomNotFound: no retained roster snapshot arrived within the
	// join wait, so the room does not exist (or was tombstoned).
	ReasonRoomNotFound JoinReason = "room_not_found"
	// ReasonRoomFull: the roster already holds the maximum player count.
	ReasonRoomFull JoinReason = "room_full"
)

// JoinError is a recoverable rejection surfaced to the user-facing layer;
// the engine has already reverted to its pre-join state when it is returned.
type JoinError struct {
	RoomID string
	Reason JoinReason
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join %s rejected: %s", e.RoomID, e.Reason)
}

var (
	// ErrAlreadyInRoom is returned when join/create is attempted while a
	// room session is active.
	ErrAlreadyInRoom = errors.New("already in a room")
	// ErrNotInRoom is returned by operations that need an active session.
	ErrNotInRoom = errors.New("not in a room")
	// ErrInvalidName is returned when a display name fails validation.
	ErrInvalidName = errors.New("name must be 3-10 characters (letters, numbers, or _)")
)
