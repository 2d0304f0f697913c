package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no live room carries the requested code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when a room already holds its required participants.
	ErrRoomFull = errors.New("room is full")
	// ErrInvalidConfig indicates a room or queue request with an unusable mode signature.
	ErrInvalidConfig = errors.New("invalid room configuration")
	// ErrParticipantNotFound is returned when a connection acts on a room it has not joined.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrCodeSpaceExhausted means no free room code was found after repeated attempts.
	ErrCodeSpaceExhausted = errors.New("no free room code available")
	// ErrMatchInProgress is returned when an idle-only change is requested mid-match.
	ErrMatchInProgress = errors.New("match already in progress")
	// ErrEmptyPool indicates the content source has no questions for a category.
	ErrEmptyPool = errors.New("question pool is empty")

	// ErrMatchNotActive is returned for submissions outside a running play cycle.
	ErrMatchNotActive = errors.New("match is not active")
	// ErrTooEarly is returned for submissions or timeouts before the server-side instant.
	ErrTooEarly = errors.New("submission before start instant")
	// ErrTooLate is returned for submissions after the end instant; the match is finished by timeout.
	ErrTooLate = errors.New("submission after end instant")
	// ErrOutOfOrder is returned when the question index is not the participant's cursor.
	ErrOutOfOrder = errors.New("question index out of order")
	// ErrRateLimited is returned when a participant resubmits inside the debounce window.
	ErrRateLimited = errors.New("submission rate limited")
)

// IsDesync reports whether err is an ordering or timing rejection. Those are dropped
// silently by the transport instead of being reported to the client.
func IsDesync(err error) bool {
	return errors.Is(err, ErrMatchNotActive) ||
		errors.Is(err, ErrTooEarly) ||
		errors.Is(err, ErrTooLate) ||
		errors.Is(err, ErrOutOfOrder) ||
		errors.Is(err, ErrRateLimited)
}
