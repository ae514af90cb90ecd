package models

import "errors"

// Rejected operations leave session state unchanged and surface one of
// these. Each maps to a short user-presentable reason via Reason.
var (
	ErrRosterFull         = errors.New("session roster is full")
	ErrInvalidTransition  = errors.New("operation not valid in current phase")
	ErrVoteAlreadyPending = errors.New("a vote is already pending")
	ErrNoPendingVote      = errors.New("no vote is pending")
	ErrAlreadyVoted       = errors.New("ballot already cast")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrSessionFinished    = errors.New("session is finished")
	ErrStaleTurn          = errors.New("transcript update for a finished turn")
	ErrNoActiveTurn       = errors.New("no active speaking turn")

	// Generation lifecycle errors.
	ErrNotInitialized  = errors.New("generation session not initialized")
	ErrNotSupported    = errors.New("generation capability not supported")
	ErrStaleGeneration = errors.New("generation result superseded by reinit")
)

// GenericReason is what Reason falls back to for errors with no dedicated
// mapping.
const GenericReason = "Something went wrong. Please try again."

// Reason turns any rejection into a short string safe to show a user.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRosterFull):
		return "The session is full."
	case errors.Is(err, ErrInvalidTransition):
		return "You can't do that right now."
	case errors.Is(err, ErrVoteAlreadyPending):
		return "A vote is already in progress."
	case errors.Is(err, ErrNoPendingVote):
		return "There is no vote to respond to."
	case errors.Is(err, ErrAlreadyVoted):
		return "You already voted."
	case errors.Is(err, ErrUnknownParticipant):
		return "That participant is not in the session."
	case errors.Is(err, ErrSessionFinished):
		return "The session has ended."
	case errors.Is(err, ErrNotSupported):
		return "The AI director is not available on this device."
	default:
		return GenericReason
	}
}
