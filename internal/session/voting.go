package session

import "github.com/etonealbert/improvlingo/internal/models"

// Resolve applies the group-consensus policy to a set of ballots:
//
//   - any No rejects immediately, without waiting for remaining ballots;
//   - a Pending ballot from a connected participant keeps the vote open,
//     unless the vote timed out, in which case Pending counts as No;
//   - a Pending ballot from a participant who has disconnected is an
//     abstention and is excluded from the unanimity requirement, so a
//     disconnect can never block acceptance indefinitely;
//   - everything else means every required participant said Yes: accepted.
func Resolve(ballots map[string]models.Ballot, connected map[string]bool, timedOut bool) models.VoteOutcome {
	for _, b := range ballots {
		if b == models.BallotNo {
			return models.VoteRejected
		}
	}

	for id, b := range ballots {
		if b != models.BallotPending {
			continue
		}
		if !connected[id] {
			continue // abstention
		}
		if timedOut {
			return models.VoteRejected
		}
		return models.VoteOpen
	}

	return models.VoteAccepted
}
