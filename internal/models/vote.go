package models

import "time"

type VoteKind string

const (
	VoteChangeScene VoteKind = "change_scene"
	VoteEndSession  VoteKind = "end_session"
)

type Ballot string

const (
	BallotYes     Ballot = "yes"
	BallotNo      Ballot = "no"
	BallotPending Ballot = "pending"
)

type VoteOutcome string

const (
	VoteAccepted VoteOutcome = "accepted"
	VoteRejected VoteOutcome = "rejected"
	VoteOpen     VoteOutcome = "open"
)

// VotePayload carries the proposal detail. For a scene change SceneID names
// the catalog entry to switch to; for end-session it is empty.
type VotePayload struct {
	SceneID string `json:"sceneId,omitempty"`
}

// VoteRequest is the single outstanding group-consensus proposal. It exists
// only while the session phase is Voting and is cleared on resolution.
type VoteRequest struct {
	ProposerID string            `json:"proposerId"`
	Kind       VoteKind          `json:"kind"`
	Payload    VotePayload       `json:"payload"`
	Ballots    map[string]Ballot `json:"ballots"` // participantId -> choice
	CreatedAt  time.Time         `json:"createdAt"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

func NewVoteRequest(proposerID string, kind VoteKind, payload VotePayload, timeout time.Duration) *VoteRequest {
	now := time.Now()
	return &VoteRequest{
		ProposerID: proposerID,
		Kind:       kind,
		Payload:    payload,
		Ballots:    make(map[string]Ballot),
		CreatedAt:  now,
		ExpiresAt:  now.Add(timeout),
	}
}

// Clone returns a deep copy safe to hand to snapshot consumers.
func (v *VoteRequest) Clone() *VoteRequest {
	if v == nil {
		return nil
	}
	c := *v
	c.Ballots = make(map[string]Ballot, len(v.Ballots))
	for id, b := range v.Ballots {
		c.Ballots[id] = b
	}
	return &c
}
