package models

import "time"

type ConnectionStatus string

const (
	StatusOffline   ConnectionStatus = "offline"
	StatusScanning  ConnectionStatus = "scanning"
	StatusConnected ConnectionStatus = "connected"
)

type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhaseActive   Phase = "active"
	PhaseVoting   Phase = "voting"
	PhaseFinished Phase = "finished"
)

// TurnInfo describes the single active speaking turn, if any. Token is the
// cancellation token carried by transcript updates; updates bearing a stale
// token are ignored.
type TurnInfo struct {
	Token         string   `json:"token"`
	SpeakerID     string   `json:"speakerId"`
	LineSeq       int      `json:"lineSeq"`
	ExpectedWords []string `json:"expectedWords"`
	MatchedCount  int      `json:"matchedCount"`
	Complete      bool     `json:"complete"`
}

// SessionState is the immutable snapshot handed to consumers, one per
// accepted transition. Participants preserve join order; DialogHistory
// preserves generation order.
type SessionState struct {
	ID                string           `json:"id"`
	ConnectionStatus  ConnectionStatus `json:"connectionStatus"`
	Participants      []Participant    `json:"participants"`
	DialogHistory     []DialogLine     `json:"dialogHistory"`
	CurrentPhase      Phase            `json:"currentPhase"`
	PendingVote       *VoteRequest     `json:"pendingVote,omitempty"`
	ActiveTurn        *TurnInfo        `json:"activeTurn,omitempty"`
	ScenarioID        string           `json:"scenarioId,omitempty"`
	IsPremiumUnlocked bool             `json:"isPremiumUnlocked"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

// Participant returns the participant with the given id, if present.
func (s SessionState) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}
