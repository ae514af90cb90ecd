package models

import "time"

type ConnectionState string

const (
	ParticipantConnected    ConnectionState = "connected"
	ParticipantDisconnected ConnectionState = "disconnected"
)

// Participant is a member of a dialog session. Identity is stable for the
// session lifetime and never reused after the participant leaves.
type Participant struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Role        string          `json:"role"` // assigned scenario role name
	IsLocalUser bool            `json:"isLocalUser"`
	IsRobot     bool            `json:"isRobot"`
	Connection  ConnectionState `json:"connection"`
	JoinedAt    time.Time       `json:"joinedAt"`
}

func NewParticipant(id, displayName string) Participant {
	return Participant{
		ID:          id,
		DisplayName: displayName,
		Connection:  ParticipantConnected,
		JoinedAt:    time.Now(),
	}
}

// NewRobotParticipant creates the AI stand-in used in solo mode. Robots are
// always connected and never hold a ballot.
func NewRobotParticipant(id, displayName string) Participant {
	p := NewParticipant(id, displayName)
	p.IsRobot = true
	return p
}

func (p Participant) IsConnected() bool {
	return p.Connection == ParticipantConnected
}
