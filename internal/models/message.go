package models

// WSMessage is the frame exchanged with transport clients. Payload encoding
// depends on Type.
type WSMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// Client → Server message types
const (
	MsgTypeStartScenario = "start_scenario"
	MsgTypeProposeVote   = "propose_vote"
	MsgTypeCastBallot    = "cast_ballot"
	MsgTypeTranscript    = "transcript"
	MsgTypeSkipTurn      = "skip_turn"
	MsgTypeEndSession    = "end_session"
)

// Server → Client message types
const (
	MsgTypeSessionState = "session_state" // full snapshot, sent on connect and per transition
	MsgTypeError        = "error"
)

// StartScenarioPayload assigns scenario roles by participant id.
type StartScenarioPayload struct {
	ScenarioID      string            `json:"scenarioId"`
	RoleAssignments map[string]string `json:"roleAssignments"`
}

type ProposeVotePayload struct {
	Kind    VoteKind    `json:"kind"`
	Payload VotePayload `json:"payload"`
}

type CastBallotPayload struct {
	Choice Ballot `json:"choice"`
}

// TranscriptPayload carries an incremental speech-recognition result for the
// turn identified by Token.
type TranscriptPayload struct {
	Token string `json:"token"`
	Text  string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
