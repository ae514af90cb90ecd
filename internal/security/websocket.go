package security

import (
	"github.com/coder/websocket"

	"github.com/etonealbert/improvlingo/internal/models"
)

// Message types accepted from clients. Anything else is rejected before
// dispatch.
var validMessageTypes = map[string]bool{
	models.MsgTypeStartScenario: true,
	models.MsgTypeProposeVote:   true,
	models.MsgTypeCastBallot:    true,
	models.MsgTypeTranscript:    true,
	models.MsgTypeSkipTurn:      true,
	models.MsgTypeEndSession:    true,
}

// IsValidMessageType checks if a WebSocket message type is valid
func IsValidMessageType(msgType string) bool {
	return validMessageTypes[msgType]
}

// OriginValidator validates WebSocket connection origins
type OriginValidator struct {
	allowedPatterns []string
}

// NewOriginValidator creates a new origin validator
func NewOriginValidator(patterns []string) *OriginValidator {
	return &OriginValidator{
		allowedPatterns: patterns,
	}
}

// GetAcceptOptions returns websocket.AcceptOptions with origin patterns
func (ov *OriginValidator) GetAcceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{
		OriginPatterns: ov.allowedPatterns,
	}
}
