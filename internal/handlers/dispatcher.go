package handlers

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/models"
	"github.com/etonealbert/improvlingo/internal/scenario"
	"github.com/etonealbert/improvlingo/internal/security"
	"github.com/etonealbert/improvlingo/internal/services"
)

// Dispatcher routes decoded client frames to the owning session's machine.
// It runs inside the hub's loop, so per-frame work must stay short; the
// machine's operations are synchronous but fast.
type Dispatcher struct {
	registry *services.Registry
	catalog  *scenario.Catalog
	logger   *zap.Logger
}

func NewDispatcher(registry *services.Registry, catalog *scenario.Catalog, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		catalog:  catalog,
		logger:   logger,
	}
}

// Handle is the hub's MessageHandler.
func (d *Dispatcher) Handle(c *services.Client, raw []byte) {
	var frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.SendError("malformed message")
		return
	}
	if !security.IsValidMessageType(frame.Type) {
		c.SendError("unknown message type")
		return
	}

	entry, ok := d.registry.Get(c.SessionID())
	if !ok {
		c.SendError("session not found")
		return
	}

	if err := d.dispatch(entry, c, frame.Type, frame.Payload); err != nil {
		// Stale transcript frames are expected after a turn changes hands;
		// the client just hasn't seen the new state yet.
		if errors.Is(err, models.ErrStaleTurn) {
			return
		}
		c.SendError(clientReason(err))
	}
}

// clientReason maps an error to the string sent to the client. Rejections
// get their canonical reason; anything else is scrubbed of backend detail
// before it leaves the server.
func clientReason(err error) string {
	if reason := models.Reason(err); reason != models.GenericReason {
		return reason
	}
	return security.SanitizeErrorMessage(err)
}

func (d *Dispatcher) dispatch(entry *services.SessionEntry, c *services.Client, msgType string, payload json.RawMessage) error {
	m := entry.Machine

	switch msgType {
	case models.MsgTypeStartScenario:
		var p models.StartScenarioPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		scn, err := d.catalog.Get(p.ScenarioID)
		if err != nil {
			return err
		}
		return m.StartScenario(scn, p.RoleAssignments)

	case models.MsgTypeProposeVote:
		var p models.ProposeVotePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		// A scene-change proposal must name a catalog scene; otherwise an
		// accepted vote would strand the session on a scene the director
		// cannot initialize.
		if p.Kind == models.VoteChangeScene {
			if _, err := d.catalog.Get(p.Payload.SceneID); err != nil {
				return err
			}
		}
		return m.ProposeVote(c.ParticipantID(), p.Kind, p.Payload)

	case models.MsgTypeCastBallot:
		var p models.CastBallotPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		return m.CastBallot(c.ParticipantID(), p.Choice)

	case models.MsgTypeTranscript:
		var p models.TranscriptPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		text, err := security.ValidateTranscript(p.Text)
		if err != nil {
			return err
		}
		return m.UpdateTranscript(p.Token, text)

	case models.MsgTypeSkipTurn:
		// Only the participant holding the turn may skip it.
		snap := m.Snapshot()
		if snap.ActiveTurn == nil || snap.ActiveTurn.SpeakerID != c.ParticipantID() {
			return models.ErrNoActiveTurn
		}
		return m.SkipTurn()

	case models.MsgTypeEndSession:
		return m.EndSession()
	}

	return nil
}
