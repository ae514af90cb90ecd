package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/models"
	"github.com/etonealbert/improvlingo/internal/scenario"
	"github.com/etonealbert/improvlingo/internal/security"
	"github.com/etonealbert/improvlingo/internal/services"
)

// robotDisplayName is what the built-in dialog partner shows up as in solo
// sessions.
const robotDisplayName = "Dialog Partner"

type SessionHandlers struct {
	registry *services.Registry
	catalog  *scenario.Catalog
	logger   *zap.Logger
}

func NewSessionHandlers(registry *services.Registry, catalog *scenario.Catalog, logger *zap.Logger) *SessionHandlers {
	return &SessionHandlers{
		registry: registry,
		catalog:  catalog,
		logger:   logger,
	}
}

// CreateSession handles POST /api/sessions. A solo session gets a robot
// participant immediately so a single learner can start a scenario alone.
func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Premium bool `json:"premium"`
		Solo    bool `json:"solo"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	entry := h.registry.Create(req.Premium)

	var robotID string
	if req.Solo {
		robotID = uuid.NewString()
		if err := entry.Machine.Join(models.NewRobotParticipant(robotID, robotDisplayName)); err != nil {
			h.logger.Error("robot join failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"sessionId": entry.ID,
		"robotId":   robotID,
	})
}

// JoinSession handles POST /api/sessions/{sessionId}/join.
func (h *SessionHandlers) JoinSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	name, err := security.ValidateDisplayName(req.DisplayName)
	if err != nil {
		writeError(w, http.StatusBadRequest, security.SanitizeErrorMessage(err))
		return
	}

	participantID := uuid.NewString()
	if err := entry.Machine.Join(models.NewParticipant(participantID, name)); err != nil {
		status := http.StatusConflict
		if errors.Is(err, models.ErrRosterFull) {
			status = http.StatusForbidden
		}
		writeError(w, status, models.Reason(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"participantId": participantID,
	})
}

// LeaveSession handles POST /api/sessions/{sessionId}/leave.
func (h *SessionHandlers) LeaveSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		ParticipantID string `json:"participantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := security.ValidateID(req.ParticipantID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid participant id")
		return
	}

	if err := entry.Machine.Leave(req.ParticipantID); err != nil {
		writeError(w, http.StatusConflict, models.Reason(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSession handles GET /api/sessions/{sessionId}.
func (h *SessionHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.sessionFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry.Machine.Snapshot())
}

// ListScenarios handles GET /api/scenarios.
func (h *SessionHandlers) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

func (h *SessionHandlers) sessionFromPath(w http.ResponseWriter, r *http.Request) (*services.SessionEntry, bool) {
	sessionID := r.PathValue("sessionId")
	if err := security.ValidateID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	entry, ok := h.registry.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return entry, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
