package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/models"
	"github.com/etonealbert/improvlingo/internal/security"
	"github.com/etonealbert/improvlingo/internal/services"
)

type WSHandler struct {
	hub      *services.Hub
	registry *services.Registry
	origins  *security.OriginValidator
	logger   *zap.Logger
}

func NewWSHandler(hub *services.Hub, registry *services.Registry, origins *security.OriginValidator, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		hub:      hub,
		registry: registry,
		origins:  origins,
		logger:   logger,
	}
}

// HandleWebSocket upgrades GET /ws/{sessionId}/{participantId}. The
// participant must already have joined over REST; the socket only attaches
// them to the live session.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	participantID := r.PathValue("participantId")

	if err := security.ValidateID(sessionID); err != nil {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if err := security.ValidateID(participantID); err != nil {
		http.Error(w, "invalid participant id", http.StatusBadRequest)
		return
	}

	entry, ok := h.registry.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	snap := entry.Machine.Snapshot()
	if _, found := snap.Participant(participantID); !found {
		http.Error(w, "participant not in session", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, h.origins.GetAcceptOptions())
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := services.NewClient(conn, h.hub, sessionID, participantID, h.logger)
	client.OnClose(func() {
		if err := entry.Machine.SetConnected(participantID, false); err != nil {
			h.logger.Debug("disconnect update failed", zap.Error(err))
		}
	})

	h.hub.Register(client)
	client.Start()

	if err := entry.Machine.SetConnected(participantID, true); err != nil {
		h.logger.Warn("connect update failed", zap.Error(err))
	}

	// The broadcast triggered by SetConnected covers most reconnects, but a
	// no-op transition publishes nothing, so send the snapshot directly.
	if data, err := json.Marshal(&models.WSMessage{
		Type:      models.MsgTypeSessionState,
		SessionID: sessionID,
		Payload:   entry.Machine.Snapshot(),
	}); err == nil {
		client.Send(data)
	}
}
