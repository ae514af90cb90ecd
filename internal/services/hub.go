package services

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/config"
	"github.com/etonealbert/improvlingo/internal/models"
)

// MessageHandler consumes raw frames received from clients. Invoked from
// the hub's run loop, one message at a time.
type MessageHandler func(c *Client, raw []byte)

// Hub fans session state out to connected clients and funnels their
// messages to the dispatcher. Connections are grouped per session.
type Hub struct {
	// Session connections: sessionId -> set of clients
	sessions map[string]map[*Client]bool

	broadcast     chan *BroadcastMessage
	register      chan *Client
	unregister    chan *Client
	handleMessage chan *ClientMessage

	handler MessageHandler
	metrics *Metrics
	logger  *zap.Logger
}

type BroadcastMessage struct {
	SessionID string
	Message   *models.WSMessage
}

type ClientMessage struct {
	Client  *Client
	Message []byte
}

func NewHub(handler MessageHandler, metrics *Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		sessions:      make(map[string]map[*Client]bool),
		broadcast:     make(chan *BroadcastMessage, config.HubBroadcastBufferSize),
		register:      make(chan *Client, 64),
		unregister:    make(chan *Client, 64),
		handleMessage: make(chan *ClientMessage, config.HubBroadcastBufferSize),
		handler:       handler,
		metrics:       metrics,
		logger:        logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)

		case msg := <-h.broadcast:
			h.broadcastToSession(msg)

		case cm := <-h.handleMessage:
			if h.handler != nil {
				h.handler(cm.Client, cm.Message)
			}
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	if h.sessions[c.sessionID] == nil {
		h.sessions[c.sessionID] = make(map[*Client]bool)
	}
	h.sessions[c.sessionID][c] = true
	h.metrics.IncrementConnections()

	h.logger.Info("websocket registered",
		zap.String("session", c.sessionID),
		zap.String("participant", c.participantID),
		zap.Int("sessionConnections", len(h.sessions[c.sessionID])))
}

func (h *Hub) unregisterClient(c *Client) {
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		return
	}
	if _, exists := clients[c]; !exists {
		return
	}
	delete(clients, c)
	h.metrics.DecrementConnections()
	c.Close()

	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
}

func (h *Hub) broadcastToSession(msg *BroadcastMessage) {
	clients := h.sessions[msg.SessionID]
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg.Message)
	if err != nil {
		h.logger.Error("marshal broadcast", zap.Error(err))
		h.metrics.IncrementBroadcastErrors()
		return
	}

	for c := range clients {
		c.Send(data)
	}
}

// BroadcastSessionState pushes a state snapshot to every client of the
// session.
func (h *Hub) BroadcastSessionState(snap models.SessionState) {
	h.broadcast <- &BroadcastMessage{
		SessionID: snap.ID,
		Message: &models.WSMessage{
			Type:      models.MsgTypeSessionState,
			SessionID: snap.ID,
			Payload:   snap,
		},
	}
}

func (h *Hub) Register(c *Client) {
	h.register <- c
}

func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
