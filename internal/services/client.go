package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/config"
	"github.com/etonealbert/improvlingo/internal/models"
)

// Client represents a single WebSocket connection with its own send
// goroutine. Transcript frames get a higher rate budget than control
// frames since speech recognition emits partials continuously.
type Client struct {
	conn          *websocket.Conn
	send          chan []byte
	hub           *Hub
	sessionID     string
	participantID string
	logger        *zap.Logger

	// Rate limiting
	messageCount    int
	transcriptCount int
	rateLimitMu     sync.Mutex
	lastReset       time.Time

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	closeMu sync.Mutex
	onClose func()
}

func NewClient(conn *websocket.Conn, hub *Hub, sessionID, participantID string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		conn:          conn,
		send:          make(chan []byte, config.ClientSendBufferSize),
		hub:           hub,
		sessionID:     sessionID,
		participantID: participantID,
		logger: logger.With(
			zap.String("session", sessionID),
			zap.String("participant", participantID)),
		lastReset: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SessionID returns the session this client is attached to.
func (c *Client) SessionID() string { return c.sessionID }

// ParticipantID returns the participant bound to this connection.
func (c *Client) ParticipantID() string { return c.participantID }

// OnClose registers a hook invoked once when the connection shuts down.
// Must be set before Start.
func (c *Client) OnClose(fn func()) { c.onClose = fn }

// Start begins the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()

			if err != nil {
				c.logger.Warn("write error", zap.Error(err))
				c.hub.metrics.IncrementBroadcastErrors()
				return
			}
			c.hub.metrics.IncrementMessagesSent()

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()

			if err != nil {
				c.logger.Warn("ping error", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	for {
		readCtx, cancel := context.WithTimeout(c.ctx, config.PongTimeout)
		_, message, err := c.conn.Read(readCtx)
		cancel()

		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.logger.Debug("read error", zap.Error(err))
				c.hub.metrics.IncrementConnectionErrors()
			}
			return
		}

		if !c.checkRateLimit(message) {
			c.hub.metrics.IncrementRateLimitViolations()
			c.SendError("Rate limit exceeded. Please slow down.")
			continue
		}

		c.hub.metrics.IncrementMessagesReceived()

		c.hub.handleMessage <- &ClientMessage{
			Client:  c,
			Message: message,
		}
	}
}

// checkRateLimit verifies the client hasn't exceeded message rate limits.
// Transcript frames are counted against their own, larger budget.
func (c *Client) checkRateLimit(message []byte) bool {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	now := time.Now()
	if now.Sub(c.lastReset) > config.RateLimitWindow {
		c.messageCount = 0
		c.transcriptCount = 0
		c.lastReset = now
	}

	var probe struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(message, &probe) == nil && probe.Type == models.MsgTypeTranscript {
		c.transcriptCount++
		return c.transcriptCount <= config.MaxTranscriptUpdatesPerSecond
	}

	c.messageCount++
	return c.messageCount <= config.MaxMessagesPerSecond
}

// Send queues a message for sending to the client.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		// Channel full, client is too slow.
		c.logger.Warn("send buffer full, closing slow client")
		c.hub.metrics.IncrementBroadcastErrors()
		go c.Close()
		return false
	}
}

// SendError delivers a user-presentable error message to this client only.
func (c *Client) SendError(reason string) {
	data, err := json.Marshal(&models.WSMessage{
		Type:    models.MsgTypeError,
		Payload: models.ErrorPayload{Message: reason},
	})
	if err != nil {
		return
	}
	c.Send(data)
}

// Close cleanly shuts down the client connection.
func (c *Client) Close() {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
	c.closeMu.Unlock()

	_ = c.conn.Close(websocket.StatusNormalClosure, "")
	if c.onClose != nil {
		c.onClose()
	}
}
