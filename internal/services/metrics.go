package services

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics tracks transport and dialog activity across all sessions.
type Metrics struct {
	// Connection metrics
	activeConnections int64
	totalConnections  int64
	activeSessions    int64

	// Message metrics
	messagesReceived int64
	messagesSent     int64
	lastMessageTime  int64 // Unix timestamp

	// Dialog metrics
	turnsCompleted     int64
	turnsAbandoned     int64
	wordsMatched       int64
	linesGenerated     int64
	votesResolved      int64
	generationFailures int64

	// Error metrics
	connectionErrors    int64
	broadcastErrors     int64
	rateLimitViolations int64

	startTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// Connection tracking
func (m *Metrics) IncrementConnections() {
	atomic.AddInt64(&m.activeConnections, 1)
	atomic.AddInt64(&m.totalConnections, 1)
}

func (m *Metrics) DecrementConnections() {
	atomic.AddInt64(&m.activeConnections, -1)
}

func (m *Metrics) IncrementSessions() {
	atomic.AddInt64(&m.activeSessions, 1)
}

func (m *Metrics) DecrementSessions() {
	atomic.AddInt64(&m.activeSessions, -1)
}

// Message tracking
func (m *Metrics) IncrementMessagesReceived() {
	atomic.AddInt64(&m.messagesReceived, 1)
	atomic.StoreInt64(&m.lastMessageTime, time.Now().Unix())
}

func (m *Metrics) IncrementMessagesSent() {
	atomic.AddInt64(&m.messagesSent, 1)
}

// Dialog tracking
func (m *Metrics) IncrementTurnsCompleted() {
	atomic.AddInt64(&m.turnsCompleted, 1)
}

func (m *Metrics) IncrementTurnsAbandoned() {
	atomic.AddInt64(&m.turnsAbandoned, 1)
}

func (m *Metrics) AddWordsMatched(n int) {
	atomic.AddInt64(&m.wordsMatched, int64(n))
}

func (m *Metrics) AddLinesGenerated(n int) {
	atomic.AddInt64(&m.linesGenerated, int64(n))
}

func (m *Metrics) IncrementVotesResolved() {
	atomic.AddInt64(&m.votesResolved, 1)
}

func (m *Metrics) IncrementGenerationFailures() {
	atomic.AddInt64(&m.generationFailures, 1)
}

// Error tracking
func (m *Metrics) IncrementConnectionErrors() {
	atomic.AddInt64(&m.connectionErrors, 1)
}

func (m *Metrics) IncrementBroadcastErrors() {
	atomic.AddInt64(&m.broadcastErrors, 1)
}

func (m *Metrics) IncrementRateLimitViolations() {
	atomic.AddInt64(&m.rateLimitViolations, 1)
}

// MetricsSnapshot represents a point-in-time view of metrics
type MetricsSnapshot struct {
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	ActiveSessions    int64 `json:"active_sessions"`

	MessagesReceived  int64   `json:"messages_received"`
	MessagesSent      int64   `json:"messages_sent"`
	MessagesPerSecond float64 `json:"messages_per_second"`
	LastMessageTime   string  `json:"last_message_time"`

	TurnsCompleted     int64 `json:"turns_completed"`
	TurnsAbandoned     int64 `json:"turns_abandoned"`
	WordsMatched       int64 `json:"words_matched"`
	LinesGenerated     int64 `json:"lines_generated"`
	VotesResolved      int64 `json:"votes_resolved"`
	GenerationFailures int64 `json:"generation_failures"`

	ConnectionErrors    int64 `json:"connection_errors"`
	BroadcastErrors     int64 `json:"broadcast_errors"`
	RateLimitViolations int64 `json:"rate_limit_violations"`

	UptimeSeconds int64  `json:"uptime_seconds"`
	MemoryUsageMB uint64 `json:"memory_usage_mb"`
	NumGoroutines int    `json:"num_goroutines"`
}

// Snapshot returns a point-in-time view of all metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.startTime)
	messagesPerSec := float64(atomic.LoadInt64(&m.messagesReceived)) / uptime.Seconds()

	lastMsgTime := atomic.LoadInt64(&m.lastMessageTime)
	lastMsgTimeStr := "never"
	if lastMsgTime > 0 {
		lastMsgTimeStr = time.Unix(lastMsgTime, 0).Format(time.RFC3339)
	}

	return MetricsSnapshot{
		ActiveConnections:   atomic.LoadInt64(&m.activeConnections),
		TotalConnections:    atomic.LoadInt64(&m.totalConnections),
		ActiveSessions:      atomic.LoadInt64(&m.activeSessions),
		MessagesReceived:    atomic.LoadInt64(&m.messagesReceived),
		MessagesSent:        atomic.LoadInt64(&m.messagesSent),
		MessagesPerSecond:   messagesPerSec,
		LastMessageTime:     lastMsgTimeStr,
		TurnsCompleted:      atomic.LoadInt64(&m.turnsCompleted),
		TurnsAbandoned:      atomic.LoadInt64(&m.turnsAbandoned),
		WordsMatched:        atomic.LoadInt64(&m.wordsMatched),
		LinesGenerated:      atomic.LoadInt64(&m.linesGenerated),
		VotesResolved:       atomic.LoadInt64(&m.votesResolved),
		GenerationFailures:  atomic.LoadInt64(&m.generationFailures),
		ConnectionErrors:    atomic.LoadInt64(&m.connectionErrors),
		BroadcastErrors:     atomic.LoadInt64(&m.broadcastErrors),
		RateLimitViolations: atomic.LoadInt64(&m.rateLimitViolations),
		UptimeSeconds:       int64(uptime.Seconds()),
		MemoryUsageMB:       memStats.Alloc / 1024 / 1024,
		NumGoroutines:       runtime.NumGoroutine(),
	}
}
