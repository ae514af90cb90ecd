package config

import "time"

// Session and transport limits
const (
	// Roster limits. A session is 1-4 participants; in solo mode one of
	// them is the robot.
	MaxParticipantsPerSession = 4

	// Voting
	DefaultVoteTimeout = 30 * time.Second

	// Session lifecycle
	DefaultSessionIdleTTL = 30 * time.Minute
	SessionReapInterval   = time.Minute

	// Rate limiting
	MaxMessagesPerSecond = 20
	RateLimitWindow      = time.Second

	// Transcript updates arrive faster than other client messages; they
	// get their own budget so speech recognition doesn't trip the limiter.
	MaxTranscriptUpdatesPerSecond = 60

	// Timeouts
	WriteTimeout = 10 * time.Second
	PingInterval = 30 * time.Second
	PongTimeout  = 90 * time.Second // 3x ping interval for network delay tolerance

	// Channel buffers
	ClientSendBufferSize   = 256
	HubBroadcastBufferSize = 256
	MachineCommandBuffer   = 64
	SnapshotBufferSize     = 64
)
