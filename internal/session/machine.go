// Package session implements the dialog session state machine. The machine
// is a serialized actor: transport and generation tasks submit operations
// that are applied one at a time in arrival order, so no two mutations ever
// interleave. Every accepted transition publishes an immutable SessionState
// snapshot; rejected operations return a typed error and leave state
// untouched.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/config"
	"github.com/etonealbert/improvlingo/internal/match"
	"github.com/etonealbert/improvlingo/internal/models"
	"github.com/etonealbert/improvlingo/internal/scenario"
)

// Options configure a machine. Zero values fall back to defaults.
type Options struct {
	Logger          *zap.Logger
	VoteTimeout     time.Duration
	PremiumUnlocked bool
}

// turnState is the live speaking turn. The token is handed to the speech
// layer; transcript updates carrying any other token belong to a finished
// turn and are rejected with ErrStaleTurn.
type turnState struct {
	token     string
	speakerID string
	lineSeq   int
	matcher   *match.Matcher
}

type command struct {
	apply func() error
	reply chan error
}

// Machine owns the state of one dialog session.
type Machine struct {
	id          string
	logger      *zap.Logger
	voteTimeout time.Duration

	cmds chan command
	stop chan struct{}

	// Everything below is owned by the run loop goroutine.
	phase        models.Phase
	connStatus   models.ConnectionStatus
	participants []models.Participant
	history      []models.DialogLine
	pendingVote  *models.VoteRequest
	scenarioID   string
	scn          *scenario.Scenario
	premium      bool
	turn         *turnState
	nextSeq      int

	voteTimer *time.Timer
	voteEpoch uint64
	updatedAt time.Time

	subs []chan models.SessionState
}

// New creates a machine in Setup and starts its run loop. Call Close when
// the session is torn down.
func New(id string, opts Options) *Machine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	voteTimeout := opts.VoteTimeout
	if voteTimeout <= 0 {
		voteTimeout = config.DefaultVoteTimeout
	}

	m := &Machine{
		id:          id,
		logger:      logger.With(zap.String("session", id)),
		voteTimeout: voteTimeout,
		cmds:        make(chan command, config.MachineCommandBuffer),
		stop:        make(chan struct{}),
		phase:       models.PhaseSetup,
		connStatus:  models.StatusOffline,
		premium:     opts.PremiumUnlocked,
		updatedAt:   time.Now(),
	}
	go m.run()
	return m
}

func (m *Machine) run() {
	for {
		select {
		case cmd := <-m.cmds:
			cmd.reply <- cmd.apply()
		case <-m.stop:
			if m.voteTimer != nil {
				m.voteTimer.Stop()
			}
			return
		}
	}
}

// do submits an operation to the run loop and waits for its result. Every
// public operation goes through here, which is what serializes mutations.
func (m *Machine) do(fn func() error) error {
	cmd := command{apply: fn, reply: make(chan error, 1)}
	select {
	case m.cmds <- cmd:
	case <-m.stop:
		return models.ErrSessionFinished
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-m.stop:
		return models.ErrSessionFinished
	}
}

// ID returns the session id.
func (m *Machine) ID() string { return m.id }

// Close stops the run loop. The machine must not be used afterwards.
func (m *Machine) Close() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
}

// Subscribe returns a channel receiving one snapshot per accepted
// transition, starting with the current state. Slow consumers miss
// intermediate snapshots rather than blocking the machine.
func (m *Machine) Subscribe() <-chan models.SessionState {
	ch := make(chan models.SessionState, config.SnapshotBufferSize)
	_ = m.do(func() error {
		m.subs = append(m.subs, ch)
		ch <- m.snapshotLocked()
		return nil
	})
	return ch
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() models.SessionState {
	var snap models.SessionState
	err := m.do(func() error {
		snap = m.snapshotLocked()
		return nil
	})
	if err != nil {
		snap.ID = m.id
		snap.CurrentPhase = models.PhaseFinished
	}
	return snap
}

// Join adds a participant. Valid in Setup and Active (late join); duplicate
// join of the same id is a no-op.
func (m *Machine) Join(p models.Participant) error {
	return m.do(func() error {
		switch m.phase {
		case models.PhaseSetup, models.PhaseActive:
		case models.PhaseFinished:
			return models.ErrSessionFinished
		default:
			return models.ErrInvalidTransition
		}
		for _, existing := range m.participants {
			if existing.ID == p.ID {
				return nil // idempotent
			}
		}
		if len(m.participants) >= config.MaxParticipantsPerSession {
			return models.ErrRosterFull
		}
		p.Connection = models.ParticipantConnected
		if p.JoinedAt.IsZero() {
			p.JoinedAt = time.Now()
		}
		m.participants = append(m.participants, p)
		m.connStatus = models.StatusConnected
		m.logger.Info("participant joined",
			zap.String("participant", p.ID), zap.Int("roster", len(m.participants)))
		m.publish()
		return nil
	})
}

// Leave removes a participant. If they were the active speaker the current
// line is recorded as abandoned and the dialog advances. If they held a
// pending ballot the vote is re-resolved without them.
func (m *Machine) Leave(participantID string) error {
	return m.do(func() error {
		idx := -1
		for i, p := range m.participants {
			if p.ID == participantID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return models.ErrUnknownParticipant
		}
		m.participants = append(m.participants[:idx], m.participants[idx+1:]...)
		m.logger.Info("participant left",
			zap.String("participant", participantID), zap.Int("roster", len(m.participants)))

		if m.turn != nil && m.turn.speakerID == participantID {
			m.abandonTurn()
			m.advanceDialog()
		}

		if m.phase == models.PhaseVoting && m.pendingVote != nil {
			delete(m.pendingVote.Ballots, participantID)
			m.resolveVote(false)
		}

		if len(m.participants) == 0 {
			m.finish()
		} else {
			m.publish()
		}
		return nil
	})
}

// SetConnected marks a participant's transport link up or down without
// removing them from the roster. A disconnect during Voting re-resolves the
// vote, since the absent ballot becomes an abstention.
func (m *Machine) SetConnected(participantID string, connected bool) error {
	return m.do(func() error {
		idx := -1
		for i, p := range m.participants {
			if p.ID == participantID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return models.ErrUnknownParticipant
		}
		state := models.ParticipantDisconnected
		if connected {
			state = models.ParticipantConnected
		}
		if m.participants[idx].Connection == state {
			return nil
		}
		m.participants[idx].Connection = state

		if m.phase == models.PhaseVoting && !connected {
			m.resolveVote(false)
		}
		m.publish()
		return nil
	})
}

// SetConnectionStatus reports the transport discovery state (offline,
// scanning, connected). Submitted by the transport layer.
func (m *Machine) SetConnectionStatus(status models.ConnectionStatus) error {
	return m.do(func() error {
		if m.connStatus == status {
			return nil
		}
		m.connStatus = status
		m.publish()
		return nil
	})
}

// StartScenario moves Setup -> Active. Every participant must be assigned a
// role that the scenario defines.
func (m *Machine) StartScenario(scn *scenario.Scenario, roleAssignments map[string]string) error {
	return m.do(func() error {
		if m.phase != models.PhaseSetup {
			return models.ErrInvalidTransition
		}
		if len(m.participants) == 0 {
			return models.ErrInvalidTransition
		}
		for _, p := range m.participants {
			roleName, ok := roleAssignments[p.ID]
			if !ok {
				return fmt.Errorf("%w: participant %s has no role", models.ErrInvalidTransition, p.ID)
			}
			if _, ok := scn.Role(roleName); !ok {
				return fmt.Errorf("%w: scenario %s has no role %q", models.ErrInvalidTransition, scn.ID, roleName)
			}
		}
		for i := range m.participants {
			m.participants[i].Role = roleAssignments[m.participants[i].ID]
		}
		m.scn = scn
		m.scenarioID = scn.ID
		m.phase = models.PhaseActive
		m.logger.Info("scenario started", zap.String("scenario", scn.ID))
		m.publish()
		return nil
	})
}

// AppendGeneratedLines appends director output to the dialog history in
// production order and opens a turn for the first pending human line. Robot
// lines are marked spoken immediately.
func (m *Machine) AppendGeneratedLines(lines []models.DialogLine) error {
	return m.do(func() error {
		if m.phase != models.PhaseActive {
			return models.ErrInvalidTransition
		}
		for _, line := range lines {
			line.Seq = m.nextSeq
			m.nextSeq++
			if line.CreatedAt.IsZero() {
				line.CreatedAt = time.Now()
			}
			line.Status = models.LinePending
			m.history = append(m.history, line)
		}
		m.advanceDialog()
		m.publish()
		return nil
	})
}

// UpdateTranscript feeds an incremental speech-recognition result for the
// turn identified by token. Updates for a finished turn return ErrStaleTurn
// and are discarded by the caller without user-visible effect.
func (m *Machine) UpdateTranscript(token, text string) error {
	return m.do(func() error {
		if m.phase != models.PhaseActive || m.turn == nil {
			return models.ErrStaleTurn
		}
		if m.turn.token != token {
			return models.ErrStaleTurn
		}
		progress := m.turn.matcher.Update(text)
		if progress.Complete {
			m.completeTurn()
			m.advanceDialog()
		}
		m.publish()
		return nil
	})
}

// SkipTurn abandons the current line and advances. Used when a speaker
// gives up on a line.
func (m *Machine) SkipTurn() error {
	return m.do(func() error {
		if m.phase != models.PhaseActive || m.turn == nil {
			return models.ErrNoActiveTurn
		}
		m.abandonTurn()
		m.advanceDialog()
		m.publish()
		return nil
	})
}

// ProposeVote opens a group vote and moves Active -> Voting. All other
// connected human participants start Pending; the proposer is an implicit
// Yes.
func (m *Machine) ProposeVote(proposerID string, kind models.VoteKind, payload models.VotePayload) error {
	return m.do(func() error {
		if m.phase == models.PhaseVoting {
			return models.ErrVoteAlreadyPending
		}
		if m.phase != models.PhaseActive {
			return models.ErrInvalidTransition
		}
		proposer, ok := m.findParticipant(proposerID)
		if !ok {
			return models.ErrUnknownParticipant
		}
		if proposer.IsRobot {
			return models.ErrUnknownParticipant
		}
		if kind == models.VoteChangeScene && payload.SceneID == "" {
			return fmt.Errorf("%w: scene change needs a scene id", models.ErrInvalidTransition)
		}

		vote := models.NewVoteRequest(proposerID, kind, payload, m.voteTimeout)
		vote.Ballots[proposerID] = models.BallotYes
		for _, p := range m.participants {
			if p.ID == proposerID || p.IsRobot {
				continue
			}
			vote.Ballots[p.ID] = models.BallotPending
		}
		m.pendingVote = vote
		m.phase = models.PhaseVoting
		m.startVoteTimer()
		m.logger.Info("vote proposed",
			zap.String("proposer", proposerID), zap.String("kind", string(kind)))

		// A solo proposer resolves instantly.
		m.resolveVote(false)
		m.publish()
		return nil
	})
}

// CastBallot records a Yes/No choice for a participant with a pending
// ballot and resolves the vote if it is now decided.
func (m *Machine) CastBallot(participantID string, choice models.Ballot) error {
	return m.do(func() error {
		if m.phase != models.PhaseVoting || m.pendingVote == nil {
			return models.ErrNoPendingVote
		}
		if choice != models.BallotYes && choice != models.BallotNo {
			return fmt.Errorf("%w: ballot must be yes or no", models.ErrInvalidTransition)
		}
		current, ok := m.pendingVote.Ballots[participantID]
		if !ok {
			return models.ErrUnknownParticipant
		}
		if current != models.BallotPending {
			return models.ErrAlreadyVoted
		}
		m.pendingVote.Ballots[participantID] = choice
		m.resolveVote(false)
		m.publish()
		return nil
	})
}

// CancelVote lets the proposer withdraw the pending vote; the session
// returns to Active with nothing applied.
func (m *Machine) CancelVote(proposerID string) error {
	return m.do(func() error {
		if m.phase != models.PhaseVoting || m.pendingVote == nil {
			return models.ErrNoPendingVote
		}
		if m.pendingVote.ProposerID != proposerID {
			return models.ErrUnknownParticipant
		}
		m.clearVote()
		m.phase = models.PhaseActive
		m.logger.Info("vote cancelled by proposer", zap.String("proposer", proposerID))
		m.publish()
		return nil
	})
}

// EndSession force-terminates from any phase. Always succeeds.
func (m *Machine) EndSession() error {
	return m.do(func() error {
		m.finish()
		return nil
	})
}

// findParticipant looks up a roster entry. Loop-goroutine only.
func (m *Machine) findParticipant(id string) (models.Participant, bool) {
	for _, p := range m.participants {
		if p.ID == id {
			return p, true
		}
	}
	return models.Participant{}, false
}

// advanceDialog walks the history from the first pending line: robot lines
// are spoken immediately, lines whose speaker has left are abandoned, and
// the first line owned by a present human opens a fresh turn. At most one
// turn is ever open.
func (m *Machine) advanceDialog() {
	if m.turn != nil {
		return
	}
	for i := range m.history {
		line := &m.history[i]
		if line.Status != models.LinePending {
			continue
		}
		speaker, present := m.findParticipant(line.SpeakerID)
		switch {
		case !present:
			line.Status = models.LineAbandoned
		case speaker.IsRobot:
			// TTS playback is an external concern; the line counts as
			// spoken as soon as it is staged.
			line.Status = models.LineSpoken
		default:
			m.turn = &turnState{
				token:     uuid.NewString(),
				speakerID: line.SpeakerID,
				lineSeq:   line.Seq,
				matcher:   match.NewMatcher(line.TextNative),
			}
			return
		}
	}
}

// completeTurn marks the active line spoken and invalidates the turn token.
func (m *Machine) completeTurn() {
	if m.turn == nil {
		return
	}
	if line := m.lineBySeq(m.turn.lineSeq); line != nil {
		line.Status = models.LineSpoken
	}
	m.logger.Debug("turn completed",
		zap.String("speaker", m.turn.speakerID), zap.Int("line", m.turn.lineSeq))
	m.turn = nil
}

// abandonTurn records the active line as abandoned and invalidates the turn
// token, so late transcript callbacks for it are rejected.
func (m *Machine) abandonTurn() {
	if m.turn == nil {
		return
	}
	if line := m.lineBySeq(m.turn.lineSeq); line != nil {
		line.Status = models.LineAbandoned
	}
	m.logger.Debug("turn abandoned",
		zap.String("speaker", m.turn.speakerID), zap.Int("line", m.turn.lineSeq))
	m.turn = nil
}

func (m *Machine) lineBySeq(seq int) *models.DialogLine {
	for i := range m.history {
		if m.history[i].Seq == seq {
			return &m.history[i]
		}
	}
	return nil
}

// resolveVote runs the consensus policy and applies the outcome. Keeps the
// pendingVote-iff-Voting invariant: the vote is cleared on any resolution.
func (m *Machine) resolveVote(timedOut bool) {
	if m.pendingVote == nil {
		return
	}
	connected := make(map[string]bool, len(m.participants))
	for _, p := range m.participants {
		connected[p.ID] = p.IsConnected()
	}

	outcome := Resolve(m.pendingVote.Ballots, connected, timedOut)
	if outcome == models.VoteOpen {
		return
	}

	vote := m.pendingVote
	m.clearVote()
	m.logger.Info("vote resolved",
		zap.String("kind", string(vote.Kind)), zap.String("outcome", string(outcome)))

	if outcome == models.VoteRejected {
		m.phase = models.PhaseActive
		return
	}

	switch vote.Kind {
	case models.VoteEndSession:
		m.finish()
	case models.VoteChangeScene:
		// Destructive scene change: nothing of the old scene carries
		// over. The in-progress line and every still-pending line are
		// abandoned so the next staged beat belongs to the new scene.
		m.abandonTurn()
		for i := range m.history {
			if m.history[i].Status == models.LinePending {
				m.history[i].Status = models.LineAbandoned
			}
		}
		m.scenarioID = vote.Payload.SceneID
		m.scn = nil // re-resolved by the session driver against the catalog
		m.phase = models.PhaseActive
	default:
		m.phase = models.PhaseActive
	}
}

func (m *Machine) startVoteTimer() {
	m.voteEpoch++
	epoch := m.voteEpoch
	if m.voteTimer != nil {
		m.voteTimer.Stop()
	}
	m.voteTimer = time.AfterFunc(m.voteTimeout, func() {
		// Submitted like any other event; a stale epoch means the vote
		// already resolved and the timeout is ignored.
		_ = m.do(func() error {
			if m.voteEpoch != epoch || m.phase != models.PhaseVoting {
				return nil
			}
			m.resolveVote(true)
			m.publish()
			return nil
		})
	})
}

func (m *Machine) clearVote() {
	m.pendingVote = nil
	if m.voteTimer != nil {
		m.voteTimer.Stop()
		m.voteTimer = nil
	}
	m.voteEpoch++
}

// finish moves to the terminal phase. Safe to call repeatedly.
func (m *Machine) finish() {
	if m.phase == models.PhaseFinished {
		return
	}
	m.abandonTurn()
	m.clearVote()
	m.phase = models.PhaseFinished
	m.logger.Info("session finished")
	m.publish()
}

// snapshotLocked builds an immutable copy of the current state.
// Loop-goroutine only.
func (m *Machine) snapshotLocked() models.SessionState {
	snap := models.SessionState{
		ID:                m.id,
		ConnectionStatus:  m.connStatus,
		CurrentPhase:      m.phase,
		PendingVote:       m.pendingVote.Clone(),
		ScenarioID:        m.scenarioID,
		IsPremiumUnlocked: m.premium,
		UpdatedAt:         m.updatedAt,
	}
	snap.Participants = make([]models.Participant, len(m.participants))
	copy(snap.Participants, m.participants)
	snap.DialogHistory = make([]models.DialogLine, len(m.history))
	copy(snap.DialogHistory, m.history)

	if m.turn != nil {
		progress := m.turn.matcher.Progress()
		snap.ActiveTurn = &models.TurnInfo{
			Token:         m.turn.token,
			SpeakerID:     m.turn.speakerID,
			LineSeq:       m.turn.lineSeq,
			ExpectedWords: progress.ExpectedWords,
			MatchedCount:  progress.MatchedCount,
			Complete:      progress.Complete,
		}
	}
	return snap
}

// publish fans the current snapshot out to subscribers. A full subscriber
// buffer drops the update for that subscriber instead of blocking the loop.
func (m *Machine) publish() {
	m.updatedAt = time.Now()
	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
