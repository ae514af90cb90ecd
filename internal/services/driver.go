package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/director"
	"github.com/etonealbert/improvlingo/internal/models"
	"github.com/etonealbert/improvlingo/internal/scenario"
	"github.com/etonealbert/improvlingo/internal/session"
)

const generateTimeout = 30 * time.Second

// maxLinesPerBeat caps how many director lines are staged per generation.
const maxLinesPerBeat = 6

// Driver connects one session's machine to its AI director and to the hub.
// It observes state snapshots and, when the dialog has run dry, asks the
// director for the next beat. Generation runs as an independent task that
// submits results back to the machine; the driver itself stays
// single-goroutine, so its fields need no locking.
type Driver struct {
	machine  *session.Machine
	director *director.Session
	catalog  *scenario.Catalog
	hub      *Hub
	metrics  *Metrics
	logger   *zap.Logger

	stop    chan struct{}
	genDone chan genResult

	generating     bool
	genFailed      bool
	lastScenarioID string
	lastPhase      models.Phase
	rosterSize     int
	lineStatus     map[int]models.LineStatus
	turnToken      string
	turnMatched    int
}

type genResult struct {
	lines []models.DialogLine
	err   error
}

func NewDriver(m *session.Machine, dir *director.Session, catalog *scenario.Catalog, hub *Hub, metrics *Metrics, logger *zap.Logger) *Driver {
	return &Driver{
		machine:    m,
		director:   dir,
		catalog:    catalog,
		hub:        hub,
		metrics:    metrics,
		logger:     logger.With(zap.String("session", m.ID())),
		stop:       make(chan struct{}),
		genDone:    make(chan genResult, 1),
		lineStatus: make(map[int]models.LineStatus),
	}
}

// Run consumes snapshots until the session finishes or Stop is called.
func (d *Driver) Run() {
	snaps := d.machine.Subscribe()
	for {
		select {
		case snap := <-snaps:
			d.handleSnapshot(snap)
			if snap.CurrentPhase == models.PhaseFinished {
				d.director.Dispose()
				return
			}
		case res := <-d.genDone:
			d.handleGeneration(res)
		case <-d.stop:
			d.director.Dispose()
			return
		}
	}
}

// Stop shuts the driver down; safe to call more than once.
func (d *Driver) Stop() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
}

func (d *Driver) handleSnapshot(snap models.SessionState) {
	if d.hub != nil {
		d.hub.BroadcastSessionState(snap)
	}
	d.trackTurnMetrics(snap)

	// A scenario change (start or accepted scene-change vote) re-grounds
	// the director in the new scene and clears any generation stall.
	if snap.ScenarioID != "" && snap.ScenarioID != d.lastScenarioID {
		d.lastScenarioID = snap.ScenarioID
		d.genFailed = false
		d.initializeDirector(snap)
	}
	if len(snap.Participants) != d.rosterSize {
		d.rosterSize = len(snap.Participants)
		d.genFailed = false
	}

	if d.shouldGenerate(snap) {
		d.startGeneration(snap)
	}
}

// trackTurnMetrics counts human turns settling, per-turn word progress and
// vote resolutions. Only a pending->spoken or pending->abandoned transition
// is a turn; robot lines never surface as pending in a snapshot.
func (d *Driver) trackTurnMetrics(snap models.SessionState) {
	if d.lastPhase == models.PhaseVoting && snap.CurrentPhase != models.PhaseVoting {
		d.metrics.IncrementVotesResolved()
	}
	d.lastPhase = snap.CurrentPhase

	if snap.ActiveTurn != nil {
		if snap.ActiveTurn.Token != d.turnToken {
			d.turnToken = snap.ActiveTurn.Token
			d.turnMatched = 0
		}
		if delta := snap.ActiveTurn.MatchedCount - d.turnMatched; delta > 0 {
			d.metrics.AddWordsMatched(delta)
			d.turnMatched = snap.ActiveTurn.MatchedCount
		}
	}

	for _, line := range snap.DialogHistory {
		prev, seen := d.lineStatus[line.Seq]
		d.lineStatus[line.Seq] = line.Status
		if !seen || prev != models.LinePending || prev == line.Status {
			continue
		}
		switch line.Status {
		case models.LineSpoken:
			d.metrics.IncrementTurnsCompleted()
		case models.LineAbandoned:
			d.metrics.IncrementTurnsAbandoned()
		}
	}
}

// shouldGenerate reports whether the dialog needs a new beat: the session
// is active, nobody is mid-turn, and every staged line is settled. A
// failed generation is not retried until the scenario or roster changes;
// repeated director calls have user-visible cost.
func (d *Driver) shouldGenerate(snap models.SessionState) bool {
	if d.generating || d.genFailed {
		return false
	}
	if snap.CurrentPhase != models.PhaseActive || snap.ActiveTurn != nil {
		return false
	}
	for _, line := range snap.DialogHistory {
		if line.Status == models.LinePending {
			return false
		}
	}
	return true
}

func (d *Driver) initializeDirector(snap models.SessionState) {
	scn, err := d.catalog.Get(snap.ScenarioID)
	if err != nil {
		d.logger.Warn("scenario not in catalog", zap.String("scenario", snap.ScenarioID), zap.Error(err))
		return
	}

	sc := director.SceneContext{
		Scenario:       scn.Title + ": " + scn.Setting,
		TargetLanguage: scn.TargetLanguage,
		NativeLanguage: scn.NativeLanguage,
	}
	for _, p := range snap.Participants {
		if p.IsRobot {
			sc.AIRole = p.Role
		} else if sc.UserRole == "" {
			sc.UserRole = p.Role
		}
	}
	if sc.AIRole == "" && len(scn.Roles) > 0 {
		sc.AIRole = scn.Roles[0].Name
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
		defer cancel()
		if err := d.director.Initialize(ctx, sc); err != nil {
			d.logger.Warn("director initialize failed", zap.Error(err))
		}
	}()
}

func (d *Driver) startGeneration(snap models.SessionState) {
	d.generating = true

	prompt := buildBeatPrompt(snap)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
		defer cancel()

		text, err := d.director.Generate(ctx, prompt)
		if err != nil {
			select {
			case d.genDone <- genResult{err: err}:
			case <-d.stop:
			}
			return
		}
		lines := parseDirectorReply(text, snap.Participants)
		select {
		case d.genDone <- genResult{lines: lines}:
		case <-d.stop:
		}
	}()
}

func (d *Driver) handleGeneration(res genResult) {
	d.generating = false
	if res.err != nil {
		d.metrics.IncrementGenerationFailures()
		d.genFailed = true
		d.logger.Warn("director generation failed", zap.Error(res.err))
		return
	}
	if len(res.lines) == 0 {
		d.metrics.IncrementGenerationFailures()
		d.genFailed = true
		d.logger.Warn("director reply contained no usable lines")
		return
	}
	if err := d.machine.AppendGeneratedLines(res.lines); err != nil {
		// Session moved on (vote, finish) while generating; drop the beat.
		d.logger.Debug("discarding generated lines", zap.Error(err))
		return
	}
	d.metrics.AddLinesGenerated(len(res.lines))
}

// buildBeatPrompt renders the dialog so far for the director.
func buildBeatPrompt(snap models.SessionState) string {
	var history []string
	for _, line := range snap.DialogHistory {
		if line.Status == models.LineSpoken {
			history = append(history, line.RoleName+": "+line.TextNative)
		}
	}
	var speakers []string
	for _, p := range snap.Participants {
		if p.Role != "" {
			speakers = append(speakers, p.Role)
		}
	}
	return director.BuildLinePrompt(history, speakers)
}

// parseDirectorReply extracts "role: text (hint)" lines and attributes each
// to the participant holding that role. Unattributable lines are dropped.
func parseDirectorReply(text string, participants []models.Participant) []models.DialogLine {
	byRole := make(map[string]models.Participant, len(participants))
	for _, p := range participants {
		if p.Role != "" {
			byRole[strings.ToLower(p.Role)] = p
		}
	}

	var lines []models.DialogLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		role, rest, found := strings.Cut(raw, ":")
		if !found {
			continue
		}
		speaker, ok := byRole[strings.ToLower(strings.TrimSpace(role))]
		if !ok {
			continue
		}

		native, translated := splitHint(strings.TrimSpace(rest))
		if native == "" {
			continue
		}
		lines = append(lines, models.NewDialogLine(speaker.ID, speaker.Role, native, translated))
		if len(lines) >= maxLinesPerBeat {
			break
		}
	}
	return lines
}

// splitHint peels a trailing parenthesized native-language hint off a line.
func splitHint(text string) (native, translated string) {
	if !strings.HasSuffix(text, ")") {
		return text, ""
	}
	open := strings.LastIndex(text, "(")
	if open <= 0 {
		return text, ""
	}
	native = strings.TrimSpace(text[:open])
	translated = strings.TrimSpace(text[open+1 : len(text)-1])
	return native, translated
}
