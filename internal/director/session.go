package director

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/models"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateDegraded      State = "degraded" // heavy state dropped under memory pressure
	StateDisposed      State = "disposed"
	StateNotSupported  State = "not_supported" // terminal: capability unavailable
)

// Session owns one AI-director context. It serializes lifecycle transitions
// and uses a generation epoch to discard results of calls that were in
// flight when the model state was rebuilt. Generation failures are reported
// to the caller and never retried here.
type Session struct {
	mu     sync.Mutex
	gen    Generator
	logger *zap.Logger

	state State
	epoch uint64
	scene SceneContext
}

func NewSession(gen Generator, logger *zap.Logger) *Session {
	return &Session{
		gen:    gen,
		logger: logger,
		state:  StateUninitialized,
	}
}

// Initialize sets the scene context and brings the model up. A failure here
// means the capability is unavailable; the session parks in NotSupported
// and every later Generate fails fast.
func (s *Session) Initialize(ctx context.Context, sc SceneContext) error {
	s.mu.Lock()
	if s.state == StateDisposed {
		s.mu.Unlock()
		return models.ErrNotInitialized
	}
	if s.state == StateNotSupported {
		s.mu.Unlock()
		return models.ErrNotSupported
	}
	s.state = StateInitializing
	s.scene = sc
	s.mu.Unlock()

	err := s.gen.Initialize(ctx, sc)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateNotSupported
		s.logger.Warn("director capability unavailable", zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrNotSupported, err)
	}
	if s.state != StateInitializing {
		// Disposed while initializing.
		return models.ErrNotInitialized
	}
	s.state = StateReady
	s.epoch++
	return nil
}

// Generate produces director text for the prompt. In Degraded it first
// reinitializes transparently from the stored scene context, at most once
// per call. The result is discarded if the epoch moved while the call was
// in flight.
func (s *Session) Generate(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	switch s.state {
	case StateReady:
	case StateDegraded:
		if err := s.reinitLocked(ctx); err != nil {
			s.mu.Unlock()
			return "", err
		}
	case StateNotSupported:
		s.mu.Unlock()
		return "", models.ErrNotSupported
	default:
		s.mu.Unlock()
		return "", models.ErrNotInitialized
	}
	epoch := s.epoch
	s.mu.Unlock()

	text, err := s.gen.Generate(ctx, prompt)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		s.logger.Debug("discarding stale generation result",
			zap.Uint64("callEpoch", epoch), zap.Uint64("currentEpoch", s.epoch))
		return "", models.ErrStaleGeneration
	}
	if err != nil {
		return "", fmt.Errorf("director generation failed: %w", err)
	}
	return text, nil
}

// reinitLocked rebuilds the model from the stored scene context after
// resource pressure. Called with the lock held; drops it for the blocking
// initialize and reacquires it before returning.
func (s *Session) reinitLocked(ctx context.Context) error {
	sc := s.scene
	s.state = StateInitializing
	s.mu.Unlock()

	err := s.gen.Initialize(ctx, sc)

	s.mu.Lock()
	if err != nil {
		if s.state == StateInitializing {
			s.state = StateDegraded
		}
		return fmt.Errorf("reinitialize after resource pressure: %w", err)
	}
	if s.state != StateInitializing {
		return models.ErrNotInitialized
	}
	s.state = StateReady
	s.epoch++
	s.logger.Info("director reinitialized after resource pressure", zap.Uint64("epoch", s.epoch))
	return nil
}

// HandleResourcePressure drops the heavy model state while keeping the
// scene context for lazy reinitialization. In-flight Generate calls are not
// failed; their results are invalidated once the next reinit bumps the
// epoch.
func (s *Session) HandleResourcePressure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return
	}
	s.gen.Dispose()
	s.state = StateDegraded
	s.logger.Info("director degraded under resource pressure")
}

// Dispose releases all resources. Subsequent Generate calls fail with
// ErrNotInitialized.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisposed {
		return
	}
	s.gen.Dispose()
	s.state = StateDisposed
	s.epoch++
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scene returns the stored scene context.
func (s *Session) Scene() SceneContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}
