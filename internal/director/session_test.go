package director_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/director"
	"github.com/etonealbert/improvlingo/internal/models"
)

// fakeGenerator lets tests control initialization failures and block
// generation mid-flight.
type fakeGenerator struct {
	mu        sync.Mutex
	initErr   error
	genErr    error
	reply     string
	initCalls int
	disposed  int
	blockGen  chan struct{} // when set, Generate waits until closed
	started   chan struct{} // when set, signaled once Generate has begun
}

func (f *fakeGenerator) Initialize(ctx context.Context, sc director.SceneContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	return f.initErr
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	block := f.blockGen
	started := f.started
	reply, genErr := f.reply, f.genErr
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return reply, genErr
}

func (f *fakeGenerator) Dispose() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed++
}

func newTestScene() director.SceneContext {
	return director.SceneContext{
		Scenario:       "ordering coffee",
		UserRole:       "customer",
		AIRole:         "barista",
		TargetLanguage: "Spanish",
		NativeLanguage: "English",
	}
}

func TestSession_Lifecycle(t *testing.T) {
	gen := &fakeGenerator{reply: "Hola, ¿qué te gustaría?"}
	s := director.NewSession(gen, zap.NewNop())

	assert.Equal(t, director.StateUninitialized, s.State())

	require.NoError(t, s.Initialize(context.Background(), newTestScene()))
	assert.Equal(t, director.StateReady, s.State())

	text, err := s.Generate(context.Background(), "next line")
	require.NoError(t, err)
	assert.Equal(t, "Hola, ¿qué te gustaría?", text)
}

func TestSession_GenerateBeforeInitialize(t *testing.T) {
	s := director.NewSession(&fakeGenerator{}, zap.NewNop())

	_, err := s.Generate(context.Background(), "line")

	assert.ErrorIs(t, err, models.ErrNotInitialized)
}

func TestSession_NotSupportedIsTerminal(t *testing.T) {
	gen := &fakeGenerator{initErr: errors.New("no on-device model")}
	s := director.NewSession(gen, zap.NewNop())

	err := s.Initialize(context.Background(), newTestScene())
	assert.ErrorIs(t, err, models.ErrNotSupported)
	assert.Equal(t, director.StateNotSupported, s.State())

	// No retries: every later call fails fast.
	_, err = s.Generate(context.Background(), "line")
	assert.ErrorIs(t, err, models.ErrNotSupported)
	assert.Equal(t, 1, gen.initCalls)
}

func TestSession_ResourcePressure(t *testing.T) {
	t.Run("degrades and reinitializes transparently on next generate", func(t *testing.T) {
		gen := &fakeGenerator{reply: "sí"}
		s := director.NewSession(gen, zap.NewNop())
		require.NoError(t, s.Initialize(context.Background(), newTestScene()))

		s.HandleResourcePressure()
		assert.Equal(t, director.StateDegraded, s.State())
		assert.Equal(t, 1, gen.disposed)

		text, err := s.Generate(context.Background(), "line")
		require.NoError(t, err)
		assert.Equal(t, "sí", text)
		assert.Equal(t, director.StateReady, s.State())
		assert.Equal(t, 2, gen.initCalls) // one initial, one reinit
	})

	t.Run("reinit failure surfaces and stays degraded", func(t *testing.T) {
		gen := &fakeGenerator{reply: "sí"}
		s := director.NewSession(gen, zap.NewNop())
		require.NoError(t, s.Initialize(context.Background(), newTestScene()))
		s.HandleResourcePressure()

		gen.mu.Lock()
		gen.initErr = errors.New("still under pressure")
		gen.mu.Unlock()

		_, err := s.Generate(context.Background(), "line")
		assert.Error(t, err)
		assert.Equal(t, director.StateDegraded, s.State())
	})

	t.Run("pressure while not ready is a no-op", func(t *testing.T) {
		gen := &fakeGenerator{}
		s := director.NewSession(gen, zap.NewNop())

		s.HandleResourcePressure()

		assert.Equal(t, director.StateUninitialized, s.State())
		assert.Zero(t, gen.disposed)
	})
}

func TestSession_StaleResultDiscardedAfterReinit(t *testing.T) {
	gen := &fakeGenerator{reply: "stale"}
	s := director.NewSession(gen, zap.NewNop())
	require.NoError(t, s.Initialize(context.Background(), newTestScene()))

	// First call blocks mid-flight.
	block := make(chan struct{})
	started := make(chan struct{})
	gen.mu.Lock()
	gen.blockGen = block
	gen.started = started
	gen.mu.Unlock()

	staleErr := make(chan error, 1)
	go func() {
		_, err := s.Generate(context.Background(), "old prompt")
		staleErr <- err
	}()
	<-started

	// Memory pressure fires, then a new prompt triggers the reinit that
	// moves the epoch forward.
	s.HandleResourcePressure()
	gen.mu.Lock()
	gen.blockGen = nil
	gen.started = nil
	gen.reply = "fresh"
	gen.mu.Unlock()

	text, err := s.Generate(context.Background(), "new prompt")
	require.NoError(t, err)
	assert.Equal(t, "fresh", text)

	// Now the stale call completes; its result must not be applied.
	close(block)
	assert.ErrorIs(t, <-staleErr, models.ErrStaleGeneration)
}

func TestSession_Dispose(t *testing.T) {
	gen := &fakeGenerator{reply: "hola"}
	s := director.NewSession(gen, zap.NewNop())
	require.NoError(t, s.Initialize(context.Background(), newTestScene()))

	s.Dispose()

	assert.Equal(t, director.StateDisposed, s.State())
	_, err := s.Generate(context.Background(), "line")
	assert.ErrorIs(t, err, models.ErrNotInitialized)

	// Idempotent.
	s.Dispose()
	assert.Equal(t, 1, gen.disposed)
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := director.BuildSystemPrompt(newTestScene())

	assert.Contains(t, prompt, `"barista"`)
	assert.Contains(t, prompt, `"customer"`)
	assert.Contains(t, prompt, "ordering coffee")
	assert.Contains(t, prompt, "Speak primarily in Spanish")
	assert.Contains(t, prompt, "1-3 short sentences")
	assert.Contains(t, prompt, "Stay in character")
	assert.Contains(t, prompt, "correct it gently")
	assert.Contains(t, prompt, "English hint in parentheses")
}

func TestNewGeminiGenerator_Availability(t *testing.T) {
	t.Run("missing api key is unsupported", func(t *testing.T) {
		gen, avail := director.NewGeminiGenerator("", "gemini-2.0-flash")
		assert.Nil(t, gen)
		assert.Equal(t, director.AvailabilityUnsupported, avail)
	})

	t.Run("key present is available", func(t *testing.T) {
		gen, avail := director.NewGeminiGenerator("key", "gemini-2.0-flash")
		assert.NotNil(t, gen)
		assert.Equal(t, director.AvailabilityAvailable, avail)
	})
}
