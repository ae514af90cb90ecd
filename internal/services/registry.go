package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/config"
	"github.com/etonealbert/improvlingo/internal/director"
	"github.com/etonealbert/improvlingo/internal/models"
	"github.com/etonealbert/improvlingo/internal/scenario"
	"github.com/etonealbert/improvlingo/internal/session"
)

// GeneratorFactory builds the generation capability for a new session,
// reporting the availability negotiated at startup.
type GeneratorFactory func() (director.Generator, director.Availability)

// RegistryOptions configure session creation and expiry.
type RegistryOptions struct {
	VoteTimeout  time.Duration
	IdleTTL      time.Duration
	NewGenerator GeneratorFactory
}

// SessionEntry bundles everything owned by one live session. Each session
// gets its own machine and director instance; nothing is shared across
// sessions.
type SessionEntry struct {
	ID        string
	Machine   *session.Machine
	Director  *director.Session
	Driver    *Driver
	CreatedAt time.Time
}

// Registry owns all active sessions. It replaces any notion of a shared
// global session manager: consumers get a handle from here and everything
// hangs off it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionEntry

	hub     *Hub
	catalog *scenario.Catalog
	metrics *Metrics
	logger  *zap.Logger
	opts    RegistryOptions

	stop     chan struct{}
	stopOnce sync.Once
}

func NewRegistry(catalog *scenario.Catalog, metrics *Metrics, logger *zap.Logger, opts RegistryOptions) *Registry {
	if opts.VoteTimeout <= 0 {
		opts.VoteTimeout = config.DefaultVoteTimeout
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = config.DefaultSessionIdleTTL
	}
	if opts.NewGenerator == nil {
		opts.NewGenerator = func() (director.Generator, director.Availability) {
			return director.UnsupportedGenerator{}, director.AvailabilityUnsupported
		}
	}
	return &Registry{
		sessions: make(map[string]*SessionEntry),
		catalog:  catalog,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		stop:     make(chan struct{}),
	}
}

// SetHub wires the broadcast hub in after construction. The hub's message
// handler needs the registry, so the two cannot be built in one step. Must
// be called before the first Create.
func (r *Registry) SetHub(hub *Hub) {
	r.hub = hub
}

// Create starts a new session with its own machine, director and driver.
func (r *Registry) Create(premiumUnlocked bool) *SessionEntry {
	id := uuid.NewString()

	m := session.New(id, session.Options{
		Logger:          r.logger,
		VoteTimeout:     r.opts.VoteTimeout,
		PremiumUnlocked: premiumUnlocked,
	})

	gen, avail := r.opts.NewGenerator()
	if avail != director.AvailabilityAvailable {
		gen = director.UnsupportedGenerator{}
	}
	dir := director.NewSession(gen, r.logger.With(zap.String("session", id)))

	entry := &SessionEntry{
		ID:        id,
		Machine:   m,
		Director:  dir,
		Driver:    NewDriver(m, dir, r.catalog, r.hub, r.metrics, r.logger),
		CreatedAt: time.Now(),
	}
	go entry.Driver.Run()

	r.mu.Lock()
	r.sessions[id] = entry
	r.mu.Unlock()

	r.metrics.IncrementSessions()
	r.logger.Info("session created",
		zap.String("session", id), zap.String("director", string(avail)))
	return entry
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*SessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[id]
	return entry, ok
}

// Remove tears a session down and drops it from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	_ = entry.Machine.EndSession()
	entry.Driver.Stop()
	entry.Machine.Close()
	r.metrics.DecrementSessions()
	r.logger.Info("session removed", zap.String("session", id))
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run reaps finished and idle sessions until Stop is called.
func (r *Registry) Run() {
	ticker := time.NewTicker(config.SessionReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reap()
		case <-r.stop:
			return
		}
	}
}

// Stop halts the reaper and tears down every session.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Remove(id)
	}
}

func (r *Registry) reap() {
	r.mu.RLock()
	entries := make([]*SessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	for _, e := range entries {
		snap := e.Machine.Snapshot()
		switch {
		case snap.CurrentPhase == models.PhaseFinished:
			r.Remove(e.ID)
		case time.Since(snap.UpdatedAt) > r.opts.IdleTTL:
			r.logger.Info("reaping idle session", zap.String("session", e.ID))
			r.Remove(e.ID)
		}
	}
}
