// Package director manages the AI-director context for a session: the
// generation capability behind it, the lifecycle of the model state, and
// recovery from resource pressure.
package director

import "context"

// Availability is the capability-negotiation result, decided once at
// startup and threaded through as a value.
type Availability string

const (
	AvailabilityPending     Availability = "pending"
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnsupported Availability = "unsupported"
)

// SceneContext is the configuration a generation session is initialized
// with. It is retained so the session can reinitialize lazily after
// resource pressure.
type SceneContext struct {
	Scenario       string
	UserRole       string
	AIRole         string
	TargetLanguage string
	NativeLanguage string
}

// Generator is the opaque text-generation capability. Implementations are
// expected to be expensive to initialize and to fail occasionally;
// generation failures are surfaced, never retried here.
type Generator interface {
	Initialize(ctx context.Context, sc SceneContext) error
	Generate(ctx context.Context, prompt string) (string, error)
	Dispose()
}
