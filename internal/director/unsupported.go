package director

import (
	"context"

	"github.com/etonealbert/improvlingo/internal/models"
)

var _ Generator = UnsupportedGenerator{}

// UnsupportedGenerator stands in when capability negotiation came back
// Unsupported. Initializing it parks the session in NotSupported so all
// generate calls fail fast instead of retrying.
type UnsupportedGenerator struct{}

func (UnsupportedGenerator) Initialize(context.Context, SceneContext) error {
	return models.ErrNotSupported
}

func (UnsupportedGenerator) Generate(context.Context, string) (string, error) {
	return "", models.ErrNotSupported
}

func (UnsupportedGenerator) Dispose() {}
