package security_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/etonealbert/improvlingo/internal/security"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid uuid v4", "550e8400-e29b-41d4-a716-446655440000", false},
		{"valid uuid uppercase", "550E8400-E29B-41D4-A716-446655440000", false},

		{"empty", "", true},
		{"too short", "abc", true},
		{"not a uuid", "not-a-uuid", true},
		{"sql injection", "' OR '1'='1", true},
		{"xss attempt", "<script>alert('xss')</script>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := security.ValidateID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		// Valid cases
		{"valid name", "Alice", "Alice", false},
		{"valid with space", "Alice Smith", "Alice Smith", false},
		{"valid with numbers", "Learner123", "Learner123", false},
		{"valid with hyphen", "Alice-Bob", "Alice-Bob", false},
		{"valid with apostrophe", "O'Brien", "O'Brien", false},
		{"valid accented", "José", "José", false},
		{"minimum length", "A", "A", false},
		{"maximum length", strings.Repeat("a", 50), strings.Repeat("a", 50), false},
		{"trim whitespace", "  Alice  ", "Alice", false},

		// Invalid cases
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", strings.Repeat("a", 51), "", true},
		{"xss attempt", "<script>alert('xss')</script>", "", true},
		{"img onerror", "<img src=x onerror=alert('xss')>", "", true},
		{"sql injection", "'; DROP TABLE--", "", true},
		{"special chars", "Alice@Bob", "", true},
		{"control chars", "Alice\x00Bob", "", true},
		{"newline", "Alice\nBob", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := security.ValidateDisplayName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestValidateTranscript(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty is fine", "", false},
		{"plain text", "buenos dias quisiera un cafe", false},
		{"accented text", "¿dónde está la estación?", false},
		{"punctuation kept", "un café, por favor!", false},
		{"newline allowed", "una línea\notra línea", false},
		{"too long", strings.Repeat("a", 2001), true},
		{"null byte", "hola\x00mundo", true},
		{"delete char", "hola\x7fmundo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := security.ValidateTranscript(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.input, got)
			}
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Empty(t, security.SanitizeErrorMessage(nil))
	})

	t.Run("plain error passes through", func(t *testing.T) {
		err := errors.New("scenario not found")
		assert.Equal(t, "scenario not found", security.SanitizeErrorMessage(err))
	})

	t.Run("credential detail is masked", func(t *testing.T) {
		err := errors.New("genai: invalid API key provided")
		got := security.SanitizeErrorMessage(err)
		assert.NotContains(t, got, "API key")
		assert.Equal(t, "An error occurred while processing your request", got)
	})

	t.Run("network detail is masked", func(t *testing.T) {
		err := errors.New("dial tcp 10.0.0.5:443: connection refused")
		assert.Equal(t, "An error occurred while processing your request", security.SanitizeErrorMessage(err))
	})
}

func TestIsValidMessageType(t *testing.T) {
	assert.True(t, security.IsValidMessageType("transcript"))
	assert.True(t, security.IsValidMessageType("cast_ballot"))
	assert.False(t, security.IsValidMessageType("reveal"))
	assert.False(t, security.IsValidMessageType(""))
}
