package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input length constraints
const (
	MaxDisplayNameLength = 50
	MaxTranscriptLength  = 2000
	MinNameLength        = 1
)

var (
	// Name validation regex - Unicode letters, digits, spaces, apostrophes,
	// hyphens, underscores, dots. \p{L} covers accented characters so
	// learner names in any alphabet pass.
	nameRegex = regexp.MustCompile(`^[\p{L}\p{N}\s'\-_.]+$`)
	// Dangerous characters that could be used for injection attacks
	dangerousCharsRegex = regexp.MustCompile(`[<>{}[\]\\;|&$()` + "`" + `]`)
)

// ValidateID validates that a string is a well-formed session or
// participant identifier (UUID).
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("malformed ID: %w", err)
	}
	return nil
}

// ValidateName validates a name string with length and character constraints.
// Returns the trimmed name and an error if validation fails.
func ValidateName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if len(name) < MinNameLength {
		return "", fmt.Errorf("name too short (min %d characters)", MinNameLength)
	}
	if len(name) > maxLen {
		return "", fmt.Errorf("name too long (max %d characters)", maxLen)
	}

	if !nameRegex.MatchString(name) {
		return "", fmt.Errorf("name contains invalid characters (allowed: letters, numbers, spaces, apostrophes, hyphens, underscores, dots)")
	}
	if dangerousCharsRegex.MatchString(name) {
		return "", fmt.Errorf("name contains potentially dangerous characters")
	}

	// Control characters slip past the regex classes above.
	for _, r := range name {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("name contains control characters")
		}
	}

	return name, nil
}

// ValidateDisplayName validates a participant display name.
func ValidateDisplayName(name string) (string, error) {
	return ValidateName(name, MaxDisplayNameLength)
}

// ValidateTranscript bounds a speech-recognition transcript. Transcripts are
// matched, never rendered, so only length and control characters are checked.
func ValidateTranscript(text string) (string, error) {
	if len(text) > MaxTranscriptLength {
		return "", fmt.Errorf("transcript too long (max %d characters)", MaxTranscriptLength)
	}
	for _, r := range text {
		if (r < 32 && r != '\n' && r != '\t') || r == 127 {
			return "", fmt.Errorf("transcript contains control characters")
		}
	}
	return text, nil
}

// SanitizeErrorMessage removes internal detail from error messages before
// they reach a client.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	sensitivePatterns := []string{
		"api key",
		"apikey",
		"credential",
		"token",
		"genai",
		"googleapis",
		"dial tcp",
		"connection refused",
	}

	for _, pattern := range sensitivePatterns {
		if strings.Contains(errStr, pattern) {
			return "An error occurred while processing your request"
		}
	}

	return err.Error()
}
