package match_test

import (
	"testing"

	"github.com/etonealbert/improvlingo/internal/match"
	"github.com/stretchr/testify/assert"
)

func TestMatcher_ExactLine(t *testing.T) {
	m := match.NewMatcher("buenos dias")

	p := m.Update("buenos dias")

	assert.Equal(t, 2, p.MatchedCount)
	assert.True(t, p.Complete)
}

func TestMatcher_LenientWord(t *testing.T) {
	t.Run("near miss within threshold still matches", func(t *testing.T) {
		// similarity(bonos, buenos) = 1 - 1/6 ≈ 0.83
		m := match.NewMatcher("buenos dias")

		p := m.Update("bonos dias")

		assert.Equal(t, 2, p.MatchedCount)
		assert.True(t, p.Complete)
	})

	t.Run("garbled word below threshold blocks progress", func(t *testing.T) {
		m := match.NewMatcher("buenos dias")

		p := m.Update("bs dias")

		assert.Equal(t, 0, p.MatchedCount)
		assert.False(t, p.Complete)
	})
}

func TestMatcher_LeftToRightOnly(t *testing.T) {
	t.Run("missing first word halts at index 0", func(t *testing.T) {
		m := match.NewMatcher("buenos dias")

		p := m.Update("dias")

		assert.Equal(t, 0, p.MatchedCount)
		assert.False(t, p.Complete)
	})

	t.Run("mismatch in the middle freezes count", func(t *testing.T) {
		m := match.NewMatcher("como estas tu hoy")

		p := m.Update("como xxxxx tu hoy")

		assert.Equal(t, 1, p.MatchedCount)
		assert.False(t, p.Complete)
	})
}

func TestMatcher_IncrementalTranscript(t *testing.T) {
	m := match.NewMatcher("buenos dias amigo")

	p := m.Update("buenos")
	assert.Equal(t, 1, p.MatchedCount)

	p = m.Update("buenos dias")
	assert.Equal(t, 2, p.MatchedCount)

	p = m.Update("buenos dias amigo")
	assert.Equal(t, 3, p.MatchedCount)
	assert.True(t, p.Complete)
}

func TestMatcher_MonotonicCount(t *testing.T) {
	t.Run("recognizer revision never lowers the count", func(t *testing.T) {
		m := match.NewMatcher("buenos dias")

		m.Update("buenos dias")
		p := m.Update("b")

		assert.Equal(t, 2, p.MatchedCount)
		assert.True(t, p.Complete)
	})

	t.Run("same transcript twice is idempotent", func(t *testing.T) {
		m := match.NewMatcher("buenos dias")

		first := m.Update("buenos")
		second := m.Update("buenos")

		assert.Equal(t, first.MatchedCount, second.MatchedCount)
	})
}

func TestMatcher_Reset(t *testing.T) {
	m := match.NewMatcher("buenos dias")
	m.Update("buenos")

	m.Reset()
	p := m.Progress()

	// Expected line and progress survive a recognizer restart.
	assert.Equal(t, []string{"buenos", "dias"}, p.ExpectedWords)
	assert.Equal(t, 1, p.MatchedCount)
	assert.Empty(t, p.TranscriptSoFar)

	p = m.Update("buenos dias")
	assert.True(t, p.Complete)
}

func TestMatcher_EdgeCases(t *testing.T) {
	t.Run("empty expected line is immediately complete", func(t *testing.T) {
		m := match.NewMatcher("")

		assert.True(t, m.Progress().Complete)
		assert.True(t, m.Update("whatever was said").Complete)
	})

	t.Run("trailing transcript tokens are ignored", func(t *testing.T) {
		m := match.NewMatcher("hola")

		p := m.Update("hola que tal amigo")

		assert.Equal(t, 1, p.MatchedCount)
		assert.True(t, p.Complete)
	})

	t.Run("punctuation and case are normalized away", func(t *testing.T) {
		m := match.NewMatcher("¿Cómo estás?")

		p := m.Update("como estas")

		assert.Equal(t, 2, p.MatchedCount)
		assert.True(t, p.Complete)
	})
}

func TestTokenize(t *testing.T) {
	t.Run("strips diacritics and symbols", func(t *testing.T) {
		assert.Equal(t, []string{"cafe", "olla"}, match.Tokenize("Café, ¡olla!"))
	})

	t.Run("drops empty tokens", func(t *testing.T) {
		assert.Empty(t, match.Tokenize("  ...  ¡¿?!  "))
	})

	t.Run("keeps digits", func(t *testing.T) {
		assert.Equal(t, []string{"son", "las", "3"}, match.Tokenize("Son las 3."))
	})
}
