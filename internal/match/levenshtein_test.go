package match_test

import (
	"testing"

	"github.com/etonealbert/improvlingo/internal/match"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"bonos", "buenos", 1},
		{"hola", "hola", 0},
		{"casa", "caza", 1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, match.Levenshtein(tc.a, tc.b), "distance(%q, %q)", tc.a, tc.b)
	}
}

func TestLevenshtein_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("distance is symmetric", prop.ForAll(
		func(a, b string) bool {
			return match.Levenshtein(a, b) == match.Levenshtein(b, a)
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.Property("distance to self is zero", prop.ForAll(
		func(a string) bool {
			return match.Levenshtein(a, a) == 0
		},
		gen.AnyString(),
	))

	properties.Property("similarity stays within [0,1]", prop.ForAll(
		func(a, b string) bool {
			s := match.Similarity(a, b)
			return s >= 0.0 && s <= 1.0
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestSimilarity(t *testing.T) {
	t.Run("empty pair is fully similar", func(t *testing.T) {
		assert.Equal(t, 1.0, match.Similarity("", ""))
	})

	t.Run("identical strings are fully similar", func(t *testing.T) {
		assert.Equal(t, 1.0, match.Similarity("dias", "dias"))
	})

	t.Run("one edit over six runes", func(t *testing.T) {
		assert.InDelta(t, 0.833, match.Similarity("bonos", "buenos"), 0.001)
	})
}
