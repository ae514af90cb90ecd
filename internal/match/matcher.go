// Package match scores a live speech-recognition transcript against an
// expected dialog line, word by word. Matching is a strict left-to-right
// alignment: progress halts at the first mismatched word and resumes only
// when the recognizer corrects it, so skipped or garbled words never
// advance the turn.
package match

// SimilarityThreshold is the minimum normalized Levenshtein similarity for
// two tokens to count as the same word.
const SimilarityThreshold = 0.8

// Progress is the turn-local matching state. MatchedCount never decreases
// across updates, even if the recognizer revises the transcript downward.
type Progress struct {
	ExpectedWords   []string
	MatchedCount    int
	Complete        bool
	TranscriptSoFar string
}

// Matcher tracks one speaking turn. It holds no shared state: each turn gets
// a fresh instance and late updates for a finished turn are dropped by the
// caller via turn tokens.
type Matcher struct {
	expected     []string
	matchedCount int
	transcript   string
}

// NewMatcher prepares a matcher for one expected line. An empty expected
// line is immediately complete.
func NewMatcher(expectedLine string) *Matcher {
	return &Matcher{expected: Tokenize(expectedLine)}
}

// Update feeds the latest full transcript from the recognizer and returns
// the resulting progress. Feeding the same transcript twice yields the same
// result. Trailing transcript tokens beyond the expected line are ignored.
func (m *Matcher) Update(transcript string) Progress {
	m.transcript = transcript

	count := 0
	heard := Tokenize(transcript)
	for i, want := range m.expected {
		if i >= len(heard) {
			break
		}
		if !lenientMatch(heard[i], want) {
			break
		}
		count = i + 1
	}
	if count > m.matchedCount {
		m.matchedCount = count
	}
	return m.Progress()
}

// Reset restarts the matcher after a recognizer restart. The expected line
// and accumulated matchedCount are kept; only the transcript buffer clears.
func (m *Matcher) Reset() {
	m.transcript = ""
}

func (m *Matcher) Progress() Progress {
	words := make([]string, len(m.expected))
	copy(words, m.expected)
	return Progress{
		ExpectedWords:   words,
		MatchedCount:    m.matchedCount,
		Complete:        m.matchedCount == len(m.expected),
		TranscriptSoFar: m.transcript,
	}
}

// lenientMatch accepts heard as a rendition of want when they are equal or
// close enough by normalized edit distance.
func lenientMatch(heard, want string) bool {
	if heard == want {
		return true
	}
	return Similarity(heard, want) >= SimilarityThreshold
}
