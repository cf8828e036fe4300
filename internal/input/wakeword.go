package input

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// "hey claude" plus common transcription mishearings.
var wakeVariants = []string{
	"hey claude",
	"hey cloud",
	"hey clod",
	"hey claud",
	"hey clawed",
	"hey klaud",
	"hey klaude",
	"a claude",
	"hey, claude",
	"hey, cloud",
}

const fuzzyThreshold = 0.7

// WakeWordDetector recognizes the "hey claude" wake phrase in transcripts,
// tolerating the mishearings speech-to-text models produce for it.
type WakeWordDetector struct {
	variants []string
}

func NewWakeWordDetector(variants ...string) *WakeWordDetector {
	if len(variants) == 0 {
		variants = wakeVariants
	}
	lowered := make([]string, len(variants))
	for i, v := range variants {
		lowered[i] = strings.ToLower(v)
	}
	return &WakeWordDetector{variants: lowered}
}

// MatchesWakePhrase reports whether text is, starts with, or closely
// resembles the wake phrase.
func (d *WakeWordDetector) MatchesWakePhrase(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}

	for _, variant := range d.variants {
		if normalized == variant || strings.HasPrefix(normalized, variant) {
			return true
		}
	}

	// Fuzzy pass over the leading words. The wake phrase is two words;
	// three allows for filler.
	words := strings.Fields(normalized)
	if len(words) > 3 {
		words = words[:3]
	}
	prefix := strings.Join(words, " ")
	for _, variant := range d.variants {
		if similarity(prefix, variant) >= fuzzyThreshold {
			return true
		}
	}
	return false
}

// ExtractCommand returns the command following the wake phrase, e.g. the
// "open the tests" in "hey claude, open the tests". It returns "" when the
// text is only the wake phrase or matched merely fuzzily.
func (d *WakeWordDetector) ExtractCommand(text string) string {
	trimmed := strings.TrimSpace(text)
	normalized := strings.ToLower(trimmed)
	if normalized == "" {
		return ""
	}

	for _, variant := range d.variants {
		if strings.HasPrefix(normalized, variant) {
			remainder := strings.TrimSpace(trimmed[len(variant):])
			remainder = strings.TrimLeft(remainder, ",.:;!? ")
			return remainder
		}
	}
	return ""
}

func similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}
