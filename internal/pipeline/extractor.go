package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"claudevoice/internal/claude"
)

// Markdown stripping is a fixed ordered set of regexp passes. It trades
// CommonMark fidelity for predictable speech output: fenced and inline code
// keep their inner content, links reduce to their label, decoration is
// removed.
var (
	fencedCodeRe = regexp.MustCompile("(?s)```[^\n]*\n?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`]*)`")
	imageRe      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldAltRe    = regexp.MustCompile(`__([^_]+)__`)
	italicRe     = regexp.MustCompile(`\*([^*]+)\*`)
	// Underscore emphasis only counts when the underscores sit at word
	// boundaries, so snake_case identifiers in prose survive intact.
	italicAltRe  = regexp.MustCompile(`(^|[^\w])_([^_]+)_([^\w]|$)`)
	headerRe     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquoteRe = regexp.MustCompile(`(?m)^>\s?`)
	bulletRe     = regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	orderedRe    = regexp.MustCompile(`(?m)^(\s*)\d+\.\s+`)
)

func stripMarkdown(text string) string {
	text = fencedCodeRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = imageRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = boldAltRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = italicAltRe.ReplaceAllString(text, "$1$2$3")
	text = headerRe.ReplaceAllString(text, "")
	text = blockquoteRe.ReplaceAllString(text, "")
	text = bulletRe.ReplaceAllString(text, "$1")
	text = orderedRe.ReplaceAllString(text, "$1")
	return text
}

// Extractor maps messages to speakable text. It is deterministic and total:
// every message kind yields either text or a skip, never an error.
type Extractor struct {
	// SpeakTools announces tool invocations.
	SpeakTools bool
	// SpeakCost appends the cost line to result announcements.
	SpeakCost bool
	// Quiet suppresses everything except assistant prose. Used when the
	// user has been told "processing" and should not hear tool chatter.
	Quiet bool
}

// NewExtractor returns an extractor with tool and cost announcements on.
func NewExtractor() *Extractor {
	return &Extractor{SpeakTools: true, SpeakCost: true}
}

// Extract returns the speakable text for a message. The second return is
// false when the message should not be spoken.
func (e *Extractor) Extract(msg claude.Message) (string, bool) {
	switch msg.Kind {
	case claude.KindTextChunk:
		stripped := stripMarkdown(msg.Text)
		if strings.TrimSpace(stripped) == "" {
			return "", false
		}
		return stripped, true

	case claude.KindToolStart:
		if e.Quiet || !e.SpeakTools {
			return "", false
		}
		return msg.Text, true

	case claude.KindError:
		if e.Quiet {
			return "", false
		}
		return "Error: " + msg.Text, true

	case claude.KindResult:
		if e.Quiet {
			return "", false
		}
		return e.resultText(msg), true

	case claude.KindSessionInit:
		if e.Quiet {
			return "", false
		}
		return "Connected to Claude.", true
	}

	// Thinking and tool-result kinds are never speakable.
	return "", false
}

func (e *Extractor) resultText(msg claude.Message) string {
	var parts []string
	if msg.IsError {
		parts = append(parts, "Task failed: "+msg.Text)
	} else {
		parts = append(parts, "Task complete.")
	}
	if e.SpeakCost && msg.CostUSD != nil {
		parts = append(parts, fmt.Sprintf("Cost: %.4f dollars.", *msg.CostUSD))
	}
	if msg.DurationMS != nil {
		parts = append(parts, fmt.Sprintf("Duration: %.1f seconds.", float64(*msg.DurationMS)/1000))
	}
	return strings.Join(parts, " ")
}
