// Package pipeline transforms decoded assistant messages into speakable
// sentence-sized units.
package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const defaultMaxChunkLength = 500

// sentenceEnd matches a sentence terminator followed by whitespace; the cut
// point keeps the terminator with the finished sentence.
var sentenceEnd = regexp.MustCompile(`[.!?:;]\s+`)

// SentenceChunker accumulates streamed text and emits complete sentences so
// the first one can be spoken while the rest is still generating. One
// instance serves one prompt cycle.
type SentenceChunker struct {
	buffer         strings.Builder
	maxChunkLength int
}

// NewSentenceChunker returns a chunker that force-breaks unterminated text
// once the buffer exceeds maxChunkLength. Zero or negative selects the
// default of 500.
func NewSentenceChunker(maxChunkLength int) *SentenceChunker {
	if maxChunkLength <= 0 {
		maxChunkLength = defaultMaxChunkLength
	}
	return &SentenceChunker{maxChunkLength: maxChunkLength}
}

// Feed appends text to the buffer and returns any complete chunks it
// unlocked, in order.
func (c *SentenceChunker) Feed(text string) []string {
	c.buffer.WriteString(text)
	buffered := c.buffer.String()

	var chunks []string
	for {
		if loc := sentenceEnd.FindStringIndex(buffered); loc != nil {
			chunk := strings.TrimSpace(buffered[:loc[0]+1])
			buffered = buffered[loc[1]:]
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
		} else if len(buffered) > c.maxChunkLength {
			// The limit is a byte offset; back it up to a rune boundary so
			// a forced cut never splits a multi-byte character.
			limit := c.maxChunkLength
			for limit > 0 && !utf8.RuneStart(buffered[limit]) {
				limit--
			}
			if limit == 0 {
				_, size := utf8.DecodeRuneInString(buffered)
				limit = size
			}
			breakAt := strings.LastIndex(buffered[:limit], " ")
			if breakAt == -1 {
				breakAt = limit
			}
			chunk := strings.TrimSpace(buffered[:breakAt])
			buffered = strings.TrimLeft(buffered[breakAt:], " \t\n")
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
		} else {
			break
		}
	}

	c.buffer.Reset()
	c.buffer.WriteString(buffered)
	return chunks
}

// Flush returns any remaining buffered text, trimmed, and clears the buffer.
// An empty string means nothing was pending.
func (c *SentenceChunker) Flush() string {
	remaining := strings.TrimSpace(c.buffer.String())
	c.buffer.Reset()
	return remaining
}
