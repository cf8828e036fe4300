// Package claude decodes the Claude Code stream-json protocol into typed
// messages and drives the claude subprocess that produces it.
package claude

// Kind discriminates the closed set of message variants the pipeline
// operates on. Exactly one kind is set per message; fields that are
// irrelevant to a kind are left at their zero value.
type Kind string

const (
	KindSessionInit Kind = "session_init"
	KindTextChunk   Kind = "text_chunk"
	KindToolStart   Kind = "tool_start"
	KindToolResult  Kind = "tool_result"
	KindError       Kind = "error"
	KindResult      Kind = "result"
	KindThinking    Kind = "thinking"
)

// Message is one decoded unit of the assistant's response stream.
type Message struct {
	Kind Kind

	// Text carries the speakable payload: assistant prose for text chunks,
	// the tool summary for tool starts, the error text for errors, and the
	// result text for results.
	Text string

	ToolName   string
	IsError    bool
	CostUSD    *float64
	DurationMS *int64
	SessionID  string

	// Raw is the originating record, kept only for downstream rendering.
	// The pipeline never reinterprets it.
	Raw map[string]any
}
