package claude

import "context"

// Backend produces the assistant's message stream for a prompt.
//
// SendPrompt returns a channel that yields messages in stream order and is
// closed when the underlying stream ends. Interrupt terminates the stream's
// underlying resources and is tolerant of an already-ended stream; callers
// are expected to abandon the channel afterwards rather than wait for it to
// close naturally.
type Backend interface {
	SendPrompt(ctx context.Context, prompt string, sessionID string) (<-chan Message, error)
	LastSessionID() string
	Interrupt() error
	Close() error
}
