// Package input provides prompt sources: keyboard reads from stdin, voice
// captures microphone audio and transcribes it, optionally gated behind a
// wake phrase.
package input

import "context"

// Source yields user prompts one at a time.
type Source interface {
	// ReadyMessage is spoken and shown once at startup.
	ReadyMessage() string
	// GetPrompt blocks until the next prompt. An ErrQuit error means the
	// user asked to exit.
	GetPrompt(ctx context.Context) (string, error)
	Close() error
}

// NullSource never yields a prompt. It fills the source slot in one-shot
// mode, where the prompt comes from the command line and no stdin reader
// should be spawned.
type NullSource struct{}

func (NullSource) ReadyMessage() string { return "" }

func (NullSource) GetPrompt(context.Context) (string, error) {
	return "", ErrQuit
}

func (NullSource) Close() error { return nil }
