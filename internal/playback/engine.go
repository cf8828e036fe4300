// Package playback owns the speech queue and the consumption loop that
// drives a speech engine, including interruption and drain semantics.
package playback

import "context"

// Engine is the speech synthesis collaborator driven by the manager.
type Engine interface {
	// Initialize may block while a voice model loads.
	Initialize(ctx context.Context) error
	// Speak blocks until the utterance completes or Stop aborts it.
	Speak(ctx context.Context, text string) error
	// Stop aborts any in-progress utterance. Idempotent.
	Stop() error
	Shutdown() error
	IsSpeaking() bool
}
