// Package app wires the prompt loop: input source to backend to extractor
// to playback and renderer, with Ctrl+C interrupting speech instead of the
// process.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"claudevoice/internal/claude"
	"claudevoice/internal/input"
	"claudevoice/internal/pipeline"
	"claudevoice/internal/ui"
)

// Playback is the speech queue the app drives. Both the speaking manager
// and the silent one satisfy it.
type Playback interface {
	Start(ctx context.Context) error
	Enqueue(ctx context.Context, text string) error
	Drain(ctx context.Context) error
	Interrupt() error
	Shutdown(ctx context.Context) error
}

// App runs the conversation loop. The first Ctrl+C during a turn cuts off
// speech and returns to the prompt; Ctrl+C while idle exits.
type App struct {
	backend   claude.Backend
	playback  Playback
	input     input.Source
	extractor *pipeline.Extractor
	renderer  ui.Renderer

	out         io.Writer
	sigCh       chan os.Signal
	firstPrompt bool
}

type Option func(*App)

func WithExtractor(extractor *pipeline.Extractor) Option {
	return func(a *App) { a.extractor = extractor }
}

func WithRenderer(renderer ui.Renderer) Option {
	return func(a *App) { a.renderer = renderer }
}

func WithOutput(out io.Writer) Option {
	return func(a *App) { a.out = out }
}

func New(backend claude.Backend, playback Playback, source input.Source, opts ...Option) *App {
	a := &App{
		backend:     backend,
		playback:    playback,
		input:       source,
		extractor:   &pipeline.Extractor{SpeakTools: true, SpeakCost: true},
		renderer:    ui.NullRenderer{},
		out:         os.Stdout,
		sigCh:       make(chan os.Signal, 1),
		firstPrompt: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run drives the loop until the input source quits or Ctrl+C arrives while
// idle. It always says goodbye and releases the backend and playback.
func (a *App) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "run session")
	defer span.End()

	signal.Notify(a.sigCh, os.Interrupt)
	defer signal.Stop(a.sigCh)

	if err := a.playback.Start(ctx); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	_ = a.playback.Enqueue(ctx, a.input.ReadyMessage())
	_ = a.playback.Drain(ctx)

	for {
		prompt, err := a.awaitPrompt(ctx)
		if err != nil {
			break
		}
		if err := a.processPrompt(ctx, prompt); err != nil {
			logger.Warn("turn ended with error", "error", err)
		}
	}

	_ = a.playback.Enqueue(ctx, "Goodbye.")
	_ = a.playback.Drain(ctx)

	var errs []error
	if err := a.playback.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.input.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RunOnce processes a single prompt and exits, for `claudevoice "do x"`
// style invocations. Ctrl+C still interrupts speech.
func (a *App) RunOnce(ctx context.Context, prompt string) error {
	ctx, span := tracer.Start(ctx, "run one-shot")
	defer span.End()

	signal.Notify(a.sigCh, os.Interrupt)
	defer signal.Stop(a.sigCh)

	if err := a.playback.Start(ctx); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	turnErr := a.processPrompt(ctx, prompt)

	var errs []error
	if turnErr != nil {
		errs = append(errs, turnErr)
	}
	if err := a.playback.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type promptResult struct {
	prompt string
	err    error
}

// awaitPrompt blocks on the input source while staying responsive to
// Ctrl+C, which exits when no turn is in flight.
func (a *App) awaitPrompt(ctx context.Context) (string, error) {
	resultCh := make(chan promptResult, 1)
	go func() {
		prompt, err := a.input.GetPrompt(ctx)
		resultCh <- promptResult{prompt: prompt, err: err}
	}()

	select {
	case result := <-resultCh:
		return result.prompt, result.err
	case <-a.sigCh:
		return "", input.ErrQuit
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *App) processPrompt(ctx context.Context, prompt string) error {
	ctx, span := tracer.Start(ctx, "process prompt",
		trace.WithAttributes(attribute.String("turn.id", uuid.NewString())))
	defer span.End()
	defer func() { a.firstPrompt = false }()

	chunker := pipeline.NewSentenceChunker(0)

	if a.extractor.Quiet {
		_ = a.playback.Enqueue(ctx, "Processing your request. This may take a moment.")
	}

	// Resume the conversation from the second prompt on.
	sessionID := ""
	if !a.firstPrompt {
		sessionID = a.backend.LastSessionID()
	}

	msgs, err := a.backend.SendPrompt(ctx, prompt, sessionID)
	if err != nil {
		return fmt.Errorf("failed to send prompt: %w", err)
	}

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return a.finishTurn(ctx, chunker)
			}
			a.handleMessage(ctx, chunker, msg)
		case <-a.sigCh:
			return a.interruptTurn(ctx, msgs)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *App) handleMessage(ctx context.Context, chunker *pipeline.SentenceChunker, msg claude.Message) {
	a.renderer.Render(msg)

	immediate := msg.Kind == claude.KindToolStart ||
		msg.Kind == claude.KindResult ||
		msg.Kind == claude.KindError ||
		msg.Kind == claude.KindSessionInit

	if a.extractor.Quiet && immediate {
		return
	}

	text, ok := a.extractor.Extract(msg)
	if !ok {
		return
	}

	// Announcements are short; speak them as they arrive. Prose streams
	// through the chunker so speech starts before the response finishes.
	if immediate {
		_ = a.playback.Enqueue(ctx, text)
		return
	}
	for _, sentence := range chunker.Feed(text) {
		_ = a.playback.Enqueue(ctx, sentence)
	}
}

// finishTurn flushes the tail of the response and waits for the queue to
// empty, still listening for Ctrl+C so speech can be cut short.
func (a *App) finishTurn(ctx context.Context, chunker *pipeline.SentenceChunker) error {
	if remaining := chunker.Flush(); remaining != "" {
		_ = a.playback.Enqueue(ctx, remaining)
	}
	a.renderer.Finalize()

	drainDone := make(chan error, 1)
	go func() { drainDone <- a.playback.Drain(ctx) }()

	select {
	case err := <-drainDone:
		return err
	case <-a.sigCh:
		if err := a.playback.Interrupt(); err != nil {
			logger.Warn("failed to interrupt playback", "error", err)
		}
		a.announceInterrupted()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// interruptTurn cuts off speech and the backend, then abandons the rest of
// the stream so the prompt loop resumes immediately.
func (a *App) interruptTurn(ctx context.Context, msgs <-chan claude.Message) error {
	_, span := tracer.Start(ctx, "interrupt turn")
	defer span.End()

	a.renderer.Finalize()
	if err := a.playback.Interrupt(); err != nil {
		logger.Warn("failed to interrupt playback", "error", err)
	}
	if err := a.backend.Interrupt(); err != nil {
		logger.Warn("failed to interrupt backend", "error", err)
	}

	// Let the producer run out in the background; the backend was told to
	// stop, so this ends quickly.
	go func() {
		for range msgs {
		}
	}()

	a.announceInterrupted()
	return nil
}

func (a *App) announceInterrupted() {
	fmt.Fprintln(a.out, "\n[Speech interrupted. Enter a new prompt.]")
}
