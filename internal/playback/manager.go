package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"
)

const (
	queueCapacity   = 100
	shutdownTimeout = 2 * time.Second
)

// queueItem is either a speech unit or, when done is non-nil, an
// end-of-batch sentinel whose done channel is closed once the consumption
// loop (or an interrupt) has passed it. The epoch records which
// interruption generation enqueued the item; items from an older
// generation are never spoken, even if the loop already held them when
// the interrupt ran.
type queueItem struct {
	text  string
	epoch uint64
	done  chan struct{}
}

// Manager queues text for sequential speech and coordinates interruption
// between the producer and the consumption loop. The queue channel is the
// only shared state; interruption discards pending items and releases any
// drain waiter by closing discarded sentinels, so the loop can never end up
// awaiting a sentinel that no longer exists.
type Manager struct {
	engine Engine

	queue       chan queueItem
	interrupted atomic.Bool
	epoch       atomic.Uint64

	stopCh   chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
}

func NewManager(engine Engine) *Manager {
	return &Manager{
		engine:   engine,
		queue:    make(chan queueItem, queueCapacity),
		stopCh:   make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start initializes the engine and launches the consumption loop.
func (m *Manager) Start(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "start playback")
	defer span.End()

	if err := m.engine.Initialize(ctx); err != nil {
		err = fmt.Errorf("failed to initialize speech engine: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	go m.loop()
	return nil
}

func (m *Manager) loop() {
	defer close(m.loopDone)

	for {
		select {
		case <-m.stopCh:
			return
		case item := <-m.queue:
			if item.done != nil {
				close(item.done)
				continue
			}
			if m.interrupted.Load() || item.epoch != m.epoch.Load() {
				continue
			}
			if err := m.engine.Speak(context.Background(), item.text); err != nil {
				// An engine failure mid-utterance must not kill the loop.
				logger.Warn("speech engine failed mid-utterance", "error", err)
			}
		}
	}
}

// Enqueue appends text to the queue. While an interrupt is in progress the
// text is silently dropped so it cannot resurrect after the queue reopens.
func (m *Manager) Enqueue(ctx context.Context, text string) error {
	if m.interrupted.Load() {
		return nil
	}

	select {
	case m.queue <- queueItem{text: text, epoch: m.epoch.Load()}:
		return nil
	case <-m.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain pushes an end-of-batch sentinel and blocks until everything queued
// before it has been spoken, or until an interrupt discards the batch.
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})

	select {
	case m.queue <- queueItem{done: done}:
	case <-m.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-m.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interrupt stops the current utterance and empties the queue. Discarded
// sentinels are closed so a concurrently-blocked Drain returns promptly.
// Once the queue is empty the manager accepts new text again. Bumping the
// epoch invalidates any item the loop pulled off the queue but has not yet
// spoken, which the interrupted flag alone cannot catch once it resets.
func (m *Manager) Interrupt() error {
	m.interrupted.Store(true)
	defer m.interrupted.Store(false)
	m.epoch.Add(1)

	err := m.engine.Stop()

	for {
		select {
		case item := <-m.queue:
			if item.done != nil {
				close(item.done)
			}
		default:
			if err != nil {
				return fmt.Errorf("failed to stop speech engine: %w", err)
			}
			return nil
		}
	}
}

// Shutdown interrupts, stops the consumption loop with a bounded wait, and
// releases the engine.
func (m *Manager) Shutdown(ctx context.Context) error {
	_, span := tracer.Start(ctx, "shutdown playback")
	defer span.End()

	if err := m.Interrupt(); err != nil {
		span.RecordError(err)
	}

	m.stopOnce.Do(func() { close(m.stopCh) })
	select {
	case <-m.loopDone:
	case <-time.After(shutdownTimeout):
		logger.Warn("playback loop did not stop in time, abandoning it")
	}

	if err := m.engine.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down speech engine: %w", err)
	}
	return nil
}

// NullManager is the no-speech playback used in --no-tts mode.
type NullManager struct{}

func (NullManager) Start(context.Context) error           { return nil }
func (NullManager) Enqueue(context.Context, string) error { return nil }
func (NullManager) Drain(context.Context) error           { return nil }
func (NullManager) Interrupt() error                      { return nil }
func (NullManager) Shutdown(context.Context) error        { return nil }
