// Package tts implements the speech engine on top of the piper neural TTS
// binary, streaming its raw PCM output to a portaudio playback device.
package tts

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/gordonklaus/portaudio"
	"go.opentelemetry.io/otel/codes"
)

const (
	// piper emits 16-bit mono PCM at the voice model's native rate;
	// 22050 Hz covers the published medium-quality voices.
	sampleRate      = 22050
	framesPerBuffer = 2048
)

// PiperEngine synthesizes speech by running one piper subprocess per
// utterance and writing its raw output to the default audio device.
type PiperEngine struct {
	piperPath string
	modelPath string

	mu     sync.Mutex
	stream *portaudio.Stream
	cmd    *exec.Cmd

	out      []int16
	speaking atomic.Bool
	stopped  atomic.Bool
}

type PiperOption func(*PiperEngine)

// WithPiperPath overrides the piper binary looked up on PATH.
func WithPiperPath(path string) PiperOption {
	return func(e *PiperEngine) { e.piperPath = path }
}

func NewPiperEngine(modelPath string, opts ...PiperOption) *PiperEngine {
	e := &PiperEngine{piperPath: "piper", modelPath: modelPath}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize opens the audio device. Model loading happens lazily in the
// piper subprocess, so this is cheap apart from portaudio startup.
func (e *PiperEngine) Initialize(ctx context.Context) error {
	_, span := tracer.Start(ctx, "initialize piper engine")
	defer span.End()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	e.out = make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, framesPerBuffer, e.out)
	if err != nil {
		err = fmt.Errorf("failed to open audio output stream: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	e.mu.Lock()
	e.stream = stream
	e.mu.Unlock()
	return nil
}

// Speak synthesizes text and blocks until playback finishes or Stop aborts
// it mid-utterance.
func (e *PiperEngine) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	e.stopped.Store(false)
	e.speaking.Store(true)
	defer e.speaking.Store(false)

	cmd := exec.Command(e.piperPath, "--model", e.modelPath, "--output-raw")
	cmd.Stdin = strings.NewReader(text)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open piper stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start piper: %w", err)
	}

	e.mu.Lock()
	e.cmd = cmd
	stream := e.stream
	e.mu.Unlock()

	defer func() {
		_ = cmd.Wait()
		e.mu.Lock()
		if e.cmd == cmd {
			e.cmd = nil
		}
		e.mu.Unlock()
	}()

	if stream == nil {
		return fmt.Errorf("audio stream not initialized")
	}
	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			logger.Warn("failed to stop audio stream", "error", err)
		}
	}()

	buf := make([]byte, framesPerBuffer*2)
	for {
		if e.stopped.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := io.ReadFull(stdout, buf)
		if n > 0 {
			for i := range e.out {
				if i*2+1 < n {
					e.out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
				} else {
					e.out[i] = 0
				}
			}
			if err := stream.Write(); err != nil {
				logger.Warn("audio write failed", "error", err)
			}
		}
		if readErr != nil {
			// EOF or short read at the end of synthesis.
			return nil
		}
	}
}

// Stop aborts the in-progress utterance by killing the piper subprocess.
// Safe to call at any time, including when nothing is speaking.
func (e *PiperEngine) Stop() error {
	e.stopped.Store(true)

	e.mu.Lock()
	cmd := e.cmd
	e.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		// SIGKILL, not SIGTERM: piper has nothing worth flushing and the
		// interrupt path needs the pipe closed immediately.
		if err := cmd.Process.Signal(syscall.SIGKILL); err != nil {
			return nil // already exited
		}
	}
	return nil
}

func (e *PiperEngine) Shutdown() error {
	_ = e.Stop()

	e.mu.Lock()
	stream := e.stream
	e.stream = nil
	e.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			return fmt.Errorf("failed to close audio stream: %w", err)
		}
	}
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate portaudio: %w", err)
	}
	return nil
}

func (e *PiperEngine) IsSpeaking() bool { return e.speaking.Load() }
