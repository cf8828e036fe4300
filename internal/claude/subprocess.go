package claude

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const terminateGracePeriod = 3 * time.Second

// SubprocessBackend runs the claude CLI in stream-json mode and decodes its
// NDJSON output line by line.
type SubprocessBackend struct {
	claudePath string
	model      string

	mu            sync.Mutex
	cmd           *exec.Cmd
	procDone      chan struct{}
	lastSessionID string
}

type SubprocessOption func(*SubprocessBackend)

// WithModel selects the claude model passed on the command line.
func WithModel(model string) SubprocessOption {
	return func(b *SubprocessBackend) { b.model = model }
}

// WithResumeSessionID seeds the continuation id used for the first prompt,
// e.g. "last" for --continue semantics or a concrete session id.
func WithResumeSessionID(sessionID string) SubprocessOption {
	return func(b *SubprocessBackend) { b.lastSessionID = sessionID }
}

func NewSubprocessBackend(claudePath string, opts ...SubprocessOption) *SubprocessBackend {
	if claudePath == "" {
		claudePath = "claude"
	}
	b := &SubprocessBackend{claudePath: claudePath}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *SubprocessBackend) LastSessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSessionID
}

func (b *SubprocessBackend) setLastSessionID(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSessionID = sessionID
}

// SendPrompt starts the claude subprocess and returns the decoded message
// stream. The channel is closed once the process exits; a non-zero exit is
// surfaced as a final error-kind message rather than a Go error.
func (b *SubprocessBackend) SendPrompt(ctx context.Context, prompt string, sessionID string) (<-chan Message, error) {
	resumeID := sessionID
	if resumeID == "" {
		resumeID = b.LastSessionID()
	}

	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	if resumeID != "" {
		args = append(args, "--resume", resumeID)
	}
	args = append(args, prompt)
	if b.model != "" {
		args = append(args, "--model", b.model)
	}

	cmd := exec.Command(b.claudePath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open claude stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start claude process: %w", err)
	}

	procDone := make(chan struct{})
	b.mu.Lock()
	b.cmd = cmd
	b.procDone = procDone
	b.mu.Unlock()

	out := make(chan Message)
	go func() {
		defer close(out)

		ctx, span := tracer.Start(ctx, "claude prompt stream")
		defer span.End()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 256*1024), 4*1024*1024)

		messageCount := 0
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var record map[string]any
			if err := json.Unmarshal([]byte(line), &record); err != nil {
				// Noise is common in line-buffered streams.
				continue
			}

			for _, msg := range Decode(record) {
				if msg.SessionID != "" {
					b.setLastSessionID(msg.SessionID)
				}
				select {
				case out <- msg:
					messageCount++
				case <-ctx.Done():
					b.finishProcess(cmd, procDone)
					return
				}
			}
		}

		err := cmd.Wait()
		close(procDone)
		b.mu.Lock()
		b.cmd = nil
		b.procDone = nil
		b.mu.Unlock()

		span.SetAttributes(attribute.Int("claude.messages", messageCount))
		if exitErr, ok := err.(*exec.ExitError); ok {
			span.SetStatus(codes.Error, exitErr.Error())
			select {
			case out <- Message{
				Kind:    KindError,
				Text:    fmt.Sprintf("Claude process exited with code %d", exitErr.ExitCode()),
				IsError: true,
			}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// finishProcess reaps an abandoned subprocess after its consumer went away.
func (b *SubprocessBackend) finishProcess(cmd *exec.Cmd, procDone chan struct{}) {
	_ = cmd.Wait()
	close(procDone)
	b.mu.Lock()
	if b.cmd == cmd {
		b.cmd = nil
		b.procDone = nil
	}
	b.mu.Unlock()
}

// Interrupt terminates the running claude process with a bounded escalation:
// SIGTERM, a grace period, then SIGKILL. It is a no-op when no process is
// running or the process already exited.
func (b *SubprocessBackend) Interrupt() error {
	b.mu.Lock()
	cmd := b.cmd
	procDone := b.procDone
	b.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already exited between the check and the signal.
		return nil
	}

	if procDone != nil {
		select {
		case <-procDone:
		case <-time.After(terminateGracePeriod):
			logger.Warn("claude process ignored SIGTERM, killing it")
			if err := cmd.Process.Kill(); err != nil {
				return fmt.Errorf("failed to kill claude process: %w", err)
			}
		}
	}

	return nil
}

func (b *SubprocessBackend) Close() error {
	return b.Interrupt()
}
