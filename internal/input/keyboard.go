package input

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrQuit is returned by a source when the user asked to exit.
var ErrQuit = errors.New("input: quit requested")

// KeyboardSource reads prompts from stdin. "quit", "exit" and "q" end the
// session.
type KeyboardSource struct {
	in  io.Reader
	out io.Writer

	lines chan string
	done  chan struct{}
}

func NewKeyboardSource() *KeyboardSource {
	return newKeyboardSource(os.Stdin, os.Stdout)
}

func newKeyboardSource(in io.Reader, out io.Writer) *KeyboardSource {
	s := &KeyboardSource{
		in:    in,
		out:   out,
		lines: make(chan string),
		done:  make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *KeyboardSource) ReadyMessage() string {
	return "Claude Voice is ready. Type your prompt."
}

func (s *KeyboardSource) readLoop() {
	defer close(s.lines)

	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		select {
		case s.lines <- scanner.Text():
		case <-s.done:
			return
		}
	}
}

func (s *KeyboardSource) GetPrompt(ctx context.Context) (string, error) {
	for {
		fmt.Fprint(s.out, "\nYou: ")

		select {
		case line, ok := <-s.lines:
			if !ok {
				// stdin closed (EOF) quits the same way "quit" does.
				return "", ErrQuit
			}
			line = strings.TrimSpace(line)
			switch strings.ToLower(line) {
			case "quit", "exit", "q":
				return "", ErrQuit
			case "":
				continue
			}
			return line, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (s *KeyboardSource) Close() error {
	close(s.done)
	return nil
}
