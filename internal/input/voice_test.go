package input

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeStream replaces the websocket transcriber in tests.
type fakeStream struct {
	transcripts chan string
}

func newFakeStream(texts ...string) *fakeStream {
	ch := make(chan string, len(texts))
	for _, text := range texts {
		ch <- text
	}
	return &fakeStream{transcripts: ch}
}

func (f *fakeStream) Start(context.Context) error { return nil }
func (f *fakeStream) Transcripts() <-chan string  { return f.transcripts }
func (f *fakeStream) SendAudio([]byte) error      { return nil }
func (f *fakeStream) Close() error                { return nil }

type fakeFeedback struct {
	mu   sync.Mutex
	said []string
}

func (f *fakeFeedback) Say(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.said = append(f.said, text)
	return nil
}

func (f *fakeFeedback) IsSpeaking() bool { return false }

func (f *fakeFeedback) saidTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.said...)
}

// testVoiceSource skips the microphone so tests run without audio hardware.
func testVoiceSource(stream transcriptStream, feedback Feedback, wake bool) *VoiceSource {
	s := &VoiceSource{
		wakeWord: wake,
		detector: NewWakeWordDetector(),
		feedback: feedback,
		stream:   stream,
	}
	s.startOnce.Do(func() {})
	return s
}

func TestVoiceSourceDirectMode(t *testing.T) {
	feedback := &fakeFeedback{}
	s := testVoiceSource(newFakeStream("hello world"), feedback, false)

	prompt, err := s.GetPrompt(context.Background())
	if err != nil {
		t.Fatalf("get prompt failed: %v", err)
	}
	if prompt != "hello world" {
		t.Fatalf("expected %q, got %q", "hello world", prompt)
	}

	said := feedback.saidTexts()
	if len(said) != 1 || said[0] != "You said: hello world" {
		t.Fatalf("expected confirmation feedback, got %v", said)
	}
}

func TestVoiceSourceSkipsEmptyTranscripts(t *testing.T) {
	s := testVoiceSource(newFakeStream("", "try again"), &fakeFeedback{}, false)

	prompt, err := s.GetPrompt(context.Background())
	if err != nil {
		t.Fatalf("get prompt failed: %v", err)
	}
	if prompt != "try again" {
		t.Fatalf("expected %q, got %q", "try again", prompt)
	}
}

func TestVoiceSourceWakeModeIgnoresUnrelatedSpeech(t *testing.T) {
	s := testVoiceSource(
		newFakeStream("just chatting", "hello world", "hey claude, what is python"),
		&fakeFeedback{}, true)

	prompt, err := s.GetPrompt(context.Background())
	if err != nil {
		t.Fatalf("get prompt failed: %v", err)
	}
	if prompt != "what is python" {
		t.Fatalf("expected command after wake phrase, got %q", prompt)
	}
}

func TestVoiceSourceBareWakePhraseListensForCommand(t *testing.T) {
	feedback := &fakeFeedback{}
	s := testVoiceSource(newFakeStream("hey claude", "open the tests"), feedback, true)

	prompt, err := s.GetPrompt(context.Background())
	if err != nil {
		t.Fatalf("get prompt failed: %v", err)
	}
	if prompt != "open the tests" {
		t.Fatalf("expected follow-up utterance as prompt, got %q", prompt)
	}

	said := feedback.saidTexts()
	if len(said) == 0 || said[0] != "Yes?" {
		t.Fatalf("expected acknowledgement before listening, got %v", said)
	}
}

func TestVoiceSourceQuitsWhenStreamCloses(t *testing.T) {
	stream := newFakeStream()
	close(stream.transcripts)
	s := testVoiceSource(stream, &fakeFeedback{}, false)

	_, err := s.GetPrompt(context.Background())
	if err != ErrQuit {
		t.Fatalf("expected ErrQuit on closed stream, got %v", err)
	}
}

func TestVoiceSourceHonorsContextCancellation(t *testing.T) {
	s := testVoiceSource(&fakeStream{transcripts: make(chan string)}, &fakeFeedback{}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.GetPrompt(ctx)
	if err == nil {
		t.Fatalf("expected context error, got nil")
	}
}
