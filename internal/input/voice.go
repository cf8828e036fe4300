package input

import (
	"context"
	"fmt"
	"sync"
)

// Feedback speaks short confirmations back to the user ("Yes?", "You said:
// ..."), and reports whether speech is currently playing so the microphone
// can ignore the assistant's own voice.
type Feedback interface {
	Say(ctx context.Context, text string) error
	IsSpeaking() bool
}

type transcriptStream interface {
	Start(ctx context.Context) error
	Transcripts() <-chan string
	SendAudio(audio []byte) error
	Close() error
}

// VoiceSource captures microphone audio, transcribes it and yields prompts.
// With wake word enabled, transcripts are discarded until one begins with
// the wake phrase.
type VoiceSource struct {
	wakeWord bool
	detector *WakeWordDetector
	feedback Feedback

	stream  transcriptStream
	capture *captureDevice

	startOnce sync.Once
	startErr  error
}

type VoiceOption func(*VoiceSource)

// WithWakeWord gates prompts behind the "hey claude" phrase.
func WithWakeWord() VoiceOption {
	return func(s *VoiceSource) { s.wakeWord = true }
}

func NewVoiceSource(feedback Feedback, opts ...VoiceOption) *VoiceSource {
	s := &VoiceSource{
		detector: NewWakeWordDetector(),
		feedback: feedback,
		stream:   NewTranscriber(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VoiceSource) ReadyMessage() string {
	if s.wakeWord {
		return "Claude Voice is ready. Say 'Hey Claude' to begin."
	}
	return "Claude Voice is ready. Start speaking."
}

// ensureStarted opens the transcription stream and microphone on first use
// so startup stays fast when the user never speaks.
func (s *VoiceSource) ensureStarted(ctx context.Context) error {
	s.startOnce.Do(func() {
		if err := s.stream.Start(ctx); err != nil {
			s.startErr = fmt.Errorf("failed to start transcription: %w", err)
			return
		}

		capture, err := newCaptureDevice()
		if err != nil {
			s.startErr = fmt.Errorf("failed to open microphone: %w", err)
			return
		}
		if err := capture.Start(func(audio []byte) {
			// Mute the mic while the assistant is talking so it does not
			// transcribe its own speech.
			if s.feedback != nil && s.feedback.IsSpeaking() {
				return
			}
			if err := s.stream.SendAudio(audio); err != nil {
				logger.Warn("failed to forward captured audio", "error", err)
			}
		}); err != nil {
			s.startErr = fmt.Errorf("failed to start microphone: %w", err)
			return
		}
		s.capture = capture
	})
	return s.startErr
}

func (s *VoiceSource) GetPrompt(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "await voice prompt")
	defer span.End()

	if err := s.ensureStarted(ctx); err != nil {
		return "", err
	}

	if s.wakeWord {
		return s.getPromptWake(ctx)
	}
	return s.getPromptDirect(ctx)
}

func (s *VoiceSource) getPromptDirect(ctx context.Context) (string, error) {
	text, err := s.nextTranscript(ctx)
	if err != nil {
		return "", err
	}
	s.say(ctx, "You said: "+text)
	return text, nil
}

func (s *VoiceSource) getPromptWake(ctx context.Context) (string, error) {
	for {
		text, err := s.nextTranscript(ctx)
		if err != nil {
			return "", err
		}
		if !s.detector.MatchesWakePhrase(text) {
			continue
		}

		// "hey claude, <command>" carries the prompt with it.
		if command := s.detector.ExtractCommand(text); command != "" {
			s.say(ctx, "You said: "+command)
			return command, nil
		}

		// Bare wake phrase: acknowledge and take the next utterance.
		s.say(ctx, "Yes?")
		return s.getPromptDirect(ctx)
	}
}

func (s *VoiceSource) nextTranscript(ctx context.Context) (string, error) {
	for {
		select {
		case text, ok := <-s.stream.Transcripts():
			if !ok {
				return "", ErrQuit
			}
			if text == "" {
				continue
			}
			return text, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (s *VoiceSource) say(ctx context.Context, text string) {
	if s.feedback == nil {
		return
	}
	if err := s.feedback.Say(ctx, text); err != nil {
		logger.Warn("failed to speak input feedback", "error", err)
	}
}

func (s *VoiceSource) Close() error {
	if s.capture != nil {
		if err := s.capture.Uninit(); err != nil {
			return err
		}
		s.capture = nil
	}
	return s.stream.Close()
}
