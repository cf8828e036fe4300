// Package main provides the claudevoice CLI: a spoken interface to the
// claude command-line tool.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"claudevoice/internal/app"
	"claudevoice/internal/claude"
	"claudevoice/internal/config"
	"claudevoice/internal/input"
	"claudevoice/internal/pipeline"
	"claudevoice/internal/playback"
	"claudevoice/internal/tts"
	"claudevoice/internal/ui"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "claudevoice: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		model           string
		ttsModel        string
		voice           string
		resumeID        string
		noTools         bool
		noCost          bool
		noTTS           bool
		quiet           bool
		voiceInput      bool
		wakeWord        bool
		showThinking    bool
		continueSession bool
	)

	cmd := &cobra.Command{
		Use:     "claudevoice [prompt...]",
		Short:   "Talk to the claude CLI with spoken responses",
		Version: version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Overlay(config.Config{
				ClaudeModel: model,
				PiperModel:  ttsModel,
				PiperVoice:  voice,
			}); err != nil {
				return err
			}
			if noTools {
				cfg.SpeakTools = false
			}
			if noCost {
				cfg.SpeakCost = false
			}

			backend := newBackend(cfg, continueSession, resumeID)
			speech, engine, err := newSpeech(cmd.ErrOrStderr(), cfg, noTTS)
			if err != nil {
				return err
			}

			extractor := &pipeline.Extractor{
				SpeakTools: cfg.SpeakTools,
				SpeakCost:  cfg.SpeakCost,
				Quiet:      quiet,
			}

			var rendererOpts []ui.RendererOption
			if showThinking {
				rendererOpts = append(rendererOpts, ui.WithShowThinking())
			}
			renderer := ui.NewVisualRenderer(rendererOpts...)

			if len(args) > 0 {
				a := app.New(backend, speech, input.NullSource{},
					app.WithExtractor(extractor), app.WithRenderer(renderer))
				return a.RunOnce(cmd.Context(), strings.Join(args, " "))
			}

			source, err := newSource(voiceInput, wakeWord, speech, engine)
			if err != nil {
				return err
			}

			a := app.New(backend, speech, source,
				app.WithExtractor(extractor), app.WithRenderer(renderer))
			return a.Run(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&model, "model", "", "claude model to use (e.g. sonnet, opus)")
	flags.StringVar(&ttsModel, "tts-model", "", "path to a piper .onnx model file")
	flags.StringVar(&voice, "voice", "", "piper voice name (default: en_US-lessac-medium)")
	flags.BoolVar(&noTools, "no-tools", false, "don't announce tool usage")
	flags.BoolVar(&noCost, "no-cost", false, "don't announce cost at end")
	flags.BoolVar(&noTTS, "no-tts", false, "disable speech entirely, visual output only")
	flags.BoolVar(&quiet, "quiet", false, "announce once and speak only the final response")
	flags.BoolVar(&voiceInput, "voice-input", false, "use speech-to-text input instead of keyboard")
	flags.BoolVar(&wakeWord, "wake-word", false, "require the 'Hey Claude' wake phrase (use with --voice-input)")
	flags.BoolVarP(&continueSession, "continue", "c", false, "resume the most recent session")
	flags.StringVarP(&resumeID, "resume", "r", "", "resume a specific session by ID")
	flags.BoolVar(&showThinking, "show-thinking", false, "display thinking blocks in dim style")

	return cmd
}

func newBackend(cfg *config.Config, continueSession bool, resumeID string) *claude.SubprocessBackend {
	var opts []claude.SubprocessOption
	if cfg.ClaudeModel != "" {
		opts = append(opts, claude.WithModel(cfg.ClaudeModel))
	}
	if continueSession {
		opts = append(opts, claude.WithResumeSessionID("last"))
	} else if resumeID != "" {
		opts = append(opts, claude.WithResumeSessionID(resumeID))
	}
	return claude.NewSubprocessBackend(cfg.ClaudePath, opts...)
}

// newSpeech builds the playback stack, or the silent one for --no-tts. The
// engine is nil in silent mode.
func newSpeech(errOut io.Writer, cfg *config.Config, noTTS bool) (app.Playback, playback.Engine, error) {
	if noTTS {
		return playback.NullManager{}, nil, nil
	}

	modelPath := cfg.PiperModel
	if modelPath != "" {
		if _, err := os.Stat(modelPath); err != nil {
			return nil, nil, fmt.Errorf("tts model not found at %s", modelPath)
		}
	} else {
		var err error
		modelPath, err = findPiperModel(errOut, cfg.PiperVoice)
		if err != nil {
			return nil, nil, err
		}
	}

	engine := tts.NewPiperEngine(modelPath, tts.WithPiperPath(cfg.PiperPath))
	return playback.NewManager(engine), engine, nil
}

func newSource(voiceInput, wakeWord bool, speech app.Playback, engine playback.Engine) (input.Source, error) {
	if !voiceInput {
		return input.NewKeyboardSource(), nil
	}

	feedback := &speechFeedback{speech: speech, engine: engine}
	var opts []input.VoiceOption
	if wakeWord {
		opts = append(opts, input.WithWakeWord())
	}
	return input.NewVoiceSource(feedback, opts...), nil
}

// speechFeedback lets the voice source speak confirmations through the
// playback queue and mute the mic while audio is playing.
type speechFeedback struct {
	speech app.Playback
	engine playback.Engine
}

func (f *speechFeedback) Say(ctx context.Context, text string) error {
	if err := f.speech.Enqueue(ctx, text); err != nil {
		return err
	}
	return f.speech.Drain(ctx)
}

func (f *speechFeedback) IsSpeaking() bool {
	if f.engine == nil {
		return false
	}
	return f.engine.IsSpeaking()
}

// findPiperModel resolves a voice name to a model path in the standard
// piper voice locations, printing download instructions when missing.
func findPiperModel(errOut io.Writer, voiceName string) (string, error) {
	if strings.ContainsAny(voiceName, "/\\") || strings.Contains(voiceName, "..") {
		return "", fmt.Errorf("invalid voice name: %s", voiceName)
	}

	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "piper-voices")

	candidates := []string{
		filepath.Join(dataDir, voiceName+".onnx"),
		filepath.Join(dataDir, voiceName, voiceName+".onnx"),
		filepath.Join("/usr/share/piper-voices", voiceName+".onnx"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	fmt.Fprintf(errOut, "Piper voice model not found: %s\n", voiceName)
	fmt.Fprintf(errOut, "Searched: %s\n\n", candidates[0])
	fmt.Fprintln(errOut, "To download a voice model:")
	fmt.Fprintf(errOut, "  mkdir -p %s\n", dataDir)
	fmt.Fprintf(errOut, "  cd %s\n", dataDir)
	fmt.Fprintln(errOut, "  wget https://huggingface.co/rhasspy/piper-voices/resolve/main/en/en_US/lessac/medium/en_US-lessac-medium.onnx")
	fmt.Fprintln(errOut, "  wget https://huggingface.co/rhasspy/piper-voices/resolve/main/en/en_US/lessac/medium/en_US-lessac-medium.onnx.json")
	fmt.Fprintln(errOut, "\nOr specify a model path with --tts-model /path/to/model.onnx")
	return "", fmt.Errorf("piper voice model not found: %s", voiceName)
}
