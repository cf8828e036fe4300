package input

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
)

const (
	captureSampleRate = 16000
	keepAliveInterval = 5 * time.Second
)

// Transcriber streams microphone audio to Deepgram over a websocket and
// yields one transcript per finished utterance. Finals are accumulated
// until the service signals the utterance ended, so a pause mid-sentence
// does not split the prompt.
type Transcriber struct {
	connMu    sync.Mutex
	conn      *websocket.Conn
	lastAudio time.Time

	accumulated    string
	unendedSegment bool

	transcripts chan string
	closeOnce   sync.Once
}

func NewTranscriber() *Transcriber {
	return &Transcriber{transcripts: make(chan string, 4)}
}

// Start dials the streaming endpoint and begins delivering transcripts.
func (t *Transcriber) Start(ctx context.Context) error {
	_, span := tracer.Start(ctx, "start transcriber")
	defer span.End()

	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return fmt.Errorf("deepgram api key not found")
	}

	listenURL, _ := url.Parse("wss://api.deepgram.com/v1/listen")
	queryParams := listenURL.Query()
	queryParams.Set("encoding", "linear16")
	queryParams.Set("sample_rate", strconv.Itoa(captureSampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + apiKey}})
	if err != nil {
		return fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	t.connMu.Lock()
	t.conn = conn
	t.lastAudio = time.Now()
	t.connMu.Unlock()

	go t.readLoop(conn)
	go t.keepAliveLoop(ctx)
	return nil
}

// Transcripts yields finished utterances. The channel closes when the
// websocket does.
func (t *Transcriber) Transcripts() <-chan string { return t.transcripts }

// SendAudio forwards raw 16 kHz mono s16le samples.
func (t *Transcriber) SendAudio(audio []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return nil
	}
	t.lastAudio = time.Now()
	if err := t.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// keepAliveLoop keeps the connection open across quiet stretches where the
// capture device sends nothing.
func (t *Transcriber) keepAliveLoop(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.connMu.Lock()
			conn := t.conn
			idle := time.Since(t.lastAudio) >= keepAliveInterval
			if conn != nil && idle {
				if err := conn.WriteJSON(struct {
					Type string `json:"type"`
				}{Type: "KeepAlive"}); err != nil {
					logger.Warn("failed to send keepalive", "error", err)
				}
			}
			t.connMu.Unlock()
			if conn == nil {
				return
			}
		}
	}
}

func (t *Transcriber) readLoop(conn *websocket.Conn) {
	defer close(t.transcripts)

	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn("failed to read deepgram websocket message", "error", err)
			}
			t.connMu.Lock()
			t.conn = nil
			t.connMu.Unlock()
			conn.Close()
			return
		}
		if msgType != websocket.BinaryMessage {
			t.processMessage(msg)
		}
	}
}

func (t *Transcriber) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			return
		}
		if !msgResp.IsFinal {
			return
		}
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			if len(transcript) > 0 {
				t.accumulated += " " + transcript
			}
		}
		if msgResp.SpeechFinal {
			t.flushUtterance()
		}

	case api.TypeUtteranceEndResponse:
		if t.unendedSegment {
			t.flushUtterance()
		}

	case api.TypeSpeechStartedResponse:
		t.unendedSegment = true
	}
}

func (t *Transcriber) flushUtterance() {
	t.unendedSegment = false
	full := strings.TrimSpace(t.accumulated)
	t.accumulated = ""
	if full == "" {
		return
	}

	select {
	case t.transcripts <- full:
	default:
		// Nobody is consuming (e.g. assistant is speaking); drop it.
		logger.Debug("dropping transcript, consumer not ready", "transcript", full)
	}
}

// Close asks the service to flush and closes the connection.
func (t *Transcriber) Close() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return nil
	}
	var err error
	t.closeOnce.Do(func() {
		if writeErr := t.conn.WriteJSON(struct {
			Type string `json:"type"`
		}{Type: string(api.TypeCloseStreamResponse)}); writeErr != nil {
			err = fmt.Errorf("failed to close deepgram stream: %w", writeErr)
		}
	})
	return err
}
