// Package transcribe streams per-connection audio to Deepgram's live
// transcription API and relays normalized results back.
package transcribe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	defaultProviderURL = "wss://api.deepgram.com/v1/listen"

	// Fixed audio parameters: mono 16kHz 16-bit linear PCM.
	sampleRate = 16000
	channels   = 1

	// DefaultLanguage is used when transcription:start names none.
	DefaultLanguage = "en-US"
)

// Result is one normalized transcript alternative.
type Result struct {
	Text    string
	IsFinal bool
}

// Handlers receive provider-session events. OnClose and OnError are
// mutually exclusive per session; whichever fires first ends the loop.
type Handlers struct {
	OnResult func(Result)
	OnClose  func(code int, reason string)
	OnError  func(err error)
}

// Client dials provider sessions. URL is overridable for tests.
type Client struct {
	APIKey string
	URL    string
}

// Configured reports whether a provider credential is present. Without
// one the bridge refuses to start rather than crash mid-stream.
func (c *Client) Configured() bool { return c.APIKey != "" }

// Open dials a streaming session for the given language. The caller must
// invoke Listen on the returned session to start draining provider
// messages; this split lets the owner index the session first.
func (c *Client) Open(language string, h Handlers) (*ProviderSession, error) {
	base := c.URL
	if base == "" {
		base = defaultProviderURL
	}
	url := fmt.Sprintf("%s?encoding=linear16&sample_rate=%d&channels=%d&language=%s&punctuate=true&interim_results=true",
		base, sampleRate, channels, language)

	header := http.Header{}
	header.Set("Authorization", "Token "+c.APIKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return nil, fmt.Errorf("provider dial: %w", err)
	}

	log.Info().Str("module", "transcribe").Str("language", language).Msg("provider session opened")
	return &ProviderSession{conn: conn, handlers: h, done: make(chan struct{})}, nil
}

// ProviderSession is one outbound streaming connection, owned by exactly
// one client connection for its whole lifetime.
type ProviderSession struct {
	conn     *websocket.Conn
	handlers Handlers

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

// Listen starts the provider read loop.
func (s *ProviderSession) Listen() {
	go s.readLoop()
}

type providerMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *ProviderSession) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Closed by our side; the owner already cleaned up.
				return
			default:
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				s.handlers.OnClose(ce.Code, ce.Text)
			} else {
				s.handlers.OnError(err)
			}
			return
		}

		var msg providerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		// Interim no-op frames carry an empty transcript; drop them.
		if text := msg.Channel.Alternatives[0].Transcript; text != "" {
			s.handlers.OnResult(Result{Text: text, IsFinal: msg.IsFinal})
		}
	}
}

// SendAudio forwards raw PCM bytes verbatim.
func (s *ProviderSession) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

// Close ends the session. Idempotent.
func (s *ProviderSession) Close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = s.conn.Close()
		s.mu.Unlock()
		log.Info().Str("module", "transcribe").Msg("provider session closed")
	})
}
