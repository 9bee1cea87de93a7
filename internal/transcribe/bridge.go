package transcribe

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
)

// Bridge owns one provider session per client connection. Sessions are
// acquired on transcription:start and released on every exit path: explicit
// stop, provider close, provider error, connection disconnect.
type Bridge struct {
	client *Client

	mu       sync.Mutex
	sessions map[core.SessionID]*ProviderSession
}

func NewBridge(client *Client) *Bridge {
	return &Bridge{
		client:   client,
		sessions: make(map[core.SessionID]*ProviderSession),
	}
}

// Start opens a provider session for the connection, replacing any prior
// one (idempotent restart). Emits transcription:ready on success.
func (b *Bridge) Start(sid core.SessionID, conn core.SignalConn, language string) error {
	if !b.client.Configured() {
		return core.ConfigurationErr("transcription is not configured on this server")
	}
	if language == "" {
		language = DefaultLanguage
	}

	b.Stop(sid)

	var ps *ProviderSession
	handlers := Handlers{
		OnResult: func(r Result) {
			b.send(conn, struct {
				Type      string `json:"type"`
				Text      string `json:"text"`
				IsFinal   bool   `json:"isFinal"`
				Timestamp int64  `json:"timestamp"`
			}{"transcription:result", r.Text, r.IsFinal, time.Now().UnixMilli()})
		},
		OnClose: func(code int, reason string) {
			if b.release(sid, ps) {
				ps.Close()
			}
			b.send(conn, struct {
				Type   string `json:"type"`
				Code   int    `json:"code"`
				Reason string `json:"reason"`
			}{"transcription:closed", code, reason})
		},
		OnError: func(err error) {
			log.Error().Err(err).Str("module", "transcribe").Str("sid", string(sid)).Msg("provider error")
			if b.release(sid, ps) {
				ps.Close()
			}
			// The parent connection stays up; only the session dies.
			b.send(conn, struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}{"transcription:error", "transcription provider error"})
		},
	}

	ps, err := b.client.Open(language, handlers)
	if err != nil {
		return core.ProviderErr(err.Error())
	}

	b.mu.Lock()
	b.sessions[sid] = ps
	b.mu.Unlock()

	// Ready goes out before the read loop starts so no result can beat it.
	b.send(conn, struct {
		Type string `json:"type"`
	}{"transcription:ready"})
	ps.Listen()
	log.Info().Str("module", "transcribe").Str("sid", string(sid)).Str("language", language).Msg("transcription started")
	return nil
}

// Feed forwards an audio chunk to the connection's open session. Chunks
// arriving before start completes are dropped, an accepted race.
func (b *Bridge) Feed(sid core.SessionID, chunk []byte) {
	b.mu.Lock()
	ps, ok := b.sessions[sid]
	b.mu.Unlock()
	if !ok {
		return
	}
	if err := ps.SendAudio(chunk); err != nil {
		log.Warn().Err(err).Str("module", "transcribe").Str("sid", string(sid)).Msg("audio forward failed")
	}
}

// Stop closes and removes the connection's session, if any. Idempotent.
func (b *Bridge) Stop(sid core.SessionID) {
	b.mu.Lock()
	ps, ok := b.sessions[sid]
	if ok {
		delete(b.sessions, sid)
	}
	b.mu.Unlock()
	if ok {
		ps.Close()
	}
}

// Active reports whether the connection currently has an open session.
func (b *Bridge) Active(sid core.SessionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[sid]
	return ok
}

// release removes the session only if it is still the one indexed for sid.
// A restart may already have replaced it; that newer session must survive.
func (b *Bridge) release(sid core.SessionID, ps *ProviderSession) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.sessions[sid]; ok && current == ps {
		delete(b.sessions, sid)
		return true
	}
	return false
}

func (b *Bridge) send(conn core.SignalConn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "transcribe").Msg("marshal event")
		return
	}
	if err := conn.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "transcribe").Msg("dropped event")
	}
}
