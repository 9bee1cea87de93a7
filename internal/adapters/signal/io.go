package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.disconnect(sid)
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			mt, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			if mt == websocket.BinaryMessage {
				ctl.Bridge.Feed(sid, data)
				continue
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

// disconnect retracts everything this connection owns, transcription
// session first so no provider socket dangles past registry cleanup.
func (ctl *SignalWSController) disconnect(sid core.SessionID) {
	ctl.Bridge.Stop(sid)

	entry, remaining, ok := ctl.Registry.Remove(sid)
	if !ok {
		return
	}
	for _, peer := range remaining {
		ctl.sendJSON(peer.Conn, struct {
			Type   string `json:"type"`
			UserID string `json:"userId"`
		}{"user-left", string(entry.UserID)})
		ctl.sendJSON(peer.Conn, struct {
			Type string `json:"type"`
			From string `json:"from"`
		}{"call-ended", string(entry.UserID)})
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "register":
		ctl.handleRegister(sid, c, data)
	case "initiate-call":
		ctl.handleInitiate(sid, c, data)
	case "accept-call":
		ctl.handleAccept(sid, c, data)
	case "reject-call":
		ctl.handleReject(sid, c, data)
	case "end-call":
		ctl.handleEnd(sid, c, data)
	case "offer":
		ctl.handleOffer(sid, c, data)
	case "answer":
		ctl.handleAnswer(sid, c, data)
	case "ice-candidate":
		ctl.handleCandidate(sid, c, data)
	case "transcription:start":
		ctl.handleTranscriptionStart(sid, c, data)
	case "transcription:stop":
		ctl.handleTranscriptionStop(sid, c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError converts any handler failure into exactly one error event to
// the originating connection. Nothing propagates to other connections.
func (ctl *SignalWSController) sendError(c core.SignalConn, err error) {
	var re *core.RelayError
	if !errors.As(err, &re) {
		re = &core.RelayError{Type: core.ErrTypeInternal, Message: "internal error"}
		log.Error().Err(err).Str("module", "signal").Msg("unexpected handler error")
	}
	ctl.sendJSON(c, struct {
		Type    string `json:"type"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}{"error", re.Type, re.Message})
}
