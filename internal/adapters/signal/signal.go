// Package signal is the websocket adapter for the relay protocol: one
// persistent channel per client, JSON event envelopes in text frames,
// raw audio in binary frames.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/app"
	"github.com/lngsa1234/avari-socketio-backend/internal/core"
	"github.com/lngsa1234/avari-socketio-backend/internal/transcribe"
)

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Registry *app.Registry
	Hub      *app.Hub
	Bridge   *transcribe.Bridge

	// AllowedOrigin gates the upgrade; "*" accepts anything.
	AllowedOrigin string
	SendBuffer    int

	// PingPeriod is the keepalive interval of the write pump. Must be
	// shorter than any proxy idle timeout in front of the relay.
	PingPeriod time.Duration
}

func NewSignalWSController(reg *app.Registry, hub *app.Hub, bridge *transcribe.Bridge, allowedOrigin string, sendBuffer int, pingPeriod time.Duration) *SignalWSController {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &SignalWSController{
		Registry:      reg,
		Hub:           hub,
		Bridge:        bridge,
		AllowedOrigin: allowedOrigin,
		SendBuffer:    sendBuffer,
		PingPeriod:    pingPeriod,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	if ctl.AllowedOrigin == "" || ctl.AllowedOrigin == "*" {
		return true
	}
	return r.Header.Get("Origin") == ctl.AllowedOrigin
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	upgrader := websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.SendBuffer),
	}

	ctl.Registry.BindConn(sid, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
