package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
	"github.com/lngsa1234/avari-socketio-backend/internal/domain"
)

type callPayload struct {
	Type   string `json:"type"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// sender resolves the userId this connection registered under. Call
// control before registration is a validation failure, not a crash.
func (ctl *SignalWSController) sender(sid core.SessionID, conn *WsSignalConn) (domain.UserID, bool) {
	from, ok := ctl.Registry.UserOf(sid)
	if !ok {
		ctl.sendError(conn, core.ValidationErr("not registered"))
		return "", false
	}
	return from, true
}

func (ctl *SignalWSController) handleInitiate(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad initiate-call payload"))
		return
	}
	from, ok := ctl.sender(sid, conn)
	if !ok {
		return
	}
	if err := ctl.Hub.Initiate(from, domain.UserID(p.To)); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) handleAccept(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad accept-call payload"))
		return
	}
	from, ok := ctl.sender(sid, conn)
	if !ok {
		return
	}
	ctl.Hub.Accept(from, domain.UserID(p.To))
}

func (ctl *SignalWSController) handleReject(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad reject-call payload"))
		return
	}
	from, ok := ctl.sender(sid, conn)
	if !ok {
		return
	}
	ctl.Hub.Reject(from, domain.UserID(p.To), p.Reason)
}

func (ctl *SignalWSController) handleEnd(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad end-call payload"))
		return
	}
	from, ok := ctl.sender(sid, conn)
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("to", p.To).Msg("end-call")
	ctl.Hub.End(sid, from, domain.UserID(p.To))
}
