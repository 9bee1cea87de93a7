package signal

import (
	"encoding/json"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
	"github.com/lngsa1234/avari-socketio-backend/internal/domain"
)

// Offer, answer and candidate payloads are opaque blobs: the relay
// forwards them verbatim and never inspects SDP or candidate structure.

func (ctl *SignalWSController) handleOffer(sid core.SessionID, conn *WsSignalConn, data []byte) {
	type offerPayload struct {
		Type  string          `json:"type"`
		Offer json.RawMessage `json:"offer"`
		To    string          `json:"to"`
	}
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad offer payload"))
		return
	}
	from, ok := ctl.sender(sid, conn)
	if !ok {
		return
	}
	if err := ctl.Hub.ForwardOffer(from, domain.UserID(p.To), p.Offer); err != nil {
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) handleAnswer(sid core.SessionID, conn *WsSignalConn, data []byte) {
	type answerPayload struct {
		Type   string          `json:"type"`
		Answer json.RawMessage `json:"answer"`
		To     string          `json:"to"`
	}
	var p answerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad answer payload"))
		return
	}
	from, ok := ctl.sender(sid, conn)
	if !ok {
		return
	}
	ctl.Hub.ForwardAnswer(from, domain.UserID(p.To), p.Answer)
}

func (ctl *SignalWSController) handleCandidate(sid core.SessionID, conn *WsSignalConn, data []byte) {
	type candidatePayload struct {
		Type      string          `json:"type"`
		Candidate json.RawMessage `json:"candidate"`
		To        string          `json:"to"`
	}
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad ice-candidate payload"))
		return
	}
	from, ok := ctl.sender(sid, conn)
	if !ok {
		return
	}
	ctl.Hub.ForwardCandidate(from, domain.UserID(p.To), p.Candidate)
}
