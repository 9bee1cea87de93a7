package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
	"github.com/lngsa1234/avari-socketio-backend/internal/domain"
)

// DefaultRejectReason is used when reject-call carries no reason.
const DefaultRejectReason = "Call declined"

// Hub routes call-control and WebRTC signaling events between registered
// connections. It holds no call state of its own: the two clients' local
// state machines are authoritative, the hub only validates routing.
type Hub struct {
	Registry *Registry
}

func NewHub(reg *Registry) *Hub {
	return &Hub{Registry: reg}
}

// Initiate forwards an incoming-call notification to the callee.
// The only call-control operation with an error path: the caller needs to
// know immediately when dialing an absent user.
func (h *Hub) Initiate(from, to domain.UserID) error {
	target, ok := h.Registry.Lookup(to)
	if !ok {
		return core.UserOfflineErr(string(to))
	}
	h.touchFor(from)
	h.send(target.Conn, struct {
		Type string `json:"type"`
		From string `json:"from"`
	}{"incoming-call", string(from)})
	log.Info().Str("module", "app.hub").Str("from", string(from)).Str("to", string(to)).Msg("call initiated")
	return nil
}

// Accept forwards call-accepted. Fire-and-forget: by the time an accept
// races a hangup there is nobody useful to report the miss to.
func (h *Hub) Accept(from, to domain.UserID) {
	target, ok := h.Registry.Lookup(to)
	if !ok {
		return
	}
	h.touchFor(from)
	h.send(target.Conn, struct {
		Type string `json:"type"`
		From string `json:"from"`
	}{"call-accepted", string(from)})
}

// Reject forwards call-rejected, substituting a default reason when the
// client sent none.
func (h *Hub) Reject(from, to domain.UserID, reason string) {
	target, ok := h.Registry.Lookup(to)
	if !ok {
		return
	}
	if reason == "" {
		reason = DefaultRejectReason
	}
	h.touchFor(from)
	h.send(target.Conn, struct {
		Type   string `json:"type"`
		From   string `json:"from"`
		Reason string `json:"reason"`
	}{"call-rejected", string(from), reason})
}

// End forwards call-ended to the named target (when given) and to every
// other member of the sender's match. The broadcast covers the case where
// the direct target is stale. All deliveries are best-effort.
func (h *Hub) End(sid core.SessionID, from, to domain.UserID) {
	payload := struct {
		Type string `json:"type"`
		From string `json:"from"`
	}{"call-ended", string(from)}

	notified := map[core.SessionID]bool{sid: true}
	if to != "" {
		if target, ok := h.Registry.Lookup(to); ok {
			h.send(target.Conn, payload)
			notified[target.SID] = true
		}
	}
	if matchID, ok := h.Registry.MatchOf(sid); ok {
		h.Registry.Touch(matchID)
		for _, peer := range h.Registry.MembersOf(matchID) {
			if notified[peer.SID] {
				continue
			}
			h.send(peer.Conn, payload)
		}
	}
	log.Info().Str("module", "app.hub").Str("from", string(from)).Str("to", string(to)).Msg("call ended")
}

// ForwardOffer relays an opaque session description to the callee, tagged
// with the sender. Target absence is an error: the offer opens negotiation
// and the caller must learn it went nowhere.
func (h *Hub) ForwardOffer(from, to domain.UserID, offer json.RawMessage) error {
	target, ok := h.Registry.Lookup(to)
	if !ok {
		return core.UserOfflineErr(string(to))
	}
	h.touchFor(from)
	h.send(target.Conn, struct {
		Type  string          `json:"type"`
		Offer json.RawMessage `json:"offer"`
		From  string          `json:"from"`
	}{"offer", offer, string(from)})
	return nil
}

// ForwardAnswer relays an opaque answer. Silently dropped when the target
// is gone: the call it answers is already over.
func (h *Hub) ForwardAnswer(from, to domain.UserID, answer json.RawMessage) {
	target, ok := h.Registry.Lookup(to)
	if !ok {
		return
	}
	h.touchFor(from)
	h.send(target.Conn, struct {
		Type   string          `json:"type"`
		Answer json.RawMessage `json:"answer"`
		From   string          `json:"from"`
	}{"answer", answer, string(from)})
}

// ForwardCandidate relays an opaque ICE candidate, same drop semantics as
// answers.
func (h *Hub) ForwardCandidate(from, to domain.UserID, candidate json.RawMessage) {
	target, ok := h.Registry.Lookup(to)
	if !ok {
		return
	}
	h.touchFor(from)
	h.send(target.Conn, struct {
		Type      string          `json:"type"`
		Candidate json.RawMessage `json:"candidate"`
		From      string          `json:"from"`
	}{"ice-candidate", candidate, string(from)})
}

func (h *Hub) touchFor(from domain.UserID) {
	if sender, ok := h.Registry.Lookup(from); ok {
		if matchID, ok := h.Registry.MatchOf(sender.SID); ok {
			h.Registry.Touch(matchID)
		}
	}
}

func (h *Hub) send(conn core.SignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.hub").Msg("marshal event")
		return
	}
	if err := conn.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "app.hub").Msg("dropped event")
	}
}
