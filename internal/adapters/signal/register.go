package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
	"github.com/lngsa1234/avari-socketio-backend/internal/domain"
)

func (ctl *SignalWSController) handleRegister(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type registerPayload struct {
		Type    string `json:"type"`
		UserID  string `json:"userId"`
		MatchID string `json:"matchId"`
	}
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad register payload")
		ctl.sendError(conn, core.ValidationErr("bad register payload"))
		return
	}

	participants, peers, err := ctl.Registry.Register(sid, conn, domain.UserID(p.UserID), domain.MatchID(p.MatchID))
	if err != nil {
		ctl.sendError(conn, err)
		return
	}

	ctl.sendJSON(conn, struct {
		Type             string   `json:"type"`
		MatchID          string   `json:"matchId"`
		UserID           string   `json:"userId"`
		Participants     []string `json:"participants"`
		ParticipantCount int      `json:"participantCount"`
	}{"joined", p.MatchID, p.UserID, participants, len(participants)})

	for _, peer := range peers {
		ctl.sendJSON(peer.Conn, struct {
			Type             string `json:"type"`
			UserID           string `json:"userId"`
			ParticipantCount int    `json:"participantCount"`
		}{"user-joined", p.UserID, len(participants)})
	}
}
