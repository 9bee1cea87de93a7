package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/lngsa1234/avari-socketio-backend/internal/core"
)

func (ctl *SignalWSController) handleTranscriptionStart(sid core.SessionID, conn *WsSignalConn, data []byte) {
	type startPayload struct {
		Type     string `json:"type"`
		Language string `json:"language,omitempty"`
	}
	var p startPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, core.ValidationErr("bad transcription:start payload"))
		return
	}
	if err := ctl.Bridge.Start(sid, conn, p.Language); err != nil {
		// The bridge's own failures surface as transcription:error so the
		// client's transcription UI can handle them in one place.
		var re *core.RelayError
		if errors.As(err, &re) && (re.Type == core.ErrTypeConfiguration || re.Type == core.ErrTypeProvider) {
			ctl.sendJSON(conn, struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			}{"transcription:error", re.Message})
			return
		}
		ctl.sendError(conn, err)
	}
}

func (ctl *SignalWSController) handleTranscriptionStop(sid core.SessionID, conn *WsSignalConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("transcription:stop")
	ctl.Bridge.Stop(sid)
}
