package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ent0n29/avatarchat/internal/tts"
)

type listVoicesResponse struct {
	Provider       string      `json:"provider"`
	DefaultVoiceID string      `json:"default_voice_id"`
	Voices         []tts.Voice `json:"voices"`
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	out := listVoicesResponse{
		Provider:       s.cfg.VoiceProvider,
		DefaultVoiceID: s.cfg.ElevenLabsVoiceID,
		Voices:         []tts.Voice{},
	}
	if s.voices == nil || s.cfg.VoiceProvider == "mock" || strings.TrimSpace(s.cfg.ElevenLabsAPIKey) == "" {
		respondJSON(w, http.StatusOK, out)
		return
	}

	voices, err := s.voices.ListVoices(r.Context())
	if err != nil {
		var se *tts.StatusError
		if errors.As(err, &se) {
			respondError(w, http.StatusBadGateway, "elevenlabs_bad_status", err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "elevenlabs_request_failed", err.Error())
		return
	}
	if voices != nil {
		out.Voices = voices
	}
	respondJSON(w, http.StatusOK, out)
}
