package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	VoiceProvider string            `json:"voice_provider"`
	ModelProvider string            `json:"model_provider"`
	RunStoreMode  string            `json:"run_store_mode"`
	Checks        []onboardingCheck `json:"checks"`
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, _ *http.Request) {
	checks := make([]onboardingCheck, 0, 8)
	checks = append(checks, s.voiceChecks()...)
	checks = append(checks, s.modelChecks()...)
	checks = append(checks,
		toolCheck("ffmpeg", "Audio transcoder", s.cfg.FFmpegPath, "Install ffmpeg or set FFMPEG_PATH."),
		toolCheck("rhubarb", "Lip-sync extractor", s.cfg.RhubarbPath, "Install Rhubarb Lip Sync or set RHUBARB_PATH."),
		s.artifactDirCheck(),
	)

	mode := s.runStoreMode()
	if mode == "in-memory" {
		checks = append(checks, onboardingCheck{
			ID:     "run_store",
			Status: "warn",
			Label:  "Run ledger",
			Detail: "in-memory only",
			Fix:    "Set DATABASE_URL to keep request history across restarts.",
		})
	} else {
		checks = append(checks, onboardingCheck{ID: "run_store", Status: "ok", Label: "Run ledger", Detail: mode})
	}

	respondJSON(w, http.StatusOK, onboardingStatusResponse{
		VoiceProvider: s.cfg.VoiceProvider,
		ModelProvider: s.cfg.ModelProvider,
		RunStoreMode:  mode,
		Checks:        checks,
	})
}

func (s *Server) voiceChecks() []onboardingCheck {
	switch s.cfg.VoiceProvider {
	case "mock":
		return []onboardingCheck{{
			ID:     "mock_voice",
			Status: "warn",
			Label:  "Voice backend is mock",
			Detail: "Replies carry silent audio.",
			Fix:    "Set VOICE_PROVIDER=elevenlabs and ELEVEN_LABS_API_KEY.",
		}}
	default:
		if strings.TrimSpace(s.cfg.ElevenLabsAPIKey) == "" {
			return []onboardingCheck{{
				ID:     "elevenlabs_key",
				Status: "error",
				Label:  "ElevenLabs API key",
				Detail: "ELEVEN_LABS_API_KEY is not set; chat replies will be empty",
				Fix:    "Set ELEVEN_LABS_API_KEY or switch to VOICE_PROVIDER=mock.",
			}}
		}
		return []onboardingCheck{{
			ID:     "elevenlabs_key",
			Status: "ok",
			Label:  "ElevenLabs API key",
			Detail: fmt.Sprintf("present (%s transport)", s.cfg.ElevenLabsTransport),
		}}
	}
}

func (s *Server) modelChecks() []onboardingCheck {
	if s.cfg.ModelProvider == "mock" {
		return []onboardingCheck{{
			ID:     "mock_model",
			Status: "warn",
			Label:  "Language model is mock",
			Detail: "Replies echo the user message.",
			Fix:    "Set MODEL_PROVIDER=openai or gemini with its API key.",
		}}
	}
	key := "OPENAI_API_KEY"
	if s.cfg.ModelProvider == "gemini" {
		key = "GEMINI_API_KEY"
	}
	if !s.cfg.ModelConfigured() {
		return []onboardingCheck{{
			ID:     "model_key",
			Status: "error",
			Label:  "Language model API key",
			Detail: key + " is not set; chat replies will be empty",
			Fix:    "Set " + key + " or switch to MODEL_PROVIDER=mock.",
		}}
	}
	return []onboardingCheck{{ID: "model_key", Status: "ok", Label: "Language model API key", Detail: s.cfg.ModelProvider}}
}

func toolCheck(id, label, bin, fix string) onboardingCheck {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = id
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return onboardingCheck{ID: id, Status: "error", Label: label, Detail: bin + " not found", Fix: fix}
	}
	return onboardingCheck{ID: id, Status: "ok", Label: label, Detail: path}
}

func (s *Server) artifactDirCheck() onboardingCheck {
	dir := strings.TrimSpace(s.cfg.ArtifactDir)
	if dir == "" {
		dir = os.TempDir()
	}
	probe, err := os.CreateTemp(dir, ".avatarchat-probe-*")
	if err != nil {
		return onboardingCheck{
			ID:     "artifact_dir",
			Status: "error",
			Label:  "Artifact scratch directory",
			Detail: err.Error(),
			Fix:    "Point ARTIFACT_DIR at a writable directory.",
		}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return onboardingCheck{ID: "artifact_dir", Status: "ok", Label: "Artifact scratch directory", Detail: dir}
}
