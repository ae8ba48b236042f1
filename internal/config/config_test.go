package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":3000" {
		t.Fatalf("BindAddr = %q, want :3000", cfg.BindAddr)
	}
	if cfg.ElevenLabsVoiceID != "9BWtsMINqrJLrRacOk9x" {
		t.Fatalf("ElevenLabsVoiceID = %q", cfg.ElevenLabsVoiceID)
	}
	if cfg.TTSAttempts != 3 || cfg.MaxSegments != 3 {
		t.Fatalf("TTSAttempts = %d, MaxSegments = %d, want 3/3", cfg.TTSAttempts, cfg.MaxSegments)
	}
	if cfg.ArtifactWaitAttempts != 30 || cfg.ArtifactWaitDelay != 300*time.Millisecond {
		t.Fatalf("wait = %d x %s, want 30 x 300ms", cfg.ArtifactWaitAttempts, cfg.ArtifactWaitDelay)
	}
	if cfg.ModelMaxTokens != 1000 || cfg.ModelTemperature != 0.6 {
		t.Fatalf("model = %d/%v, want 1000/0.6", cfg.ModelMaxTokens, cfg.ModelTemperature)
	}
	if !cfg.AllowAnyOrigin || !cfg.ArtifactIsolateRequests || cfg.ArtifactCleanup {
		t.Fatalf("bool defaults = %+v", cfg)
	}
	if cfg.ArtifactDir != os.TempDir() {
		t.Fatalf("ArtifactDir = %q, want %q", cfg.ArtifactDir, os.TempDir())
	}
	if cfg.TTSConfigured() || cfg.ModelConfigured() {
		t.Fatalf("credentials reported configured without keys")
	}
}

func TestLoadCredentialsAndProviders(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("ELEVEN_LABS_API_KEY", "  sk_eleven  ")
	t.Setenv("MODEL_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ElevenLabsAPIKey != "sk_eleven" {
		t.Fatalf("ElevenLabsAPIKey = %q, want trimmed", cfg.ElevenLabsAPIKey)
	}
	if !cfg.TTSConfigured() || !cfg.ModelConfigured() {
		t.Fatalf("TTSConfigured = %v, ModelConfigured = %v", cfg.TTSConfigured(), cfg.ModelConfigured())
	}

	setCoreEnvEmpty(t)
	t.Setenv("VOICE_PROVIDER", "mock")
	t.Setenv("MODEL_PROVIDER", "mock")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.TTSConfigured() || !cfg.ModelConfigured() {
		t.Fatalf("mock providers should count as configured")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"ARTIFACT_WAIT_ATTEMPTS", "50"},
		{"ARTIFACT_WAIT_DELAY", "1s"},
		{"TTS_ATTEMPTS", "0"},
		{"TTS_ATTEMPTS", "4"},
		{"MAX_SEGMENTS", "0"},
		{"MAX_SEGMENTS", "4"},
		{"VOICE_PROVIDER", "kokoro"},
		{"SEGMENT_OVERFLOW", "drop"},
		{"APP_ALLOW_ANY_ORIGIN", "maybe"},
		{"MODEL_TEMPERATURE", "hot"},
		{"MODEL_TEMPERATURE", "2.5"},
		{"ELEVEN_LABS_TRANSPORT", "grpc"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("Load() error = %v, want error naming %s", err, tc.key)
			}
		})
	}
}

func TestLoadAcceptsBoundaryValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("TTS_ATTEMPTS", "1")
	t.Setenv("MAX_SEGMENTS", "3")
	t.Setenv("MODEL_TEMPERATURE", "0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TTSAttempts != 1 || cfg.MaxSegments != 3 || cfg.ModelTemperature != 0 {
		t.Fatalf("cfg = attempts %d segments %d temperature %v", cfg.TTSAttempts, cfg.MaxSegments, cfg.ModelTemperature)
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	setCoreEnvEmpty(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("APP_BIND_ADDR=:4000\nOPENAI_API_KEY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("APP_BIND_ADDR", ":5000")
	// Registers cleanup so the value loaded from the file does not leak.
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":5000" {
		t.Fatalf("BindAddr = %q, want environment value", cfg.BindAddr)
	}
	if cfg.OpenAIAPIKey != "from-file" {
		t.Fatalf("OpenAIAPIKey = %q, want value from .env", cfg.OpenAIAPIKey)
	}
}

func TestKeyPrefix(t *testing.T) {
	if got := KeyPrefix("sk_abcdef", 5); got != "sk_ab..." {
		t.Fatalf("KeyPrefix() = %q", got)
	}
	if got := KeyPrefix("abc", 5); got != "***" {
		t.Fatalf("KeyPrefix(short) = %q", got)
	}
	if got := KeyPrefix("", 5); got != "(unset)" {
		t.Fatalf("KeyPrefix(empty) = %q", got)
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_LOG_LEVEL",
		"APP_LOG_FORMAT",
		"APP_STARTUP_VALIDATE_TTS",
		"VOICE_PROVIDER",
		"ELEVEN_LABS_API_KEY",
		"ELEVEN_LABS_BASE_URL",
		"ELEVEN_LABS_WS_BASE_URL",
		"ELEVEN_LABS_VOICE_ID",
		"ELEVEN_LABS_MODEL_ID",
		"ELEVEN_LABS_OUTPUT_FORMAT",
		"ELEVEN_LABS_TRANSPORT",
		"TTS_ATTEMPTS",
		"TTS_RETRY_BACKOFF",
		"MODEL_PROVIDER",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"MODEL_MAX_TOKENS",
		"MODEL_TEMPERATURE",
		"MAX_SEGMENTS",
		"SEGMENT_OVERFLOW",
		"ARTIFACT_DIR",
		"ARTIFACT_ISOLATE_REQUESTS",
		"ARTIFACT_CLEANUP",
		"ARTIFACT_WAIT_ATTEMPTS",
		"ARTIFACT_WAIT_DELAY",
		"FFMPEG_PATH",
		"RHUBARB_PATH",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
