package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the avatar chat service.
type Config struct {
	BindAddr           string
	ShutdownTimeout    time.Duration
	MetricsNamespace   string
	AllowAnyOrigin     bool
	LogLevel           string
	LogFormat          string
	StartupValidateTTS bool

	VoiceProvider          string
	ElevenLabsAPIKey       string
	ElevenLabsBaseURL      string
	ElevenLabsWSBaseURL    string
	ElevenLabsVoiceID      string
	ElevenLabsModelID      string
	ElevenLabsOutputFormat string
	ElevenLabsTransport    string
	TTSAttempts            int
	TTSRetryBackoff        time.Duration

	ModelProvider    string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	GeminiAPIKey     string
	GeminiModel      string
	ModelMaxTokens   int
	ModelTemperature float64

	MaxSegments     int
	SegmentOverflow string

	ArtifactDir             string
	ArtifactIsolateRequests bool
	ArtifactCleanup         bool
	ArtifactWaitAttempts    int
	ArtifactWaitDelay       time.Duration

	FFmpegPath  string
	RhubarbPath string

	DatabaseURL string
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env").
// Variables already present in the environment win; missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":3000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "avatarchat"),
		LogLevel:         strings.ToLower(envOrDefault("APP_LOG_LEVEL", "info")),
		LogFormat:        strings.ToLower(envOrDefault("APP_LOG_FORMAT", "json")),

		VoiceProvider:       strings.ToLower(envOrDefault("VOICE_PROVIDER", "elevenlabs")),
		ElevenLabsAPIKey:    stringsTrimSpace("ELEVEN_LABS_API_KEY"),
		ElevenLabsBaseURL:   envOrDefault("ELEVEN_LABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsWSBaseURL: envOrDefault("ELEVEN_LABS_WS_BASE_URL", "wss://api.elevenlabs.io"),
		ElevenLabsVoiceID:   envOrDefault("ELEVEN_LABS_VOICE_ID", "9BWtsMINqrJLrRacOk9x"),
		ElevenLabsModelID:   envOrDefault("ELEVEN_LABS_MODEL_ID", "eleven_multilingual_v2"),
		// The lip-sync toolchain transcodes from MP3.
		ElevenLabsOutputFormat: envOrDefault("ELEVEN_LABS_OUTPUT_FORMAT", "mp3_44100_128"),
		ElevenLabsTransport:    strings.ToLower(envOrDefault("ELEVEN_LABS_TRANSPORT", "http")),
		TTSAttempts:            3,

		ModelProvider:    strings.ToLower(envOrDefault("MODEL_PROVIDER", "openai")),
		OpenAIAPIKey:     stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:    envOrDefault("OPENAI_BASE_URL", "https://api.chatanywhere.tech/v1"),
		OpenAIModel:      envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		ModelMaxTokens:   1000,
		ModelTemperature: 0.6,

		MaxSegments:     3,
		SegmentOverflow: strings.ToLower(envOrDefault("SEGMENT_OVERFLOW", "truncate")),

		ArtifactDir:             envOrDefault("ARTIFACT_DIR", os.TempDir()),
		ArtifactIsolateRequests: true,
		ArtifactWaitAttempts:    30,
		ArtifactWaitDelay:       300 * time.Millisecond,

		FFmpegPath:  envOrDefault("FFMPEG_PATH", "ffmpeg"),
		RhubarbPath: envOrDefault("RHUBARB_PATH", "rhubarb"),

		DatabaseURL: stringsTrimSpace("DATABASE_URL"),

		ShutdownTimeout:    15 * time.Second,
		AllowAnyOrigin:     true,
		StartupValidateTTS: true,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.StartupValidateTTS, err = boolFromEnv("APP_STARTUP_VALIDATE_TTS", cfg.StartupValidateTTS)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSAttempts, err = intFromEnv("TTS_ATTEMPTS", cfg.TTSAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.TTSRetryBackoff, err = durationFromEnv("TTS_RETRY_BACKOFF", cfg.TTSRetryBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelMaxTokens, err = intFromEnv("MODEL_MAX_TOKENS", cfg.ModelMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelTemperature, err = floatFromEnv("MODEL_TEMPERATURE", cfg.ModelTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxSegments, err = intFromEnv("MAX_SEGMENTS", cfg.MaxSegments)
	if err != nil {
		return Config{}, err
	}
	cfg.ArtifactIsolateRequests, err = boolFromEnv("ARTIFACT_ISOLATE_REQUESTS", cfg.ArtifactIsolateRequests)
	if err != nil {
		return Config{}, err
	}
	cfg.ArtifactCleanup, err = boolFromEnv("ARTIFACT_CLEANUP", cfg.ArtifactCleanup)
	if err != nil {
		return Config{}, err
	}
	cfg.ArtifactWaitAttempts, err = intFromEnv("ARTIFACT_WAIT_ATTEMPTS", cfg.ArtifactWaitAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.ArtifactWaitDelay, err = durationFromEnv("ARTIFACT_WAIT_DELAY", cfg.ArtifactWaitDelay)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.VoiceProvider {
	case "elevenlabs", "mock":
	default:
		return fmt.Errorf("VOICE_PROVIDER must be elevenlabs or mock, got %q", c.VoiceProvider)
	}
	switch c.ElevenLabsTransport {
	case "http", "websocket":
	default:
		return fmt.Errorf("ELEVEN_LABS_TRANSPORT must be http or websocket, got %q", c.ElevenLabsTransport)
	}
	switch c.ModelProvider {
	case "openai", "gemini", "mock":
	default:
		return fmt.Errorf("MODEL_PROVIDER must be openai, gemini or mock, got %q", c.ModelProvider)
	}
	switch c.SegmentOverflow {
	case "truncate", "reject":
	default:
		return fmt.Errorf("SEGMENT_OVERFLOW must be truncate or reject, got %q", c.SegmentOverflow)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("APP_LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.TTSAttempts < 1 || c.TTSAttempts > 3 {
		return fmt.Errorf("TTS_ATTEMPTS must be within [1, 3]")
	}
	if c.TTSRetryBackoff < 0 {
		return fmt.Errorf("TTS_RETRY_BACKOFF must be >= 0")
	}
	if c.ModelMaxTokens <= 0 {
		return fmt.Errorf("MODEL_MAX_TOKENS must be positive")
	}
	if c.ModelTemperature < 0 || c.ModelTemperature > 2 {
		return fmt.Errorf("MODEL_TEMPERATURE must be within [0, 2]")
	}
	if c.MaxSegments < 1 || c.MaxSegments > 3 {
		return fmt.Errorf("MAX_SEGMENTS must be within [1, 3]")
	}
	if c.ArtifactWaitAttempts < 20 || c.ArtifactWaitAttempts > 30 {
		return fmt.Errorf("ARTIFACT_WAIT_ATTEMPTS must be within [20, 30]")
	}
	if c.ArtifactWaitDelay < 200*time.Millisecond || c.ArtifactWaitDelay > 300*time.Millisecond {
		return fmt.Errorf("ARTIFACT_WAIT_DELAY must be within [200ms, 300ms]")
	}
	return nil
}

// TTSConfigured reports whether a speech provider can be called.
func (c Config) TTSConfigured() bool {
	return c.VoiceProvider == "mock" || c.ElevenLabsAPIKey != ""
}

// ModelConfigured reports whether the language model can be called.
func (c Config) ModelConfigured() bool {
	switch c.ModelProvider {
	case "mock":
		return true
	case "gemini":
		return c.GeminiAPIKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

// RejectSegmentOverflow reports whether replies with too many segments fail.
func (c Config) RejectSegmentOverflow() bool {
	return c.SegmentOverflow == "reject"
}

// KeyPrefix returns the first n characters of a secret for startup logs.
func KeyPrefix(key string, n int) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= n {
		return strings.Repeat("*", len(key))
	}
	return key[:n] + "..."
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
