package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ElevenLabsConfig holds provider settings shared by both transports.
type ElevenLabsConfig struct {
	APIKey          string
	BaseURL         string
	WSBaseURL       string
	ModelID         string
	OutputFormat    string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
}

func (c ElevenLabsConfig) withDefaults() ElevenLabsConfig {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(c.WSBaseURL) == "" {
		c.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(c.ModelID) == "" {
		c.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(c.OutputFormat) == "" {
		c.OutputFormat = "mp3_44100_128"
	}
	if c.Stability <= 0 || c.Stability > 1 {
		c.Stability = 0.5
	}
	if c.SimilarityBoost <= 0 || c.SimilarityBoost > 1 {
		c.SimilarityBoost = 0.75
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	c.WSBaseURL = strings.TrimRight(c.WSBaseURL, "/")
	return c
}

func (c ElevenLabsConfig) voiceSettings() map[string]any {
	return map[string]any{
		"stability":        c.Stability,
		"similarity_boost": c.SimilarityBoost,
	}
}

// ElevenLabsHTTP synthesizes through the REST streaming endpoint.
type ElevenLabsHTTP struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsHTTP(cfg ElevenLabsConfig) *ElevenLabsHTTP {
	cfg = cfg.withDefaults()
	return &ElevenLabsHTTP{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *ElevenLabsHTTP) Synthesize(ctx context.Context, text, voiceID, destPath string) error {
	if strings.TrimSpace(voiceID) == "" {
		return errors.New("voice_id is required")
	}

	payload, err := json.Marshal(map[string]any{
		"text":           text,
		"model_id":       p.cfg.ModelID,
		"voice_settings": p.cfg.voiceSettings(),
	})
	if err != nil {
		return fmt.Errorf("encode tts request: %w", err)
	}

	u := p.cfg.BaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream?output_format=" + url.QueryEscape(p.cfg.OutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &StatusError{Provider: "elevenlabs", StatusCode: res.StatusCode, Body: string(body)}
	}

	return writeFileAtomic(destPath, func(w io.Writer) error {
		n, err := io.Copy(w, res.Body)
		if err != nil {
			return fmt.Errorf("stream tts audio: %w", err)
		}
		if n == 0 {
			return errors.New("elevenlabs returned empty audio")
		}
		return nil
	})
}

// Voice is one entry of the provider's voice catalog.
type Voice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// ListVoices returns the account's voices sorted by name.
func (p *ElevenLabsHTTP) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &StatusError{Provider: "elevenlabs", StatusCode: res.StatusCode, Body: string(body)}
	}

	var parsed struct {
		Voices []Voice `json:"voices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}

	out := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		v.VoiceID = strings.TrimSpace(v.VoiceID)
		v.Name = strings.TrimSpace(v.Name)
		if v.VoiceID == "" || v.Name == "" {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
