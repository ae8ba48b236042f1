package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// ElevenLabsWS synthesizes through the stream-input websocket endpoint.
// Audio frames are appended to the output until the provider marks the stream final.
type ElevenLabsWS struct {
	cfg    ElevenLabsConfig
	dialer *websocket.Dialer
}

func NewElevenLabsWS(cfg ElevenLabsConfig) *ElevenLabsWS {
	cfg = cfg.withDefaults()
	return &ElevenLabsWS{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
	}
}

func (p *ElevenLabsWS) Synthesize(ctx context.Context, text, voiceID, destPath string) error {
	if strings.TrimSpace(voiceID) == "" {
		return errors.New("voice_id is required")
	}

	u, err := url.Parse(p.cfg.WSBaseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("model_id", p.cfg.ModelID)
	q.Set("output_format", p.cfg.OutputFormat)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", p.cfg.APIKey)

	conn, res, err := p.dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if res != nil {
			body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
			_ = res.Body.Close()
			return &StatusError{Provider: "elevenlabs", StatusCode: res.StatusCode, Body: string(body)}
		}
		return fmt.Errorf("dial tts websocket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	// Prime the stream with settings, send the whole text, then an empty
	// string to flush.
	for _, msg := range []map[string]any{
		{"text": " ", "voice_settings": p.cfg.voiceSettings()},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return p.ctxErr(ctx, fmt.Errorf("write tts websocket: %w", err))
		}
	}

	err = writeFileAtomic(destPath, func(w io.Writer) error {
		written := 0
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) && written > 0 {
					return nil
				}
				return fmt.Errorf("read tts websocket: %w", err)
			}
			var frame struct {
				Audio       string `json:"audio"`
				IsFinal     bool   `json:"isFinal"`
				Error       string `json:"error"`
				MessageType string `json:"message_type"`
			}
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			if frame.Error != "" {
				return &StreamError{Code: frame.MessageType, Detail: frame.Error}
			}
			if frame.Audio != "" {
				chunk, err := base64.StdEncoding.DecodeString(frame.Audio)
				if err != nil {
					return fmt.Errorf("decode audio frame: %w", err)
				}
				n, err := w.Write(chunk)
				written += n
				if err != nil {
					return err
				}
			}
			if frame.IsFinal {
				if written == 0 {
					return errors.New("elevenlabs stream ended without audio")
				}
				return nil
			}
		}
	})
	return p.ctxErr(ctx, err)
}

func (p *ElevenLabsWS) ctxErr(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
