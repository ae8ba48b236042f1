package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	baseURL     string
	turns       int
	texts       []string
	maxSegments int
	timeout     time.Duration
	verbose     bool
}

type chatMessage struct {
	Text             string          `json:"text"`
	FacialExpression string          `json:"facialExpression"`
	Animation        string          `json:"animation"`
	Audio            string          `json:"audio"`
	Lipsync          json.RawMessage `json:"lipsync"`
}

type chatResponse struct {
	Messages []chatMessage `json:"messages"`
}

type turnResult struct {
	Text     string
	Segments int
	Elapsed  time.Duration
}

var defaultUtterances = []string{
	"Hello!",
	"Tell me about your day in two sentences.",
	"What makes you laugh?",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts     options
		textsRaw string
	)
	root := &cobra.Command{
		Use:          "chatprobe",
		Short:        "Exercise a running avatar chat server and validate its replies",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:3000", "avatar chat server base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 90*time.Second, "per-request timeout")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "POST utterances to /chat and check every segment carries audio and lip-sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.finalize(textsRaw); err != nil {
				return err
			}
			results, err := runChat(cmd.Context(), &http.Client{Timeout: opts.timeout}, opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), results)
			return nil
		},
	}
	chatCmd.Flags().IntVar(&opts.turns, "turns", 3, "number of requests to send")
	chatCmd.Flags().StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	chatCmd.Flags().IntVar(&opts.maxSegments, "max-segments", 3, "maximum segments a reply may carry")
	chatCmd.Flags().BoolVar(&opts.verbose, "verbose", true, "print per-turn progress")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the server onboarding checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.finalize(""); err != nil {
				return err
			}
			return printStatus(cmd.Context(), &http.Client{Timeout: opts.timeout}, opts.baseURL, cmd.OutOrStdout())
		},
	}

	root.AddCommand(chatCmd, statusCmd)
	return root
}

func (o *options) finalize(textsRaw string) error {
	o.baseURL = strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	if o.baseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if o.timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	if o.maxSegments <= 0 {
		o.maxSegments = 3
	}
	if o.turns <= 0 {
		o.turns = 1
	}
	if strings.TrimSpace(textsRaw) == "" {
		o.texts = append([]string(nil), defaultUtterances...)
		return nil
	}
	o.texts = nil
	for _, part := range strings.Split(textsRaw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			o.texts = append(o.texts, t)
		}
	}
	if len(o.texts) == 0 {
		return fmt.Errorf("texts produced no non-empty utterances")
	}
	return nil
}

func runChat(ctx context.Context, client *http.Client, opts options, out io.Writer) ([]turnResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]turnResult, 0, opts.turns)
	for i := 0; i < opts.turns; i++ {
		text := opts.texts[i%len(opts.texts)]
		started := time.Now()
		resp, err := postChat(ctx, client, opts.baseURL, text)
		if err != nil {
			return results, fmt.Errorf("turn %d: %w", i+1, err)
		}
		if err := validateResponse(resp, opts.maxSegments); err != nil {
			return results, fmt.Errorf("turn %d: %w", i+1, err)
		}
		r := turnResult{Text: text, Segments: len(resp.Messages), Elapsed: time.Since(started)}
		results = append(results, r)
		if opts.verbose {
			fmt.Fprintf(out, "chatprobe: turn %d/%d text=%q segments=%d elapsed=%s\n", i+1, opts.turns, text, r.Segments, r.Elapsed.Round(time.Millisecond))
		}
	}
	return results, nil
}

func postChat(ctx context.Context, client *http.Client, baseURL, text string) (chatResponse, error) {
	payload, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return chatResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat", bytes.NewReader(payload))
	if err != nil {
		return chatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return chatResponse{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<20))
	if err != nil {
		return chatResponse{}, err
	}
	if res.StatusCode != http.StatusOK {
		return chatResponse{}, fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return chatResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Messages == nil {
		return chatResponse{}, fmt.Errorf("response missing messages list")
	}
	return out, nil
}

func validateResponse(resp chatResponse, maxSegments int) error {
	if len(resp.Messages) > maxSegments {
		return fmt.Errorf("reply has %d segments, max %d", len(resp.Messages), maxSegments)
	}
	for i, m := range resp.Messages {
		if strings.TrimSpace(m.Text) == "" {
			return fmt.Errorf("segment %d: empty text", i)
		}
		audio, err := base64.StdEncoding.DecodeString(m.Audio)
		if err != nil {
			return fmt.Errorf("segment %d: audio is not base64: %w", i, err)
		}
		if len(audio) == 0 {
			return fmt.Errorf("segment %d: empty audio", i)
		}
		var cues map[string]any
		if err := json.Unmarshal(m.Lipsync, &cues); err != nil {
			return fmt.Errorf("segment %d: lipsync is not a JSON object: %w", i, err)
		}
	}
	return nil
}

func printSummary(out io.Writer, results []turnResult) {
	if len(results) == 0 {
		return
	}
	elapsed := make([]time.Duration, 0, len(results))
	segments := 0
	for _, r := range results {
		elapsed = append(elapsed, r.Elapsed)
		segments += r.Segments
	}
	sort.Slice(elapsed, func(i, j int) bool { return elapsed[i] < elapsed[j] })
	p50 := elapsed[len(elapsed)/2]
	fmt.Fprintf(out, "chatprobe: %d turns ok, %d segments, p50=%s max=%s\n",
		len(results), segments, p50.Round(time.Millisecond), elapsed[len(elapsed)-1].Round(time.Millisecond))
}

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Label  string `json:"label"`
	Detail string `json:"detail"`
	Fix    string `json:"fix"`
}

func printStatus(ctx context.Context, client *http.Client, baseURL string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/onboarding/status", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", res.StatusCode)
	}
	var status struct {
		Checks []onboardingCheck `json:"checks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		return fmt.Errorf("decode status: %w", err)
	}
	failed := 0
	for _, c := range status.Checks {
		fmt.Fprintf(out, "[%s] %s: %s\n", c.Status, c.Label, c.Detail)
		if c.Status == "error" {
			failed++
			if c.Fix != "" {
				fmt.Fprintf(out, "       fix: %s\n", c.Fix)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d onboarding checks failing", failed)
	}
	return nil
}
