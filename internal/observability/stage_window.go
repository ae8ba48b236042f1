package observability

import (
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// StageStats summarizes one pipeline stage over the rolling window.
type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	Failures    int     `json:"failures"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	MaxMS       float64 `json:"max_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	OverTarget  bool    `json:"over_target,omitempty"`
}

type Indicator struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type StageSnapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WindowSize  int          `json:"window_size"`
	Stages      []StageStats `json:"stages"`
	Indicators  []Indicator  `json:"indicators,omitempty"`
}

// stageWindow keeps the last size latency samples per stage in a ring.
// Failure counts and indicators are cumulative until Reset.
type stageWindow struct {
	mu         sync.RWMutex
	size       int
	rings      map[string]*latencyRing
	indicators map[string]int
}

type latencyRing struct {
	samples  []float64
	pos      int
	wrapped  bool
	last     float64
	failures int
}

func (r *latencyRing) push(ms float64) {
	r.samples[r.pos] = ms
	r.last = ms
	r.pos = (r.pos + 1) % len(r.samples)
	if r.pos == 0 {
		r.wrapped = true
	}
}

// sorted returns a sorted copy of the live samples.
func (r *latencyRing) sorted() []float64 {
	n := r.pos
	if r.wrapped {
		n = len(r.samples)
	}
	out := slices.Clone(r.samples[:n])
	slices.Sort(out)
	return out
}

func newStageWindow(size int) *stageWindow {
	if size <= 0 {
		size = 256
	}
	return &stageWindow{
		size:       size,
		rings:      make(map[string]*latencyRing),
		indicators: make(map[string]int),
	}
}

func (w *stageWindow) ring(stage string) *latencyRing {
	r, ok := w.rings[stage]
	if !ok {
		r = &latencyRing{samples: make([]float64, w.size)}
		w.rings[stage] = r
	}
	return r
}

func (w *stageWindow) Observe(stage string, ms float64) {
	if stage == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring(stage).push(ms)
}

func (w *stageWindow) ObserveFailure(stage string) {
	if stage == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ring(stage).failures++
}

func (w *stageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *stageWindow) Snapshot() StageSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.size,
		Stages:      make([]StageStats, 0, len(w.rings)),
	}
	for _, stage := range slices.Sorted(maps.Keys(w.rings)) {
		r := w.rings[stage]
		samples := r.sorted()
		st := StageStats{
			Stage:       stage,
			Samples:     len(samples),
			Failures:    r.failures,
			TargetP95MS: stageTargetP95MS(stage),
		}
		if len(samples) > 0 {
			var sum float64
			for _, v := range samples {
				sum += v
			}
			st.LastMS = round2(r.last)
			st.AvgMS = round2(sum / float64(len(samples)))
			st.P50MS = round2(quantile(samples, 0.50))
			st.P95MS = round2(quantile(samples, 0.95))
			st.P99MS = round2(quantile(samples, 0.99))
			st.MaxMS = round2(samples[len(samples)-1])
			st.OverTarget = st.TargetP95MS > 0 && st.P95MS > st.TargetP95MS
		}
		snap.Stages = append(snap.Stages, st)
	}
	for _, name := range slices.Sorted(maps.Keys(w.indicators)) {
		if n := w.indicators[name]; n > 0 {
			snap.Indicators = append(snap.Indicators, Indicator{Name: name, Count: n})
		}
	}
	return snap
}

func (w *stageWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rings = make(map[string]*latencyRing)
	w.indicators = make(map[string]int)
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	switch n := len(sorted); {
	case n == 0:
		return 0
	case q <= 0:
		return sorted[0]
	case q >= 1:
		return sorted[n-1]
	}
	pos := q * float64(len(sorted)-1)
	lo, frac := math.Modf(pos)
	i := int(lo)
	if frac == 0 || i+1 >= len(sorted) {
		return sorted[i]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Rough budgets: a segment is one TTS round trip plus two local tool runs.
func stageTargetP95MS(stage string) float64 {
	switch stage {
	case "model":
		return 4000
	case "parse":
		return 5
	case "synthesize":
		return 2500
	case "wait_ready":
		return 300
	case "extract_sync":
		return 3000
	case "package":
		return 50
	case "request_total":
		return 20000
	default:
		return 0
	}
}
