package metrics

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/finflow/finflow/internal/llm"
)

// Call records a single LLM invocation. The JSON shape matches the lines
// appended to the metrics file.
type Call struct {
	Timestamp    time.Time    `json:"timestamp"`
	Provider     llm.Provider `json:"provider"`
	Model        string       `json:"model"`
	UseCase      llm.UseCase  `json:"use_case"`
	ErrorMessage string       `json:"error_message,omitempty"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	LatencyMS    float64      `json:"latency_ms"`
	CostUSD      float64      `json:"cost_usd"`
	Success      bool         `json:"success"`
}

// Filter narrows queries over recorded calls. Zero fields match everything.
type Filter struct {
	Since    time.Time
	Provider llm.Provider
	UseCase  llm.UseCase
}

func (f Filter) matches(c Call) bool {
	if f.Provider != "" && c.Provider != f.Provider {
		return false
	}
	if f.UseCase != "" && c.UseCase != f.UseCase {
		return false
	}
	if !f.Since.IsZero() && c.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// TokenTotals aggregates token usage.
type TokenTotals struct {
	Input  int64 `json:"input_tokens"`
	Output int64 `json:"output_tokens"`
	Total  int64 `json:"total_tokens"`
}

// LatencyStats summarizes call latencies in milliseconds. Percentiles come
// from the sorted sample; small samples report the maximum for p95 (n <= 20)
// and p99 (n <= 100) rather than pretending to tail resolution the data
// does not have.
type LatencyStats struct {
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// Summary is the full report served by the stats endpoints.
type Summary struct {
	CostByProvider  map[llm.Provider]float64 `json:"cost_by_provider"`
	CostByUseCase   map[llm.UseCase]float64  `json:"cost_by_use_case"`
	TotalCalls      int                      `json:"total_calls"`
	SuccessfulCalls int                      `json:"successful_calls"`
	FailedCalls     int                      `json:"failed_calls"`
	SuccessRate     float64                  `json:"success_rate"`
	TotalCostUSD    float64                  `json:"total_cost_usd"`
	TotalTokens     TokenTotals              `json:"total_tokens"`
	Latency         LatencyStats             `json:"latency_stats"`
}

// Tracker records LLM calls in memory with optional append-only JSONL
// persistence. An injected instance is shared by whichever components need
// usage accounting. Safe for concurrent use.
type Tracker struct {
	now    func() time.Time
	logger *slog.Logger
	prices PriceTable
	file   string
	calls  []Call
	mu     sync.Mutex
}

// NewTracker creates a tracker pricing calls from the given table. When
// file is non-empty, calls are appended there as JSON lines and existing
// lines are loaded on startup; persistence failures are logged but never
// fail a call.
func NewTracker(prices PriceTable, file string, logger *slog.Logger) *Tracker {
	if prices == nil {
		prices = DefaultPrices()
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		prices: prices,
		file:   file,
		logger: logger,
		now:    time.Now,
	}
	if file != "" {
		t.load()
	}
	return t
}

// load reads previously persisted calls. Malformed lines are skipped.
func (t *Tracker) load() {
	f, err := os.Open(t.file)
	if err != nil {
		if !os.IsNotExist(err) {
			t.logger.Error("failed to load metrics file", "file", t.file, "error", err)
		}
		return
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	loaded := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(line, &c); err != nil {
			continue
		}
		t.calls = append(t.calls, c)
		loaded++
	}
	if loaded > 0 {
		t.logger.Info("loaded metrics history", "file", t.file, "calls", loaded)
	}
}

// Record tracks one call and returns the computed record. callErr nil means
// success; otherwise the error message is stored with the failure.
func (t *Tracker) Record(provider llm.Provider, model string, useCase llm.UseCase, inputTokens, outputTokens int, latency time.Duration, callErr error) Call {
	c := Call{
		Timestamp:    t.timestamp(),
		Provider:     provider,
		Model:        model,
		UseCase:      useCase,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		LatencyMS:    float64(latency.Microseconds()) / 1000.0,
		Success:      callErr == nil,
		CostUSD:      t.prices.Cost(provider, model, int64(inputTokens), int64(outputTokens)),
	}
	if callErr != nil {
		c.ErrorMessage = callErr.Error()
	}

	t.mu.Lock()
	t.calls = append(t.calls, c)
	t.mu.Unlock()

	t.persist(c)

	t.logger.Info("llm call tracked",
		"provider", provider,
		"use_case", useCase,
		"tokens", inputTokens+outputTokens,
		"cost_usd", c.CostUSD,
		"success", c.Success)

	return c
}

// timestamp reads the injected clock under the lock.
func (t *Tracker) timestamp() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now()
}

// persist appends one call to the metrics file.
func (t *Tracker) persist(c Call) {
	if t.file == "" {
		return
	}

	line, err := json.Marshal(c)
	if err != nil {
		t.logger.Error("failed to marshal metric", "error", err)
		return
	}

	f, err := os.OpenFile(t.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		t.logger.Error("failed to open metrics file", "file", t.file, "error", err)
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		t.logger.Error("failed to persist metric", "file", t.file, "error", err)
	}
}

// filtered returns a copy of matching calls. Callers hold no lock.
func (t *Tracker) filtered(f Filter) []Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Call, 0, len(t.calls))
	for _, c := range t.calls {
		if f.matches(c) {
			out = append(out, c)
		}
	}
	return out
}

// TotalCost sums the USD cost of matching calls.
func (t *Tracker) TotalCost(f Filter) float64 {
	var total float64
	for _, c := range t.filtered(f) {
		total += c.CostUSD
	}
	return total
}

// TokenTotals sums token usage over matching calls.
func (t *Tracker) TokenTotals(f Filter) TokenTotals {
	var totals TokenTotals
	for _, c := range t.filtered(f) {
		totals.Input += int64(c.InputTokens)
		totals.Output += int64(c.OutputTokens)
	}
	totals.Total = totals.Input + totals.Output
	return totals
}

// SuccessRate reports the fraction of matching calls that succeeded, zero
// when nothing matches.
func (t *Tracker) SuccessRate(f Filter) float64 {
	calls := t.filtered(f)
	if len(calls) == 0 {
		return 0
	}
	successful := 0
	for _, c := range calls {
		if c.Success {
			successful++
		}
	}
	return float64(successful) / float64(len(calls))
}

// LatencyStats computes latency percentiles over matching calls.
func (t *Tracker) LatencyStats(f Filter) LatencyStats {
	calls := t.filtered(f)
	if len(calls) == 0 {
		return LatencyStats{}
	}

	latencies := make([]float64, len(calls))
	var sum float64
	for i, c := range calls {
		latencies[i] = c.LatencyMS
		sum += c.LatencyMS
	}
	sort.Float64s(latencies)

	n := len(latencies)
	maxLatency := latencies[n-1]

	stats := LatencyStats{
		P50:  latencies[n/2],
		P95:  maxLatency,
		P99:  maxLatency,
		Mean: sum / float64(n),
		Max:  maxLatency,
	}
	if n > 20 {
		stats.P95 = latencies[int(float64(n)*0.95)]
	}
	if n > 100 {
		stats.P99 = latencies[int(float64(n)*0.99)]
	}
	return stats
}

// CostByProvider breaks total cost down per provider.
func (t *Tracker) CostByProvider() map[llm.Provider]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	costs := make(map[llm.Provider]float64)
	for _, c := range t.calls {
		costs[c.Provider] += c.CostUSD
	}
	return costs
}

// CostByUseCase breaks total cost down per use case.
func (t *Tracker) CostByUseCase() map[llm.UseCase]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	costs := make(map[llm.UseCase]float64)
	for _, c := range t.calls {
		costs[c.UseCase] += c.CostUSD
	}
	return costs
}

// Summary builds the full report over all recorded calls.
func (t *Tracker) Summary() Summary {
	calls := t.filtered(Filter{})

	successful := 0
	for _, c := range calls {
		if c.Success {
			successful++
		}
	}

	s := Summary{
		TotalCalls:      len(calls),
		SuccessfulCalls: successful,
		FailedCalls:     len(calls) - successful,
		TotalCostUSD:    t.TotalCost(Filter{}),
		CostByProvider:  t.CostByProvider(),
		CostByUseCase:   t.CostByUseCase(),
		TotalTokens:     t.TokenTotals(Filter{}),
		Latency:         t.LatencyStats(Filter{}),
	}
	if len(calls) > 0 {
		s.SuccessRate = float64(successful) / float64(len(calls))
	}
	return s
}

// Clear discards all recorded calls and deletes the metrics file.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.calls = nil
	t.mu.Unlock()

	if t.file != "" {
		if err := os.Remove(t.file); err != nil && !os.IsNotExist(err) {
			t.logger.Error("failed to remove metrics file", "file", t.file, "error", err)
		}
	}
	t.logger.Warn("metrics cleared")
}
