// Package extract turns transaction-alert emails into structured
// transactions by prompting an LLM and validating its reply. The pipeline
// composes a response cache, per-provider circuit breakers, and a usage
// tracker, all injected rather than reached for globally.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/finflow/finflow/internal/breaker"
	"github.com/finflow/finflow/internal/llm"
	"github.com/finflow/finflow/internal/metrics"
	"github.com/finflow/finflow/internal/model"
)

const defaultMaxTokens = 500

// Error marks an extraction that failed for infrastructure reasons: the
// provider was unreachable, the breaker was open, or the completion was not
// parseable. Content that parses but fails validation is not an Error; those
// emails simply yield no transaction.
type Error struct {
	Err     error
	EmailID string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed for email %s: %v", e.EmailID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result pairs an email with its extraction outcome in a batch.
type Result struct {
	Err         error
	Transaction *model.Transaction
	Message     model.EmailMessage
}

// Config controls extraction behavior.
type Config struct {
	// DefaultCurrency is assumed when the email does not state one.
	DefaultCurrency string
	// PromptDir overrides the embedded prompt templates.
	PromptDir string
	// PromptVersion pins a template version; empty selects the latest.
	PromptVersion string
	// MaxTokens caps completion length; zero defers to the template.
	MaxTokens int
}

// Extractor runs the extraction pipeline. Cache, breakers, and tracker are
// optional; a nil component is skipped.
type Extractor struct {
	now      func() time.Time
	router   *llm.Router
	cache    *llm.ResponseCache
	breakers *breaker.Registry
	tracker  *metrics.Tracker
	tmpl     *Template
	logger   *slog.Logger
	currency string
	tokens   int
}

// New creates an extractor using the router's extraction client.
func New(cfg Config, router *llm.Router, cache *llm.ResponseCache, breakers *breaker.Registry, tracker *metrics.Tracker, logger *slog.Logger) (*Extractor, error) {
	if router == nil {
		return nil, errors.New("extractor requires a router")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tmpl, err := LoadTemplate(cfg.PromptDir, "transaction", cfg.PromptVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load extraction prompt: %w", err)
	}

	currency := cfg.DefaultCurrency
	if currency == "" {
		currency = "INR"
	}

	tokens := cfg.MaxTokens
	if tokens == 0 {
		tokens = tmpl.MaxTokens(defaultMaxTokens)
	}

	return &Extractor{
		router:   router,
		cache:    cache,
		breakers: breakers,
		tracker:  tracker,
		tmpl:     tmpl,
		currency: currency,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// PromptVersion reports the loaded template version.
func (e *Extractor) PromptVersion() string { return e.tmpl.Version }

// Extract pulls a transaction out of one email. It returns (nil, nil) when
// the completion parses but describes nothing usable, and *Error when the
// call itself failed. Extraction always runs at temperature zero so repeated
// runs over the same email are cacheable and deterministic.
func (e *Extractor) Extract(ctx context.Context, msg model.EmailMessage) (*model.Transaction, error) {
	client := e.router.ClientFor(llm.UseCaseExtraction)

	req := llm.Request{
		UseCase:      llm.UseCaseExtraction,
		SystemPrompt: e.tmpl.SystemPrompt,
		Prompt:       e.tmpl.Render(map[string]string{"email_content": msg.ContextText()}),
		Temperature:  0,
		MaxTokens:    e.tokens,
	}

	key := llm.CacheKey(client.Provider(), client.Model(), req)

	var resp llm.Response
	cached := false
	if e.cache != nil {
		if hit, ok := e.cache.Get(key); ok {
			resp = hit
			cached = true
			e.logger.Debug("extraction served from cache", "email_id", msg.ID)
		}
	}

	if !cached {
		generate := func() error {
			start := e.now()
			var genErr error
			resp, genErr = client.Generate(ctx, req)
			if e.tracker != nil {
				e.tracker.Record(client.Provider(), client.Model(), llm.UseCaseExtraction,
					resp.InputTokens, resp.OutputTokens, e.now().Sub(start), genErr)
			}
			return genErr
		}

		var err error
		if e.breakers != nil {
			err = e.breakers.Get(string(client.Provider())).Execute(generate)
		} else {
			err = generate()
		}
		if err != nil {
			e.logger.Error("llm extraction failed", "email_id", msg.ID, "error", err)
			return nil, &Error{EmailID: msg.ID, Err: err}
		}

		if e.cache != nil {
			e.cache.Put(key, client.Provider(), client.Model(), resp)
		}
	}

	var raw rawExtraction
	if err := llm.DecodeJSONObject(resp.Text, &raw); err != nil {
		e.logger.Error("unparseable extraction response", "email_id", msg.ID, "error", err)
		return nil, &Error{EmailID: msg.ID, Err: err}
	}

	txn, ok := e.clean(msg, raw)
	if !ok || !txn.Valid() {
		e.logger.Warn("extraction rejected by validation", "email_id", msg.ID)
		return nil, nil
	}

	e.logger.Info("transaction extracted",
		"email_id", msg.ID,
		"merchant", txn.Merchant,
		"amount", txn.Amount)

	return txn, nil
}

// ExtractBatch processes emails sequentially, never aborting: every input
// yields a Result whether it produced a transaction, failed validation, or
// hit an infrastructure error.
func (e *Extractor) ExtractBatch(ctx context.Context, msgs []model.EmailMessage) []Result {
	e.logger.Info("extracting batch", "size", len(msgs))

	results := make([]Result, 0, len(msgs))
	successful := 0
	for _, msg := range msgs {
		txn, err := e.Extract(ctx, msg)
		if err != nil {
			e.logger.Error("batch item failed", "email_id", msg.ID, "error", err)
		}
		if txn != nil {
			successful++
		}
		results = append(results, Result{Message: msg, Transaction: txn, Err: err})
	}

	e.logger.Info("batch extraction completed",
		"total", len(msgs),
		"successful", successful,
		"failed", len(msgs)-successful)

	return results
}

// rawExtraction is the JSON shape the prompt asks for. Amount is decoded
// loosely since models sometimes quote numbers. Date and currency are
// pointers so a key the model omitted entirely can be told apart from a
// present "N/A": omission rejects the record, "N/A" gets defaulted.
type rawExtraction struct {
	Amount        any     `json:"amount"`
	Type          string  `json:"type"`
	Merchant      string  `json:"merchant"`
	Date          *string `json:"date"`
	Currency      *string `json:"currency"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"payment_method"`
}

// clean normalizes raw fields into a transaction. A false return means the
// data is unusable, which is a content outcome rather than an error. All
// five required keys (amount, type, merchant, date, currency) must be
// present in the completion; a missing key rejects the record, while a
// present placeholder value is defaulted where one exists.
func (e *Extractor) clean(msg model.EmailMessage, raw rawExtraction) (*model.Transaction, bool) {
	if raw.Date == nil || raw.Currency == nil {
		return nil, false
	}

	amount, ok := coerceAmount(raw.Amount)
	if !ok || amount <= 0 {
		return nil, false
	}

	typ := model.TransactionType(strings.ToLower(strings.TrimSpace(raw.Type)))
	if typ != model.TypeDebit && typ != model.TypeCredit {
		return nil, false
	}

	merchant := strings.TrimSpace(raw.Merchant)
	if model.IsPlaceholder(merchant) {
		return nil, false
	}

	currency := strings.ToUpper(strings.TrimSpace(*raw.Currency))
	if currency == "" || currency == "N/A" {
		currency = e.currency
	}

	category := strings.TrimSpace(raw.Category)
	if model.IsPlaceholder(category) {
		category = ""
	}

	payment := strings.TrimSpace(raw.PaymentMethod)
	if model.IsPlaceholder(payment) {
		payment = ""
	}

	return &model.Transaction{
		EmailID:       msg.ID,
		Amount:        amount,
		Type:          typ,
		Merchant:      merchant,
		Date:          e.parseDate(*raw.Date),
		Currency:      currency,
		Category:      category,
		PaymentMethod: payment,
	}, true
}

func coerceAmount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	time.RFC1123Z,
}

// parseDate tries common date shapes, falling back to the current time when
// the model returned nothing usable. An unknown date should not discard an
// otherwise good transaction.
func (e *Extractor) parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "n/a") {
		return e.now()
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed
		}
	}
	e.logger.Warn("unparseable transaction date", "value", s)
	return e.now()
}
