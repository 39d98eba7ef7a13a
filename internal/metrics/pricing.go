// Package metrics tracks LLM usage: per-call cost, token totals, latency
// percentiles, and success rates, with optional JSONL persistence.
package metrics

import (
	"math"
	"strings"

	"github.com/finflow/finflow/internal/llm"
)

// ModelPrice is the USD cost per 1K tokens for a model.
type ModelPrice struct {
	Input  float64
	Output float64
}

// PriceTable maps provider and model to prices. Model matching is by
// substring so dated releases like "claude-3-5-haiku-20241022" match a
// "claude-3-5-haiku" entry; a "default" entry catches the rest.
type PriceTable map[llm.Provider]map[string]ModelPrice

// DefaultPrices returns approximate published prices as of late 2024.
func DefaultPrices() PriceTable {
	return PriceTable{
		llm.ProviderAnthropic: {
			"claude-3-5-sonnet": {Input: 0.003, Output: 0.015},
			"claude-3-5-haiku":  {Input: 0.0008, Output: 0.004},
			"claude-3-haiku":    {Input: 0.00025, Output: 0.00125},
		},
		llm.ProviderOpenAI: {
			"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006},
			"gpt-4o":        {Input: 0.0025, Output: 0.01},
			"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
			"gpt-3.5-turbo": {Input: 0.0005, Output: 0.0015},
		},
		llm.ProviderOllama: {
			// Local models are free.
			"default": {},
		},
	}
}

// Lookup finds the price entry for a provider's model.
func (t PriceTable) Lookup(provider llm.Provider, model string) (ModelPrice, bool) {
	models, ok := t[provider]
	if !ok {
		return ModelPrice{}, false
	}

	// Longest substring match wins so "gpt-4o-mini" is not priced as
	// "gpt-4o".
	var best string
	var found bool
	var price ModelPrice
	for name, p := range models {
		if name != "default" && strings.Contains(model, name) && len(name) > len(best) {
			best = name
			price = p
			found = true
		}
	}
	if found {
		return price, true
	}
	if p, ok := models["default"]; ok {
		return p, true
	}
	return ModelPrice{}, false
}

// Cost computes the USD cost of a call, rounded to 6 decimal places.
// Unknown models cost zero.
func (t PriceTable) Cost(provider llm.Provider, model string, inputTokens, outputTokens int64) float64 {
	price, ok := t.Lookup(provider, model)
	if !ok {
		return 0
	}
	cost := float64(inputTokens)/1000.0*price.Input + float64(outputTokens)/1000.0*price.Output
	return math.Round(cost*1e6) / 1e6
}
