// Package llm provides a provider-agnostic client interface for large
// language model APIs, a factory keyed on a fixed provider enum, a
// deterministic response cache, and a use-case router that picks the
// configured client for each kind of work.
package llm
