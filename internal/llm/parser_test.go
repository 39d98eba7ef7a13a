package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanMarkdownWrapper(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json fence",
			input:    "```json\n{\"amount\": 450}\n```",
			expected: `{"amount": 450}`,
		},
		{
			name:     "bare fence",
			input:    "```\n{\"amount\": 450}\n```",
			expected: `{"amount": 450}`,
		},
		{
			name:     "no fence",
			input:    `{"amount": 450}`,
			expected: `{"amount": 450}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "\n  ```json\n{\"a\": 1}\n```  \n",
			expected: `{"a": 1}`,
		},
		{
			name:     "fence without trailing newline before close",
			input:    "```json\n{\"a\": 1}```",
			expected: `{"a": 1}`,
		},
		{
			name:     "plain text untouched",
			input:    "no transaction found",
			expected: "no transaction found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanMarkdownWrapper(tt.input))
		})
	}
}

func TestDecodeJSONObject(t *testing.T) {
	type payload struct {
		Amount   float64 `json:"amount"`
		Merchant string  `json:"merchant"`
	}

	t.Run("clean JSON", func(t *testing.T) {
		var p payload
		require.NoError(t, DecodeJSONObject(`{"amount": 450.5, "merchant": "Swiggy"}`, &p))
		assert.Equal(t, 450.5, p.Amount)
		assert.Equal(t, "Swiggy", p.Merchant)
	})

	t.Run("fenced JSON", func(t *testing.T) {
		var p payload
		require.NoError(t, DecodeJSONObject("```json\n{\"amount\": 100, \"merchant\": \"Uber\"}\n```", &p))
		assert.Equal(t, 100.0, p.Amount)
	})

	t.Run("JSON embedded in prose", func(t *testing.T) {
		var p payload
		input := `Here is the extracted transaction: {"amount": 99, "merchant": "Amazon"} as requested.`
		require.NoError(t, DecodeJSONObject(input, &p))
		assert.Equal(t, "Amazon", p.Merchant)
	})

	t.Run("no object present", func(t *testing.T) {
		var p payload
		assert.Error(t, DecodeJSONObject("I could not find a transaction.", &p))
	})

	t.Run("malformed object", func(t *testing.T) {
		var p payload
		assert.Error(t, DecodeJSONObject(`{"amount": }`, &p))
	})
}
