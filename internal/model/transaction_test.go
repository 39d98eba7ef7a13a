package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"n/a lowercase", "n/a", true},
		{"n/a uppercase", "N/A", true},
		{"unknown mixed case", "Unknown", true},
		{"real merchant", "Swiggy", false},
		{"merchant containing na", "Nandos", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaceholder(tt.value))
		})
	}
}

func TestTransactionValid(t *testing.T) {
	base := Transaction{
		EmailID:  "m1",
		Amount:   450,
		Type:     TypeDebit,
		Merchant: "Swiggy",
		Currency: "INR",
	}

	t.Run("well formed", func(t *testing.T) {
		txn := base
		assert.True(t, txn.Valid())
	})

	t.Run("zero amount", func(t *testing.T) {
		txn := base
		txn.Amount = 0
		assert.False(t, txn.Valid())
	})

	t.Run("negative amount", func(t *testing.T) {
		txn := base
		txn.Amount = -10
		assert.False(t, txn.Valid())
	})

	t.Run("unknown type", func(t *testing.T) {
		txn := base
		txn.Type = "transfer"
		assert.False(t, txn.Valid())
	})

	t.Run("placeholder merchant", func(t *testing.T) {
		txn := base
		txn.Merchant = "N/A"
		assert.False(t, txn.Valid())
	})
}

func TestEmailMessageContextText(t *testing.T) {
	msg := EmailMessage{
		Subject: "Transaction alert",
		Date:    "Mon, 13 Jan 2025 10:00:00 +0530",
		Snippet: "INR 450.00 debited",
	}
	text := msg.ContextText()
	assert.Contains(t, text, "Subject: Transaction alert")
	assert.Contains(t, text, "Content: INR 450.00 debited")
}
