package model

import (
	"strings"
	"time"
)

// TransactionType distinguishes money leaving the account from money entering it.
type TransactionType string

// Valid transaction types.
const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// placeholderValues are strings LLMs emit when a field could not be determined.
// They are never acceptable as a merchant name.
var placeholderValues = map[string]struct{}{
	"":        {},
	"n/a":     {},
	"unknown": {},
}

// IsPlaceholder reports whether s is a placeholder token rather than real data.
// Comparison is case-insensitive after trimming.
func IsPlaceholder(s string) bool {
	_, ok := placeholderValues[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Transaction is a single financial transaction extracted from an alert email.
// EmailID is the source message's unique identifier and doubles as the
// deduplication key in storage.
type Transaction struct {
	Date          time.Time       `json:"date"`
	EmailID       string          `json:"email_id"`
	Merchant      string          `json:"merchant"`
	Currency      string          `json:"currency"`
	Category      string          `json:"category,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Type          TransactionType `json:"type"`
	Amount        float64         `json:"amount"`
}

// Valid reports whether the extraction produced a usable transaction:
// a positive amount, a known type, and a non-placeholder merchant.
func (t *Transaction) Valid() bool {
	if t.Amount <= 0 {
		return false
	}
	if t.Type != TypeDebit && t.Type != TypeCredit {
		return false
	}
	return !IsPlaceholder(t.Merchant)
}
