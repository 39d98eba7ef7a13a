// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/finflow/finflow/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Merchant  string
	Type      model.TransactionType
	Limit     int
	Offset    int
}

// MerchantSummary aggregates spending for a single merchant.
type MerchantSummary struct {
	Merchant string  `json:"merchant"`
	Count    int     `json:"count"`
	Total    float64 `json:"total"`
}

// PeriodTotals aggregates debits and credits over a time period.
type PeriodTotals struct {
	Debit  float64
	Credit float64
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// InsertTransaction stores a transaction keyed by its source email ID.
	// It returns true if a new row was inserted and false if a transaction
	// for the same email already exists; re-processing is a no-op.
	InsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error)
	GetTransactionByEmailID(ctx context.Context, emailID string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int, error)

	// Aggregates for the analytics surface.
	TotalsByMerchant(ctx context.Context, start, end time.Time, limit int) ([]MerchantSummary, error)
	TotalsByPeriod(ctx context.Context, start, end time.Time) (PeriodTotals, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// MessageSource fetches raw alert emails for extraction. Implementations must
// return messages with stable unique identifiers.
type MessageSource interface {
	FetchMessages(ctx context.Context, query string, maxResults int) ([]model.EmailMessage, error)
}

// RetryOptions configures retry behavior for recoverable operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
