package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/finflow/finflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a transaction before it reaches the
// database. Extraction should already have rejected these, so a failure
// here points at a caller bug.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if strings.TrimSpace(txn.EmailID) == "" {
		return fmt.Errorf("%w: missing email ID", ErrInvalidTransaction)
	}
	if !txn.Valid() {
		return fmt.Errorf("%w: email %s", ErrInvalidTransaction, txn.EmailID)
	}
	return nil
}
