// Package common provides shared utilities and types used across the application.
package common

import "errors"

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Mail source errors.
	ErrMailConnection = errors.New("mail source connection failed")
	ErrMailRateLimit  = errors.New("mail source rate limit exceeded")

	// Extraction errors.
	ErrNoMessages = errors.New("no messages to extract")
)
