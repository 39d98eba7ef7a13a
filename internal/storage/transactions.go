package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finflow/finflow/internal/common"
	"github.com/finflow/finflow/internal/model"
	"github.com/finflow/finflow/internal/service"
)

// InsertTransaction stores a transaction keyed by its email ID. The email
// ID is the dedup key: reprocessing the same email is a no-op and the
// return value reports whether a row was actually inserted.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateTransaction(txn); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			email_id, date, amount, type, merchant, currency, category, payment_method
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, txn.EmailID, txn.Date, txn.Amount, string(txn.Type), txn.Merchant,
		txn.Currency, nullable(txn.Category), nullable(txn.PaymentMethod))
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	return affected > 0, nil
}

// GetTransactionByEmailID fetches the transaction extracted from one email.
func (s *SQLiteStorage) GetTransactionByEmailID(ctx context.Context, emailID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(emailID, "emailID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT email_id, date, amount, type, merchant, currency, category, payment_method
		FROM transactions WHERE email_id = ?
	`, emailID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction for email %s", common.ErrNotFound, emailID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions lists stored transactions matching the filter, most
// recent first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	where, args := buildFilter(filter)
	query := `
		SELECT email_id, date, amount, type, merchant, currency, category, payment_method
		FROM transactions` + where + ` ORDER BY date DESC`

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

// CountTransactions reports how many stored transactions match the filter.
func (s *SQLiteStorage) CountTransactions(ctx context.Context, filter service.TransactionFilter) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	where, args := buildFilter(filter)
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// TotalsByMerchant aggregates spend per merchant over a date range, largest
// first. limit <= 0 returns all merchants.
func (s *SQLiteStorage) TotalsByMerchant(ctx context.Context, start, end time.Time, limit int) ([]service.MerchantSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %v to %v", ErrInvalidDateRange, start, end)
	}

	query := `
		SELECT merchant, COUNT(*), SUM(amount)
		FROM transactions
		WHERE date >= ? AND date <= ? AND type = ?
		GROUP BY merchant
		ORDER BY SUM(amount) DESC`
	args := []any{start, end, string(model.TypeDebit)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query merchant totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []service.MerchantSummary
	for rows.Next() {
		var s service.MerchantSummary
		if err := rows.Scan(&s.Merchant, &s.Count, &s.Total); err != nil {
			return nil, fmt.Errorf("failed to scan merchant summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate merchant totals: %w", err)
	}
	return summaries, nil
}

// TotalsByPeriod sums debits and credits over a date range.
func (s *SQLiteStorage) TotalsByPeriod(ctx context.Context, start, end time.Time) (service.PeriodTotals, error) {
	if err := validateContext(ctx); err != nil {
		return service.PeriodTotals{}, err
	}
	if end.Before(start) {
		return service.PeriodTotals{}, fmt.Errorf("%w: %v to %v", ErrInvalidDateRange, start, end)
	}

	var totals service.PeriodTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'debit' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'credit' THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE date >= ? AND date <= ?
	`, start, end).Scan(&totals.Debit, &totals.Credit)
	if err != nil {
		return service.PeriodTotals{}, fmt.Errorf("failed to query period totals: %w", err)
	}
	return totals, nil
}

// buildFilter translates a TransactionFilter into a WHERE clause.
func buildFilter(filter service.TransactionFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.StartDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.Merchant != "" {
		clauses = append(clauses, "merchant = ?")
		args = append(args, filter.Merchant)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, string(filter.Type))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var typ string
	var category, payment sql.NullString

	err := row.Scan(&txn.EmailID, &txn.Date, &txn.Amount, &typ, &txn.Merchant,
		&txn.Currency, &category, &payment)
	if err != nil {
		return nil, err
	}

	txn.Type = model.TransactionType(typ)
	txn.Category = category.String
	txn.PaymentMethod = payment.String
	return &txn, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
