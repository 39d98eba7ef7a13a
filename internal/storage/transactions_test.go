package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finflow/finflow/internal/common"
	"github.com/finflow/finflow/internal/model"
	"github.com/finflow/finflow/internal/service"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))

	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTransaction(emailID string, date time.Time, amount float64) *model.Transaction {
	return &model.Transaction{
		EmailID:       emailID,
		Date:          date,
		Amount:        amount,
		Type:          model.TypeDebit,
		Merchant:      "Swiggy",
		Currency:      "INR",
		PaymentMethod: "UPI",
	}
}

func TestInsertTransaction(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	date := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)

	t.Run("first insert succeeds", func(t *testing.T) {
		inserted, err := s.InsertTransaction(ctx, testTransaction("msg-1", date, 450))
		require.NoError(t, err)
		assert.True(t, inserted)
	})

	t.Run("same email is a no-op", func(t *testing.T) {
		inserted, err := s.InsertTransaction(ctx, testTransaction("msg-1", date, 999))
		require.NoError(t, err)
		assert.False(t, inserted)

		// The original row is untouched.
		got, err := s.GetTransactionByEmailID(ctx, "msg-1")
		require.NoError(t, err)
		assert.Equal(t, 450.0, got.Amount)
	})

	t.Run("invalid transaction rejected", func(t *testing.T) {
		txn := testTransaction("msg-2", date, 0)
		_, err := s.InsertTransaction(ctx, txn)
		assert.ErrorIs(t, err, ErrInvalidTransaction)

		txn = testTransaction("", date, 100)
		_, err = s.InsertTransaction(ctx, txn)
		assert.ErrorIs(t, err, ErrInvalidTransaction)
	})
}

func TestGetTransactionByEmailID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	date := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)

	txn := testTransaction("msg-1", date, 450)
	txn.Category = "food"
	_, err := s.InsertTransaction(ctx, txn)
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		got, err := s.GetTransactionByEmailID(ctx, "msg-1")
		require.NoError(t, err)
		assert.Equal(t, "Swiggy", got.Merchant)
		assert.Equal(t, "food", got.Category)
		assert.Equal(t, "UPI", got.PaymentMethod)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.GetTransactionByEmailID(ctx, "msg-404")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestGetTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	seed := []*model.Transaction{
		{EmailID: "m1", Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Amount: 100, Type: model.TypeDebit, Merchant: "Swiggy", Currency: "INR"},
		{EmailID: "m2", Date: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), Amount: 200, Type: model.TypeDebit, Merchant: "Uber", Currency: "INR"},
		{EmailID: "m3", Date: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), Amount: 5000, Type: model.TypeCredit, Merchant: "Acme Payroll", Currency: "INR"},
	}
	for _, txn := range seed {
		_, err := s.InsertTransaction(ctx, txn)
		require.NoError(t, err)
	}

	t.Run("unfiltered, newest first", func(t *testing.T) {
		got, err := s.GetTransactions(ctx, service.TransactionFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "m3", got[0].EmailID)
		assert.Equal(t, "m1", got[2].EmailID)
	})

	t.Run("by type", func(t *testing.T) {
		got, err := s.GetTransactions(ctx, service.TransactionFilter{Type: model.TypeCredit})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Acme Payroll", got[0].Merchant)
	})

	t.Run("by merchant", func(t *testing.T) {
		got, err := s.GetTransactions(ctx, service.TransactionFilter{Merchant: "Uber"})
		require.NoError(t, err)
		require.Len(t, got, 1)
	})

	t.Run("by date range", func(t *testing.T) {
		start := time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)
		end := time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)
		got, err := s.GetTransactions(ctx, service.TransactionFilter{StartDate: &start, EndDate: &end})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "m2", got[0].EmailID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		got, err := s.GetTransactions(ctx, service.TransactionFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = s.GetTransactions(ctx, service.TransactionFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "m1", got[0].EmailID)
	})

	t.Run("count honors filters", func(t *testing.T) {
		count, err := s.CountTransactions(ctx, service.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		count, err = s.CountTransactions(ctx, service.TransactionFilter{Type: model.TypeDebit})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	seed := []*model.Transaction{
		{EmailID: "m1", Date: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), Amount: 100, Type: model.TypeDebit, Merchant: "Swiggy", Currency: "INR"},
		{EmailID: "m2", Date: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC), Amount: 300, Type: model.TypeDebit, Merchant: "Swiggy", Currency: "INR"},
		{EmailID: "m3", Date: time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), Amount: 250, Type: model.TypeDebit, Merchant: "Uber", Currency: "INR"},
		{EmailID: "m4", Date: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), Amount: 5000, Type: model.TypeCredit, Merchant: "Acme Payroll", Currency: "INR"},
	}
	for _, txn := range seed {
		_, err := s.InsertTransaction(ctx, txn)
		require.NoError(t, err)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	t.Run("totals by merchant rank debits", func(t *testing.T) {
		summaries, err := s.TotalsByMerchant(ctx, start, end, 0)
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		assert.Equal(t, "Swiggy", summaries[0].Merchant)
		assert.Equal(t, 2, summaries[0].Count)
		assert.InDelta(t, 400.0, summaries[0].Total, 0.001)
		assert.Equal(t, "Uber", summaries[1].Merchant)
	})

	t.Run("merchant limit", func(t *testing.T) {
		summaries, err := s.TotalsByMerchant(ctx, start, end, 1)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "Swiggy", summaries[0].Merchant)
	})

	t.Run("period totals split debit and credit", func(t *testing.T) {
		totals, err := s.TotalsByPeriod(ctx, start, end)
		require.NoError(t, err)
		assert.InDelta(t, 650.0, totals.Debit, 0.001)
		assert.InDelta(t, 5000.0, totals.Credit, 0.001)
	})

	t.Run("empty range is zero", func(t *testing.T) {
		totals, err := s.TotalsByPeriod(ctx, start.AddDate(-1, 0, 0), end.AddDate(-1, 0, 0))
		require.NoError(t, err)
		assert.Zero(t, totals.Debit)
		assert.Zero(t, totals.Credit)
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		_, err := s.TotalsByPeriod(ctx, end, start)
		assert.ErrorIs(t, err, ErrInvalidDateRange)

		_, err = s.TotalsByMerchant(ctx, end, start, 0)
		assert.ErrorIs(t, err, ErrInvalidDateRange)
	})
}

func TestMigrate(t *testing.T) {
	t.Run("migrations are idempotent", func(t *testing.T) {
		s := newTestStorage(t)
		assert.NoError(t, s.Migrate(context.Background()))
	})

	t.Run("schema version lands on expected", func(t *testing.T) {
		s := newTestStorage(t)

		var version int
		require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
		assert.Equal(t, ExpectedSchemaVersion, version)
	})
}
