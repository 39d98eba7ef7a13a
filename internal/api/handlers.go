package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finflow/finflow/internal/common"
	"github.com/finflow/finflow/internal/model"
	"github.com/finflow/finflow/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCircuitBreakers(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Breakers == nil {
		writeJSON(w, http.StatusOK, map[string]any{"breakers": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"breakers": s.deps.Breakers.Snapshots()})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	transactions, err := s.deps.Storage.GetTransactions(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	count, err := s.deps.Storage.CountTransactions(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("failed to count transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count transactions")
		return
	}

	if transactions == nil {
		transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": transactions,
		"total":        count,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	emailID := chi.URLParam(r, "emailID")

	txn, err := s.deps.Storage.GetTransactionByEmailID(r.Context(), emailID)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if err != nil {
		s.deps.Logger.Error("failed to get transaction", "email_id", emailID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}

	writeJSON(w, http.StatusOK, txn)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := s.deps.Storage.TotalsByPeriod(r.Context(), start, end)
	if err != nil {
		s.deps.Logger.Error("failed to compute summary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"period": map[string]string{
			"start": start.Format("2006-01-02"),
			"end":   end.Format("2006-01-02"),
		},
		"debit_total":  totals.Debit,
		"credit_total": totals.Credit,
		"net":          totals.Credit - totals.Debit,
	})
}

func (s *Server) handleTopMerchants(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	merchants, err := s.deps.Storage.TotalsByMerchant(r.Context(), start, end, limit)
	if err != nil {
		s.deps.Logger.Error("failed to compute merchant totals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute merchant totals")
		return
	}

	if merchants == nil {
		merchants = []service.MerchantSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"merchants": merchants})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	out := map[string]any{}
	if s.deps.Tracker != nil {
		out["llm"] = s.deps.Tracker.Summary()
	}
	if s.deps.Cache != nil {
		out["cache"] = s.deps.Cache.Stats()
		out["cache_cost_saved_usd"] = s.deps.Cache.CostSaved(s.deps.Prices.Cost)
	}
	if s.deps.Breakers != nil {
		out["breakers"] = s.deps.Breakers.Snapshots()
	}
	writeJSON(w, http.StatusOK, out)
}

// fetchRequest is the optional body for POST /fetch.
type fetchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Source == nil || s.deps.Extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	var req fetchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	jobID := uuid.NewString()
	logger := s.deps.Logger.With("job_id", jobID)

	messages, err := s.deps.Source.FetchMessages(r.Context(), req.Query, req.MaxResults)
	if errors.Is(err, common.ErrNoMessages) {
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":  jobID,
			"fetched": 0,
			"stored":  0,
		})
		return
	}
	if err != nil {
		logger.Error("message fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch messages")
		return
	}

	results := s.deps.Extractor.ExtractBatch(r.Context(), messages)

	stored, duplicates, failed := 0, 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		if res.Transaction == nil {
			continue
		}
		inserted, insErr := s.deps.Storage.InsertTransaction(r.Context(), res.Transaction)
		if insErr != nil {
			logger.Error("failed to store transaction", "email_id", res.Message.ID, "error", insErr)
			failed++
			continue
		}
		if inserted {
			stored++
		} else {
			duplicates++
		}
	}

	logger.Info("fetch completed",
		"fetched", len(messages),
		"stored", stored,
		"duplicates", duplicates,
		"failed", failed)

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":     jobID,
		"fetched":    len(messages),
		"stored":     stored,
		"duplicates": duplicates,
		"failed":     failed,
	})
}

func parseFilter(r *http.Request) (service.TransactionFilter, error) {
	q := r.URL.Query()
	var filter service.TransactionFilter

	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		filter.StartDate = &t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		filter.EndDate = &t
	}
	filter.Merchant = q.Get("merchant")
	if v := q.Get("type"); v != "" {
		typ := model.TransactionType(v)
		if typ != model.TypeDebit && typ != model.TypeCredit {
			return filter, errors.New("invalid type, expected debit or credit")
		}
		filter.Type = typ
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

// parseDateRange reads start_date/end_date, defaulting to the current
// month.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)

	q := r.URL.Query()
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		start = t
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return start, end, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		end = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	if end.Before(start) {
		return start, end, errors.New("end_date is before start_date")
	}
	return start, end, nil
}
