package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/astroCoder-3409/SSS-Backend/internal/advice"
	"github.com/astroCoder-3409/SSS-Backend/internal/aggregator"
	"github.com/astroCoder-3409/SSS-Backend/internal/apperr"
	"github.com/astroCoder-3409/SSS-Backend/internal/api/middleware"
	"github.com/astroCoder-3409/SSS-Backend/internal/spending"
	"github.com/astroCoder-3409/SSS-Backend/internal/store"
	"github.com/astroCoder-3409/SSS-Backend/internal/sync"
)

// monthYearLayout is the wire format for month filters, e.g. "04/2024".
const monthYearLayout = "01/2006"

// PlaidHandler handles Plaid Link token endpoints.
type PlaidHandler struct {
	agg aggregator.Client
	db  *store.Store
	log zerolog.Logger
}

// NewPlaidHandler creates a new Plaid handler.
func NewPlaidHandler(agg aggregator.Client, db *store.Store, log zerolog.Logger) *PlaidHandler {
	return &PlaidHandler{agg: agg, db: db, log: log}
}

// ExchangePublicToken handles POST /api/exchange_public_token
func (h *PlaidHandler) ExchangePublicToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		PublicToken string `json:"public_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PublicToken == "" {
		middleware.WriteError(w, http.StatusBadRequest, "public_token is required")
		return
	}

	exchange, err := h.agg.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Public token exchange failed")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while exchanging the public token.", err.Error())
		return
	}

	if err := h.db.SetPlaidCredentials(ctx, userID, exchange.AccessToken, exchange.ItemID); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to store Plaid credentials")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while exchanging the public token.", err.Error())
		return
	}

	h.log.Info().Str("user_id", userID).Str("item_id", exchange.ItemID).Msg("Linked Plaid item")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"PublicTokenExchange": "complete",
	})
}

// CreateLinkToken handles POST /api/create_link_token
func (h *PlaidHandler) CreateLinkToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	token, err := h.agg.CreateLinkToken(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Link token creation failed")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while creating the link token.", err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, token)
}

// AccountsHandler handles account read endpoints.
type AccountsHandler struct {
	db  *store.Store
	log zerolog.Logger
}

// NewAccountsHandler creates a new accounts handler.
func NewAccountsHandler(db *store.Store, log zerolog.Logger) *AccountsHandler {
	return &AccountsHandler{db: db, log: log}
}

// ListAccounts handles GET /api/accounts
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	accounts, err := h.db.AccountsForUser(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list accounts")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while getting the accounts.", err.Error())
		return
	}

	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": dtos,
	})
}

// TransactionsHandler handles transaction read endpoints.
type TransactionsHandler struct {
	db  *store.Store
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(db *store.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{db: db, log: log}
}

// ListTransactions handles POST /api/transactions
//
// The body may carry {"monthYear": "MM/yyyy"} to restrict the result to one
// calendar month; a null or absent filter returns the full history.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		MonthYear *string `json:"monthYear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var start, end *time.Time
	if req.MonthYear != nil && *req.MonthYear != "" {
		parsed, err := time.Parse(monthYearLayout, *req.MonthYear)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid month format. Please use the MM/YYYY format, or pass null to get the complete transaction history.")
			return
		}
		from := time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		start, end = &from, &to
	}

	transactions, err := h.db.TransactionsForUser(ctx, userID, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list transactions")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while getting the transactions.", err.Error())
		return
	}

	dtos := make([]TransactionDTO, 0, len(transactions))
	for _, t := range transactions {
		dtos = append(dtos, toTransactionDTO(t))
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactionCount": len(dtos),
		"transactions":     dtos,
	})
}

// UserHandler handles user profile endpoints.
type UserHandler struct {
	db  *store.Store
	log zerolog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(db *store.Store, log zerolog.Logger) *UserHandler {
	return &UserHandler{db: db, log: log}
}

// GetUser handles GET /api/user
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	user, err := h.db.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusBadRequest, "Unable to return a user.")
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while getting the user.", err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, toUserDTO(user))
}

// ProtectedData handles GET /api/protected-data
func (h *UserHandler) ProtectedData(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Access granted!",
		"user":    "Authenticated Firebase User ID: " + userID,
	})
}

// SyncHandler handles the account and transaction sync endpoint.
type SyncHandler struct {
	sync *sync.Service
	log  zerolog.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncSvc *sync.Service, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{sync: syncSvc, log: log}
}

// Sync handles GET /api/sync
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	if err := h.sync.SyncAll(ctx, userID); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Sync failed")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while syncing user data.", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdviceHandler handles the financial advice endpoints.
type AdviceHandler struct {
	advice *advice.Service
	log    zerolog.Logger
}

// NewAdviceHandler creates a new advice handler.
func NewAdviceHandler(adviceSvc *advice.Service, log zerolog.Logger) *AdviceHandler {
	return &AdviceHandler{advice: adviceSvc, log: log}
}

// Query handles POST /api/llm/query
func (h *AdviceHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		Query string `json:"query"`
		Month *int   `json:"month"`
		Year  *int   `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Query == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Query cannot be empty")
		return
	}

	answer, err := h.advice.GetFinancialAdvice(ctx, userID, req.Query, req.Month, req.Year)
	if err != nil {
		if apperr.IsKind(err, apperr.ValidationFailed) {
			middleware.WriteError(w, http.StatusBadRequest, "Month must be between 1 and 12")
			return
		}
		h.log.Error().Err(err).Str("user_id", userID).Msg("Advice query failed")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while processing the query.", err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"response": answer,
	})
}

// SpendingData handles GET /api/llm/spending-data
func (h *AdviceHandler) SpendingData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	month, err := intQueryParam(r, "month")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "month must be an integer")
		return
	}
	year, err := intQueryParam(r, "year")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "year must be an integer")
		return
	}

	data, err := h.advice.SpendingData(ctx, userID, month, year)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to aggregate spending data")
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while getting the spending data.", err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, data)
}

func intQueryParam(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// DiagnosticsHandler handles the unauthenticated advice smoke-test endpoints.
// These exist to exercise the advice backend without a Firebase token and are
// not part of the client-facing API.
type DiagnosticsHandler struct {
	db     *store.Store
	advice *advice.Service
	client advice.Client
	log    zerolog.Logger
}

// NewDiagnosticsHandler creates a new diagnostics handler.
func NewDiagnosticsHandler(db *store.Store, adviceSvc *advice.Service, client advice.Client, log zerolog.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{db: db, advice: adviceSvc, client: client, log: log}
}

type diagnosticsRequest struct {
	Query string `json:"query"`
	Month *int   `json:"month"`
	Year  *int   `json:"year"`
}

func (h *DiagnosticsHandler) decodeRequest(r *http.Request) (diagnosticsRequest, int, int) {
	req := diagnosticsRequest{}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Query == "" {
		req.Query = "What are my top spending categories this month, and where could I cut back?"
	}
	now := time.Now().UTC()
	month := int(now.Month())
	year := now.Year()
	if req.Month != nil {
		month = *req.Month
	}
	if req.Year != nil {
		year = *req.Year
	}
	return req, month, year
}

// DummyQuery handles POST /api/test/llm-dummy
//
// Sends a fixed spending summary to the advice backend so connectivity can be
// verified without any synced data.
func (h *DiagnosticsHandler) DummyQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, month, year := h.decodeRequest(r)

	summary := []spending.CategorySpending{
		{Category: "Food And Drink", Amount: decimal.NewFromFloat(450.75)},
		{Category: "General Merchandise", Amount: decimal.NewFromFloat(320.00)},
		{Category: "Transportation", Amount: decimal.NewFromFloat(220.50)},
		{Category: "Entertainment", Amount: decimal.NewFromFloat(180.25)},
		{Category: "Travel", Amount: decimal.NewFromFloat(150.00)},
		{Category: "Personal Care", Amount: decimal.NewFromFloat(85.50)},
		{Category: "Uncategorized", Amount: decimal.NewFromFloat(45.99)},
	}
	total := decimal.Zero
	for _, s := range summary {
		total = total.Add(s.Amount)
	}

	data := spending.Context{
		Month:    time.Month(month).String(),
		Year:     year,
		Spending: summary,
	}
	payload, err := json.Marshal(data)
	if err != nil {
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while building the test payload.", err.Error())
		return
	}

	answer, err := h.client.Advise(ctx, req.Query, string(payload))
	if err != nil {
		h.log.Error().Err(err).Msg("Advice backend test failed")
		var upstream *advice.UpstreamError
		if errors.As(err, &upstream) {
			middleware.WriteProblem(w, upstream.StatusCode, "The advice backend rejected the request.", upstream.Detail)
			return
		}
		middleware.WriteProblem(w, http.StatusServiceUnavailable, "Cannot connect to the advice backend.", err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"test_mode":        "dummy_data",
		"query":            req.Query,
		"month":            month,
		"year":             year,
		"spending_summary": summary,
		"total_spending":   total,
		"total_categories": len(summary),
		"llm_response":     answer,
	})
}

// LiveQuery handles POST /api/test/llm
//
// Runs the full advice path against the first user in the database.
func (h *DiagnosticsHandler) LiveQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, month, year := h.decodeRequest(r)

	user, err := h.db.FirstUser(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{
				"error": "No users in the database.",
				"hint":  "Link a Plaid item and run /api/sync first.",
			})
			return
		}
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while loading the test user.", err.Error())
		return
	}

	data, err := h.advice.SpendingData(ctx, user.UserID, &month, &year)
	if err != nil {
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while getting the spending data.", err.Error())
		return
	}
	if len(data.Spending) == 0 {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"warning": "No spending data for the requested month.",
			"user":    user.UserID,
			"month":   month,
			"year":    year,
		})
		return
	}

	answer, err := h.advice.GetFinancialAdvice(ctx, user.UserID, req.Query, &month, &year)
	if err != nil {
		middleware.WriteProblem(w, http.StatusInternalServerError, "An error occurred while processing the query.", err.Error())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user":             user.UserID,
		"query":            req.Query,
		"month":            month,
		"year":             year,
		"spending_summary": data.Spending,
		"total_categories": len(data.Spending),
		"llm_response":     answer,
	})
}
