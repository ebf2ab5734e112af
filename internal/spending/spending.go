// Package spending aggregates a user's transactions into per-category
// monthly totals.
package spending

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/astroCoder-3409/SSS-Backend/internal/apperr"
	"github.com/astroCoder-3409/SSS-Backend/internal/store"
)

// uncategorized labels transactions whose primary category is absent.
const uncategorized = "Uncategorized"

// CategorySpending is one category's total for the target month.
type CategorySpending struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// Context is a month's aggregated spending, serialized as the data context
// for the advice endpoint.
type Context struct {
	Month    string             `json:"month"`
	Year     int                `json:"year"`
	Spending []CategorySpending `json:"spending"`
}

// Service computes spending aggregations from local storage.
type Service struct {
	db  *store.Store
	now func() time.Time
}

// New creates a spending service.
func New(db *store.Store) *Service {
	return &Service{db: db, now: time.Now}
}

// ForAdvice aggregates spending for the advice path. An explicit month
// outside 1-12 is rejected.
func (s *Service) ForAdvice(ctx context.Context, userID string, month, year *int) (*Context, error) {
	targetMonth, targetYear := s.target(month, year)
	if targetMonth < 1 || targetMonth > 12 {
		return nil, apperr.New(apperr.ValidationFailed, "month must be between 1 and 12")
	}
	return s.aggregate(ctx, userID, targetMonth, targetYear)
}

// RawData aggregates spending for the raw-data path. An out-of-range month is
// silently clamped to the current month. The asymmetry with ForAdvice is
// inherited behavior; see DESIGN.md before unifying.
func (s *Service) RawData(ctx context.Context, userID string, month, year *int) (*Context, error) {
	targetMonth, targetYear := s.target(month, year)
	if targetMonth < 1 || targetMonth > 12 {
		targetMonth = int(s.now().UTC().Month())
	}
	return s.aggregate(ctx, userID, targetMonth, targetYear)
}

func (s *Service) target(month, year *int) (int, int) {
	now := s.now().UTC()
	targetMonth := int(now.Month())
	targetYear := now.Year()
	if month != nil {
		targetMonth = *month
	}
	if year != nil {
		targetYear = *year
	}
	return targetMonth, targetYear
}

// aggregate filters the month's transactions to strictly positive amounts
// (Plaid convention: positive = expense), groups by primary category, sums,
// and sorts descending by total.
func (s *Service) aggregate(ctx context.Context, userID string, month, year int) (*Context, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	txs, err := s.db.TransactionsForUser(ctx, userID, &start, &end)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if !tx.Amount.IsPositive() {
			continue
		}
		category := uncategorized
		if tx.PlaidCategoryPrimary != nil && *tx.PlaidCategoryPrimary != "" {
			category = *tx.PlaidCategoryPrimary
		}
		totals[category] = totals[category].Add(tx.Amount)
	}

	spending := make([]CategorySpending, 0, len(totals))
	for category, amount := range totals {
		spending = append(spending, CategorySpending{Category: category, Amount: amount})
	}
	sort.SliceStable(spending, func(i, j int) bool {
		return spending[i].Amount.GreaterThan(spending[j].Amount)
	})

	return &Context{
		Month:    start.Month().String(),
		Year:     year,
		Spending: spending,
	}, nil
}
