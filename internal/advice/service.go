package advice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/astroCoder-3409/SSS-Backend/internal/spending"
)

// Service glues the spending aggregation to the advice client. Advice-call
// failures are deliberately downgraded to descriptive strings: the advice
// path is best-effort and must never fail the request pipeline.
type Service struct {
	spending *spending.Service
	client   Client
	log      zerolog.Logger
}

// NewService creates an advice service.
func NewService(spendingSvc *spending.Service, client Client, log zerolog.Logger) *Service {
	return &Service{spending: spendingSvc, client: client, log: log}
}

// GetFinancialAdvice aggregates the user's spending for the target month and
// asks the advice endpoint the given question. Month validation failures are
// returned as errors (the endpoint is never contacted); downstream call
// failures come back as error strings with a nil error.
func (s *Service) GetFinancialAdvice(ctx context.Context, userID, query string, month, year *int) (string, error) {
	data, err := s.spending.ForAdvice(ctx, userID, month, year)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("GetFinancialAdvice: marshaling spending context: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("month", data.Month).
		Int("year", data.Year).
		Int("categories", len(data.Spending)).
		Msg("Requesting financial advice")

	answer, err := s.client.Advise(ctx, query, string(payload))
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("Advice endpoint call failed")
		return "Error connecting to AI service: " + err.Error(), nil
	}
	if answer == "" {
		return "Error: Received an empty response from the AI service.", nil
	}
	return answer, nil
}

// SpendingData returns the aggregation without contacting the advice
// endpoint. Uses the clamping month policy.
func (s *Service) SpendingData(ctx context.Context, userID string, month, year *int) (*spending.Context, error) {
	return s.spending.RawData(ctx, userID, month, year)
}
