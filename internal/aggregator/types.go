// Package aggregator defines provider-neutral types for the external
// financial-data provider, plus the Client interface the sync layer consumes.
// The plaidapi subpackage holds the real implementation.
package aggregator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account is one account as reported by the aggregator.
type Account struct {
	AccountID      string
	Name           string
	OfficialName   string
	Type           string
	Mask           string
	CurrentBalance decimal.Decimal
}

// Transaction is one transaction from an incremental sync payload.
type Transaction struct {
	TransactionID string
	AccountID     string
	Amount        decimal.Decimal
	Date          time.Time
	Name          string
	MerchantName  string
	// Counterparties carries counterparty display names; the first one is the
	// merchant-name fallback when MerchantName is empty.
	Counterparties []string
	Pending        bool

	CategoryPrimary    string
	CategoryDetailed   string
	CategoryConfidence string
}

// RemovedTransaction identifies a transaction deleted upstream.
type RemovedTransaction struct {
	TransactionID string
}

// TransactionsDelta is one page of an incremental transactions sync.
type TransactionsDelta struct {
	Added      []Transaction
	Modified   []Transaction
	Removed    []RemovedTransaction
	NextCursor string
}

// TokenExchange is the result of exchanging a public token.
type TokenExchange struct {
	AccessToken string
	ItemID      string
}

// Client is the aggregator API surface the backend depends on.
type Client interface {
	// ExchangePublicToken swaps a short-lived public token for a long-lived
	// access token and item id.
	ExchangePublicToken(ctx context.Context, publicToken string) (*TokenExchange, error)

	// CreateLinkToken requests a new link session token for the given user.
	CreateLinkToken(ctx context.Context, clientUserID string) (string, error)

	// GetAccounts fetches the full current account list for an access token.
	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)

	// SyncTransactions fetches the incremental transactions delta after
	// cursor. A nil cursor requests the full history from the beginning.
	SyncTransactions(ctx context.Context, accessToken string, cursor *string) (*TransactionsDelta, error)
}
