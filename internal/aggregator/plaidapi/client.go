// Package plaidapi implements aggregator.Client on top of the official Plaid
// Go SDK.
package plaidapi

import (
	"context"
	"fmt"
	"time"

	"github.com/plaid/plaid-go/v27/plaid"
	"github.com/shopspring/decimal"

	"github.com/astroCoder-3409/SSS-Backend/internal/aggregator"
)

// Config carries the Plaid credentials and link defaults.
type Config struct {
	ClientID     string
	Secret       string
	Environment  string // "sandbox" or "production"
	ClientName   string
	Products     []string
	CountryCodes []string
}

// Client wraps the Plaid API client.
type Client struct {
	api          *plaid.APIClient
	clientName   string
	products     []plaid.Products
	countryCodes []plaid.CountryCode
}

// New creates a Plaid-backed aggregator client.
func New(cfg Config) (*Client, error) {
	env, err := environment(cfg.Environment)
	if err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)
	configuration.UseEnvironment(env)

	products := make([]plaid.Products, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		products = append(products, plaid.Products(p))
	}
	countryCodes := make([]plaid.CountryCode, 0, len(cfg.CountryCodes))
	for _, c := range cfg.CountryCodes {
		countryCodes = append(countryCodes, plaid.CountryCode(c))
	}

	return &Client{
		api:          plaid.NewAPIClient(configuration),
		clientName:   cfg.ClientName,
		products:     products,
		countryCodes: countryCodes,
	}, nil
}

func environment(name string) (plaid.Environment, error) {
	switch name {
	case "sandbox", "":
		return plaid.Sandbox, nil
	case "production":
		return plaid.Production, nil
	default:
		return "", fmt.Errorf("plaidapi: unknown environment %q", name)
	}
}

// ExchangePublicToken implements aggregator.Client.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*aggregator.TokenExchange, error) {
	req := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).
		ItemPublicTokenExchangeRequest(*req).Execute()
	if err != nil {
		return nil, fmt.Errorf("ExchangePublicToken: %w", err)
	}

	return &aggregator.TokenExchange{
		AccessToken: resp.GetAccessToken(),
		ItemID:      resp.GetItemId(),
	}, nil
}

// CreateLinkToken implements aggregator.Client.
func (c *Client) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{ClientUserId: clientUserID}
	req := plaid.NewLinkTokenCreateRequest(c.clientName, "en", c.countryCodes, user)
	req.SetProducts(c.products)

	resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).
		LinkTokenCreateRequest(*req).Execute()
	if err != nil {
		return "", fmt.Errorf("CreateLinkToken: %w", err)
	}
	return resp.GetLinkToken(), nil
}

// GetAccounts implements aggregator.Client.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]aggregator.Account, error) {
	req := plaid.NewAccountsGetRequest(accessToken)
	resp, _, err := c.api.PlaidApi.AccountsGet(ctx).
		AccountsGetRequest(*req).Execute()
	if err != nil {
		return nil, fmt.Errorf("GetAccounts: %w", err)
	}

	accounts := make([]aggregator.Account, 0, len(resp.GetAccounts()))
	for _, a := range resp.GetAccounts() {
		balances := a.GetBalances()
		accounts = append(accounts, aggregator.Account{
			AccountID:      a.GetAccountId(),
			Name:           a.GetName(),
			OfficialName:   a.GetOfficialName(),
			Type:           string(a.GetType()),
			Mask:           a.GetMask(),
			CurrentBalance: decimal.NewFromFloat(balances.GetCurrent()).Round(2),
		})
	}
	return accounts, nil
}

// SyncTransactions implements aggregator.Client.
func (c *Client) SyncTransactions(ctx context.Context, accessToken string, cursor *string) (*aggregator.TransactionsDelta, error) {
	req := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != nil {
		req.SetCursor(*cursor)
	}

	resp, _, err := c.api.PlaidApi.TransactionsSync(ctx).
		TransactionsSyncRequest(*req).Execute()
	if err != nil {
		return nil, fmt.Errorf("SyncTransactions: %w", err)
	}

	delta := &aggregator.TransactionsDelta{
		NextCursor: resp.GetNextCursor(),
	}
	for _, t := range resp.GetAdded() {
		delta.Added = append(delta.Added, mapTransaction(t))
	}
	for _, t := range resp.GetModified() {
		delta.Modified = append(delta.Modified, mapTransaction(t))
	}
	for _, r := range resp.GetRemoved() {
		delta.Removed = append(delta.Removed, aggregator.RemovedTransaction{
			TransactionID: r.GetTransactionId(),
		})
	}
	return delta, nil
}

func mapTransaction(t plaid.Transaction) aggregator.Transaction {
	date, err := time.Parse("2006-01-02", t.GetDate())
	if err != nil {
		// Plaid dates are documented as YYYY-MM-DD; fall back to the zero
		// time rather than dropping the row.
		date = time.Time{}
	}

	var counterparties []string
	for _, cp := range t.GetCounterparties() {
		counterparties = append(counterparties, cp.GetName())
	}

	pfc := t.GetPersonalFinanceCategory()
	return aggregator.Transaction{
		TransactionID:      t.GetTransactionId(),
		AccountID:          t.GetAccountId(),
		Amount:             decimal.NewFromFloat(t.GetAmount()).Round(2),
		Date:               date,
		Name:               t.GetName(),
		MerchantName:       t.GetMerchantName(),
		Counterparties:     counterparties,
		Pending:            t.GetPending(),
		CategoryPrimary:    pfc.GetPrimary(),
		CategoryDetailed:   pfc.GetDetailed(),
		CategoryConfidence: pfc.GetConfidenceLevel(),
	}
}
