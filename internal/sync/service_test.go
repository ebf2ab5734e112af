package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/astroCoder-3409/SSS-Backend/internal/aggregator"
	"github.com/astroCoder-3409/SSS-Backend/internal/apperr"
	"github.com/astroCoder-3409/SSS-Backend/internal/store"
)

// fakeAggregator returns canned responses for the sync paths under test.
type fakeAggregator struct {
	accounts    []aggregator.Account
	accountsErr error
	delta       *aggregator.TransactionsDelta
	deltaErr    error

	// lastCursor records the cursor SyncTransactions was called with.
	lastCursor *string
}

func (f *fakeAggregator) ExchangePublicToken(ctx context.Context, publicToken string) (*aggregator.TokenExchange, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAggregator) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeAggregator) GetAccounts(ctx context.Context, accessToken string) ([]aggregator.Account, error) {
	return f.accounts, f.accountsErr
}

func (f *fakeAggregator) SyncTransactions(ctx context.Context, accessToken string, cursor *string) (*aggregator.TransactionsDelta, error) {
	f.lastCursor = cursor
	return f.delta, f.deltaErr
}

func newTestService(t *testing.T, agg aggregator.Client) (*Service, *store.Store) {
	t.Helper()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	if _, err := db.Migrate("test"); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	svc := New(db, agg, zerolog.Nop())
	return svc, db
}

func seedLinkedUser(t *testing.T, db *store.Store, userID string) {
	t.Helper()

	ctx := context.Background()
	if _, err := db.UpsertUserFromClaims(ctx, userID, userID+"@example.com", "Test User"); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	if err := db.SetPlaidCredentials(ctx, userID, "access-"+userID, "item-"+userID); err != nil {
		t.Fatalf("linking user: %v", err)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSyncAccountsReconcilesSnapshot(t *testing.T) {
	svc, db := newTestService(t, &fakeAggregator{})
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")

	initial := []aggregator.Account{
		{AccountID: "plaid-a", Name: "Checking", Type: "depository", CurrentBalance: decimal.NewFromFloat(100.00)},
		{AccountID: "plaid-b", Name: "Savings", Type: "depository", CurrentBalance: decimal.NewFromFloat(500.00)},
	}
	if err := svc.SyncAccounts(ctx, "u1", initial); err != nil {
		t.Fatalf("initial SyncAccounts: %v", err)
	}

	accounts, err := db.AccountsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("AccountsForUser: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	var savingsLocalID uint
	for _, a := range accounts {
		if a.PlaidAccountID == "plaid-b" {
			savingsLocalID = a.AccountID
		}
	}

	// Next snapshot: "plaid-a" is gone upstream, "plaid-b" has a new balance,
	// and "plaid-c" is new.
	next := []aggregator.Account{
		{AccountID: "plaid-b", Name: "Savings", Type: "depository", CurrentBalance: decimal.NewFromFloat(650.25)},
		{AccountID: "plaid-c", Name: "Credit Card", Type: "credit", CurrentBalance: decimal.NewFromFloat(-42.10)},
	}
	if err := svc.SyncAccounts(ctx, "u1", next); err != nil {
		t.Fatalf("second SyncAccounts: %v", err)
	}

	accounts, err = db.AccountsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("AccountsForUser: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts after reconcile, got %d", len(accounts))
	}
	byPlaidID := map[string]store.Account{}
	for _, a := range accounts {
		byPlaidID[a.PlaidAccountID] = a
	}
	if _, stale := byPlaidID["plaid-a"]; stale {
		t.Error("account absent from snapshot should have been deleted")
	}
	savings, ok := byPlaidID["plaid-b"]
	if !ok {
		t.Fatal("surviving account missing")
	}
	if savings.AccountID != savingsLocalID {
		t.Errorf("surviving account changed local identity: %d -> %d", savingsLocalID, savings.AccountID)
	}
	if !savings.CurrentBalance.Equal(decimal.NewFromFloat(650.25)) {
		t.Errorf("balance not updated in place: %s", savings.CurrentBalance)
	}
	if _, ok := byPlaidID["plaid-c"]; !ok {
		t.Error("new account from snapshot was not created")
	}

	user, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.LastSyncTime == nil {
		t.Error("LastSyncTime should be set after an account sync")
	}
}

func TestSyncAccountsIsIdempotent(t *testing.T) {
	svc, db := newTestService(t, &fakeAggregator{})
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")

	snapshot := []aggregator.Account{
		{AccountID: "plaid-a", Name: "Checking", Type: "depository", CurrentBalance: decimal.NewFromFloat(100.00)},
	}
	for i := 0; i < 3; i++ {
		if err := svc.SyncAccounts(ctx, "u1", snapshot); err != nil {
			t.Fatalf("SyncAccounts run %d: %v", i, err)
		}
	}

	accounts, err := db.AccountsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("AccountsForUser: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account after repeated syncs, got %d", len(accounts))
	}
}

func TestSyncAccountsNilSnapshotChangesNothing(t *testing.T) {
	svc, db := newTestService(t, &fakeAggregator{})
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")

	if err := svc.SyncAccounts(ctx, "u1", []aggregator.Account{
		{AccountID: "plaid-a", Name: "Checking", Type: "depository"},
	}); err != nil {
		t.Fatalf("seeding account: %v", err)
	}
	before, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}

	err = svc.SyncAccounts(ctx, "u1", nil)
	if !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Fatalf("expected validation error for nil snapshot, got %v", err)
	}

	accounts, err := db.AccountsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("AccountsForUser: %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("nil snapshot must not touch accounts, have %d", len(accounts))
	}
	after, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if before.LastSyncTime == nil || after.LastSyncTime == nil || !after.LastSyncTime.Equal(*before.LastSyncTime) {
		t.Error("nil snapshot must not advance LastSyncTime")
	}
}

func TestSyncTransactionsAppliesDelta(t *testing.T) {
	svc, db := newTestService(t, &fakeAggregator{})
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")
	if err := svc.SyncAccounts(ctx, "u1", []aggregator.Account{
		{AccountID: "plaid-a", Name: "Checking", Type: "depository"},
	}); err != nil {
		t.Fatalf("seeding account: %v", err)
	}

	first := &aggregator.TransactionsDelta{
		Added: []aggregator.Transaction{
			{
				TransactionID:   "t1",
				AccountID:       "plaid-a",
				Amount:          decimal.NewFromFloat(12.50),
				Date:            date(2024, time.March, 10),
				Name:            "COFFEE SHOP 123",
				MerchantName:    "Coffee Shop",
				Pending:         false,
				CategoryPrimary: "FOOD_AND_DRINK",
			},
			{
				TransactionID: "t2",
				AccountID:     "plaid-a",
				Amount:        decimal.NewFromFloat(80.00),
				Date:          date(2024, time.February, 5),
				Name:          "GROCERIES",
			},
		},
		NextCursor: "c1",
	}
	if err := svc.SyncTransactions(ctx, "u1", first); err != nil {
		t.Fatalf("first SyncTransactions: %v", err)
	}

	rows, err := db.TransactionsForUser(ctx, "u1", nil, nil)
	if err != nil {
		t.Fatalf("TransactionsForUser: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(rows))
	}

	user, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.PlaidTransactionsCursor == nil || *user.PlaidTransactionsCursor != "c1" {
		t.Errorf("cursor not advanced to c1: %v", user.PlaidTransactionsCursor)
	}
	wantMonths := []store.Month{{Year: 2024, Month: 3}, {Year: 2024, Month: 2}}
	if len(user.TransactionMonths) != len(wantMonths) {
		t.Fatalf("expected %d distinct months, got %d", len(wantMonths), len(user.TransactionMonths))
	}
	for i, m := range wantMonths {
		if user.TransactionMonths[i] != m {
			t.Errorf("month[%d] = %v, want %v", i, user.TransactionMonths[i], m)
		}
	}

	// Second delta: t1 changes amount, t2 is removed upstream.
	second := &aggregator.TransactionsDelta{
		Modified: []aggregator.Transaction{
			{
				TransactionID: "t1",
				AccountID:     "plaid-a",
				Amount:        decimal.NewFromFloat(14.00),
				Date:          date(2024, time.March, 10),
				Name:          "COFFEE SHOP 123",
				MerchantName:  "Coffee Shop",
			},
		},
		Removed:    []aggregator.RemovedTransaction{{TransactionID: "t2"}},
		NextCursor: "c2",
	}
	if err := svc.SyncTransactions(ctx, "u1", second); err != nil {
		t.Fatalf("second SyncTransactions: %v", err)
	}

	rows, err = db.TransactionsForUser(ctx, "u1", nil, nil)
	if err != nil {
		t.Fatalf("TransactionsForUser: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 transaction after removal, got %d", len(rows))
	}
	if !rows[0].Amount.Equal(decimal.NewFromFloat(14.00)) {
		t.Errorf("modification not applied, amount = %s", rows[0].Amount)
	}

	user, err = db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.PlaidTransactionsCursor == nil || *user.PlaidTransactionsCursor != "c2" {
		t.Errorf("cursor not advanced to c2: %v", user.PlaidTransactionsCursor)
	}
	if len(user.TransactionMonths) != 1 || user.TransactionMonths[0] != (store.Month{Year: 2024, Month: 3}) {
		t.Errorf("months not recomputed after removal: %v", user.TransactionMonths)
	}
}

func TestSyncTransactionsSkipsUnresolvedRows(t *testing.T) {
	svc, db := newTestService(t, &fakeAggregator{})
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")
	if err := svc.SyncAccounts(ctx, "u1", []aggregator.Account{
		{AccountID: "plaid-a", Name: "Checking", Type: "depository"},
	}); err != nil {
		t.Fatalf("seeding account: %v", err)
	}

	delta := &aggregator.TransactionsDelta{
		Added: []aggregator.Transaction{
			// References an account this user has never synced.
			{TransactionID: "t1", AccountID: "plaid-unknown", Amount: decimal.NewFromFloat(9.99), Date: date(2024, time.March, 1)},
		},
		Modified: []aggregator.Transaction{
			// Never inserted locally, so there is nothing to modify.
			{TransactionID: "t-missing", AccountID: "plaid-a", Amount: decimal.NewFromFloat(1.00), Date: date(2024, time.March, 2)},
		},
		Removed:    []aggregator.RemovedTransaction{{TransactionID: "t-also-missing"}},
		NextCursor: "c1",
	}
	if err := svc.SyncTransactions(ctx, "u1", delta); err != nil {
		t.Fatalf("SyncTransactions: %v", err)
	}

	rows, err := db.TransactionsForUser(ctx, "u1", nil, nil)
	if err != nil {
		t.Fatalf("TransactionsForUser: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows inserted, got %d", len(rows))
	}

	user, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.PlaidTransactionsCursor == nil || *user.PlaidTransactionsCursor != "c1" {
		t.Errorf("cursor should still advance on a skip-only batch: %v", user.PlaidTransactionsCursor)
	}
}

func TestSyncTransactionsNilDelta(t *testing.T) {
	svc, db := newTestService(t, &fakeAggregator{})
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")

	err := svc.SyncTransactions(ctx, "u1", nil)
	if !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Fatalf("expected validation error for nil delta, got %v", err)
	}

	user, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.PlaidTransactionsCursor != nil {
		t.Error("nil delta must not write a cursor")
	}
}

func TestSyncAllRequiresLinkedItem(t *testing.T) {
	svc, db := newTestService(t, &fakeAggregator{})
	ctx := context.Background()
	if _, err := db.UpsertUserFromClaims(ctx, "u1", "u1@example.com", "Test User"); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	err := svc.SyncAll(ctx, "u1")
	if !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Fatalf("expected validation error for unlinked user, got %v", err)
	}
}

func TestSyncAllPassesStoredCursor(t *testing.T) {
	agg := &fakeAggregator{
		accounts: []aggregator.Account{{AccountID: "plaid-a", Name: "Checking", Type: "depository"}},
		delta:    &aggregator.TransactionsDelta{NextCursor: "c2"},
	}
	svc, db := newTestService(t, agg)
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")

	if err := svc.SyncAll(ctx, "u1"); err != nil {
		t.Fatalf("first SyncAll: %v", err)
	}
	if agg.lastCursor != nil {
		t.Errorf("first sync should request the full history, got cursor %q", *agg.lastCursor)
	}

	agg.delta = &aggregator.TransactionsDelta{NextCursor: "c3"}
	if err := svc.SyncAll(ctx, "u1"); err != nil {
		t.Fatalf("second SyncAll: %v", err)
	}
	if agg.lastCursor == nil || *agg.lastCursor != "c2" {
		t.Errorf("second sync should resume from c2, got %v", agg.lastCursor)
	}
}

func TestSyncAllUpstreamFailure(t *testing.T) {
	agg := &fakeAggregator{accountsErr: errors.New("aggregator down")}
	svc, db := newTestService(t, agg)
	ctx := context.Background()
	seedLinkedUser(t, db, "u1")

	err := svc.SyncAll(ctx, "u1")
	if !apperr.IsKind(err, apperr.UpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	user, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user.LastSyncTime != nil {
		t.Error("failed sync must not record a sync time")
	}
}

func TestMerchantNameFallback(t *testing.T) {
	tests := []struct {
		name string
		txn  aggregator.Transaction
		want string
	}{
		{"merchant name wins", aggregator.Transaction{MerchantName: "Coffee Shop", Counterparties: []string{"Acme"}}, "Coffee Shop"},
		{"first counterparty", aggregator.Transaction{Counterparties: []string{"Acme", "Other"}}, "Acme"},
		{"empty counterparty", aggregator.Transaction{Counterparties: []string{""}}, merchantPlaceholder},
		{"nothing available", aggregator.Transaction{}, merchantPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := merchantName(tt.txn); got != tt.want {
				t.Errorf("merchantName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDistinctMonths(t *testing.T) {
	dates := []time.Time{
		date(2024, time.February, 5),
		date(2024, time.March, 10),
		date(2024, time.March, 28),
		date(2023, time.December, 31),
	}

	got := distinctMonths(dates)
	want := []store.Month{
		{Year: 2024, Month: 3},
		{Year: 2024, Month: 2},
		{Year: 2023, Month: 12},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d months, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("month[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
