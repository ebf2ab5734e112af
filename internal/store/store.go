package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the GORM handle and exposes the repository surface the rest of
// the application uses. All mutating sync paths go through WithinTx so the
// unit of work is explicit rather than left to driver defaults.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store.Open: %w", err)
	}
	return &Store{db: db}, nil
}

// WithinTx runs fn inside a single database transaction. Any error from fn
// rolls the whole unit back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetUser fetches a user by identity-provider UID.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("GetUser %q: %w", userID, translate(err))
	}
	return &user, nil
}

// FirstUser returns an arbitrary user. Used only by the diagnostic test
// endpoint.
func (s *Store) FirstUser(ctx context.Context) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Order("user_id").First(&user).Error; err != nil {
		return nil, fmt.Errorf("FirstUser: %w", translate(err))
	}
	return &user, nil
}

// UpsertUserFromClaims creates the user on first verification, or refreshes
// email and name unconditionally on subsequent ones.
func (s *Store) UpsertUserFromClaims(ctx context.Context, userID, email, fullName string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).First(&user, "user_id = ?", userID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = User{UserID: userID, Email: email, FullName: fullName}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, fmt.Errorf("UpsertUserFromClaims: creating %q: %w", userID, err)
		}
		return &user, nil
	case err != nil:
		return nil, fmt.Errorf("UpsertUserFromClaims: %w", err)
	}

	user.Email = email
	user.FullName = fullName
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, fmt.Errorf("UpsertUserFromClaims: updating %q: %w", userID, err)
	}
	return &user, nil
}

// SaveUser persists the given user row.
func (s *Store) SaveUser(ctx context.Context, user *User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("SaveUser %q: %w", user.UserID, err)
	}
	return nil
}

// SetPlaidCredentials stores a freshly exchanged access token and item id and
// clears the transactions cursor so the next sync starts from scratch.
func (s *Store) SetPlaidCredentials(ctx context.Context, userID, accessToken, itemID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	user.PlaidAccessToken = &accessToken
	user.PlaidItemID = &itemID
	user.PlaidTransactionsCursor = nil
	if err := s.db.WithContext(ctx).Model(user).Select("PlaidAccessToken", "PlaidItemID", "PlaidTransactionsCursor").Updates(user).Error; err != nil {
		return fmt.Errorf("SetPlaidCredentials %q: %w", userID, err)
	}
	return nil
}

// AccountsForUser returns all of a user's accounts.
func (s *Store) AccountsForUser(ctx context.Context, userID string) ([]Account, error) {
	var accounts []Account
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("AccountsForUser %q: %w", userID, err)
	}
	return accounts, nil
}

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(ctx context.Context, account *Account) error {
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("CreateAccount %q: %w", account.PlaidAccountID, err)
	}
	return nil
}

// SaveAccount persists changes to an existing account row.
func (s *Store) SaveAccount(ctx context.Context, account *Account) error {
	if err := s.db.WithContext(ctx).Save(account).Error; err != nil {
		return fmt.Errorf("SaveAccount %q: %w", account.PlaidAccountID, err)
	}
	return nil
}

// DeleteAccounts hard-deletes the given account rows.
func (s *Store) DeleteAccounts(ctx context.Context, accounts []Account) error {
	if len(accounts) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.AccountID)
	}
	if err := s.db.WithContext(ctx).Delete(&Account{}, ids).Error; err != nil {
		return fmt.Errorf("DeleteAccounts: %w", err)
	}
	return nil
}

// TransactionByPlaidID looks up a transaction by its external id.
func (s *Store) TransactionByPlaidID(ctx context.Context, plaidTransactionID string) (*Transaction, error) {
	var tx Transaction
	if err := s.db.WithContext(ctx).First(&tx, "plaid_transaction_id = ?", plaidTransactionID).Error; err != nil {
		return nil, fmt.Errorf("TransactionByPlaidID %q: %w", plaidTransactionID, translate(err))
	}
	return &tx, nil
}

// CreateTransaction inserts a new transaction row.
func (s *Store) CreateTransaction(ctx context.Context, tx *Transaction) error {
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

// SaveTransaction persists changes to an existing transaction row.
func (s *Store) SaveTransaction(ctx context.Context, tx *Transaction) error {
	if err := s.db.WithContext(ctx).Save(tx).Error; err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}
	return nil
}

// DeleteTransaction hard-deletes a transaction row.
func (s *Store) DeleteTransaction(ctx context.Context, tx *Transaction) error {
	if err := s.db.WithContext(ctx).Delete(tx).Error; err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// TransactionsForUser returns all transactions belonging to any of the user's
// accounts. When start/end are non-nil the result is limited to
// start <= transaction_date < end.
func (s *Store) TransactionsForUser(ctx context.Context, userID string, start, end *time.Time) ([]Transaction, error) {
	q := s.db.WithContext(ctx).
		Joins("JOIN accounts ON accounts.account_id = transactions.account_id").
		Where("accounts.user_id = ?", userID)
	if start != nil {
		q = q.Where("transactions.transaction_date >= ?", *start)
	}
	if end != nil {
		q = q.Where("transactions.transaction_date < ?", *end)
	}

	var txs []Transaction
	if err := q.Order("transactions.transaction_date DESC").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("TransactionsForUser %q: %w", userID, err)
	}
	return txs, nil
}

// TransactionDatesForUser returns the dates of all the user's transactions.
// Feed for the distinct-months recompute.
func (s *Store) TransactionDatesForUser(ctx context.Context, userID string) ([]time.Time, error) {
	var dates []time.Time
	err := s.db.WithContext(ctx).
		Model(&Transaction{}).
		Joins("JOIN accounts ON accounts.account_id = transactions.account_id").
		Where("accounts.user_id = ?", userID).
		Pluck("transactions.transaction_date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("TransactionDatesForUser %q: %w", userID, err)
	}
	return dates, nil
}
