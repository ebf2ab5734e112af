package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Month is one calendar month in which a user has at least one transaction.
// The TransactionMonths column stores a JSON array of these, most recent first.
type Month struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// String renders the month in the MM/yyyy form the API exposes.
func (m Month) String() string {
	return fmt.Sprintf("%02d/%04d", m.Month, m.Year)
}

// User is an account holder. The primary key is the identity provider's UID.
type User struct {
	UserID   string `gorm:"primaryKey;size:128"`
	Email    string `gorm:"size:100;not null;uniqueIndex"`
	FullName string `gorm:"size:100"`

	DateOfBirth  *time.Time
	LastSyncTime *time.Time

	// PlaidTransactionsCursor marks the point up to which transactions have
	// been incrementally synced. Nil means no sync has run yet.
	PlaidTransactionsCursor *string
	PlaidAccessToken        *string `gorm:"size:500"`
	PlaidItemID             *string `gorm:"column:plaid_item_id"`

	// TransactionMonths is the derived distinct-months index, sorted
	// descending by (year, month).
	TransactionMonths datatypes.JSONSlice[Month]

	Accounts []Account `gorm:"foreignKey:UserID"`
}

// Account is one financial account at an institution, keyed locally by an
// auto-increment id and externally by PlaidAccountID.
type Account struct {
	AccountID uint `gorm:"primaryKey"`

	// PlaidAccountID is the reconciliation join key against the aggregator's
	// account list.
	PlaidAccountID string `gorm:"size:100;not null;uniqueIndex"`

	AccountType    string          `gorm:"size:50;not null"`
	AccountName    string          `gorm:"size:100"`
	OfficialName   string          `gorm:"size:255"`
	PlaidMask      string
	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,2);not null"`

	UserID string `gorm:"size:128;not null;index"`
	User   *User

	Transactions []Transaction `gorm:"foreignKey:AccountID"`
}

// Transaction is one synced transaction row. Plaid's sign convention holds
// throughout: positive amounts are money leaving the account.
type Transaction struct {
	TransactionID uint `gorm:"primaryKey"`

	PlaidTransactionID *string `gorm:"uniqueIndex"`

	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TransactionDate time.Time       `gorm:"index"`
	MerchantName    string          `gorm:"size:100"`
	Description     *string         `gorm:"size:255"`
	IsPending       *bool

	PlaidCategoryPrimary         *string
	PlaidCategoryDetailed        *string
	PlaidCategoryConfidenceLevel *string

	AccountID uint `gorm:"not null;index"`
	Account   *Account

	// CategoryID links to a locally defined Category. No sync path populates
	// it today; the column is reserved for user-defined categorization.
	CategoryID *uint
	Category   *Category
}

// Category is a locally defined label. Present in the schema but not written
// by any reconciliation path.
type Category struct {
	CategoryID uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:50;not null"`

	Transactions []Transaction `gorm:"foreignKey:CategoryID"`
}
