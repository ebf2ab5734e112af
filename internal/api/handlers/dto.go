package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/astroCoder-3409/SSS-Backend/internal/store"
)

// AccountDTO is the account projection returned by GET /api/accounts.
type AccountDTO struct {
	AccountID      uint            `json:"accountId"`
	AccountType    string          `json:"accountType"`
	AccountName    string          `json:"accountName"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	PlaidMask      string          `json:"plaidMask"`
}

func toAccountDTO(a store.Account) AccountDTO {
	return AccountDTO{
		AccountID:      a.AccountID,
		AccountType:    a.AccountType,
		AccountName:    a.AccountName,
		CurrentBalance: a.CurrentBalance,
		PlaidMask:      a.PlaidMask,
	}
}

// TransactionDTO is the transaction projection returned by POST /api/transactions.
type TransactionDTO struct {
	TransactionID                uint            `json:"transactionId"`
	PlaidTransactionID           *string         `json:"plaidTransactionId"`
	Amount                       decimal.Decimal `json:"amount"`
	TransactionDate              time.Time       `json:"transactionDate"`
	MerchantName                 string          `json:"merchantName"`
	Description                  *string         `json:"description"`
	IsPending                    *bool           `json:"isPending"`
	PlaidCategoryPrimary         *string         `json:"plaidCategoryPrimary"`
	PlaidCategoryDetailed        *string         `json:"plaidCategoryDetailed"`
	PlaidCategoryConfidenceLevel *string         `json:"plaidCategoryConfidenceLevel"`
}

func toTransactionDTO(t store.Transaction) TransactionDTO {
	return TransactionDTO{
		TransactionID:                t.TransactionID,
		PlaidTransactionID:           t.PlaidTransactionID,
		Amount:                       t.Amount,
		TransactionDate:              t.TransactionDate,
		MerchantName:                 t.MerchantName,
		Description:                  t.Description,
		IsPending:                    t.IsPending,
		PlaidCategoryPrimary:         t.PlaidCategoryPrimary,
		PlaidCategoryDetailed:        t.PlaidCategoryDetailed,
		PlaidCategoryConfidenceLevel: t.PlaidCategoryConfidenceLevel,
	}
}

// UserDTO is the profile returned by GET /api/user. TransactionMonths is
// formatted as MM/yyyy strings, most recent first.
type UserDTO struct {
	Email             string     `json:"email"`
	FullName          string     `json:"fullName"`
	DateOfBirth       *time.Time `json:"dateOfBirth"`
	LastSyncTime      *time.Time `json:"lastSyncTime"`
	TransactionMonths []string   `json:"transactionMonths"`
}

func toUserDTO(u *store.User) UserDTO {
	months := make([]string, 0, len(u.TransactionMonths))
	for _, m := range u.TransactionMonths {
		months = append(months, m.String())
	}
	return UserDTO{
		Email:             u.Email,
		FullName:          u.FullName,
		DateOfBirth:       u.DateOfBirth,
		LastSyncTime:      u.LastSyncTime,
		TransactionMonths: months,
	}
}
