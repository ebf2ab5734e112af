// Package sync reconciles aggregator account snapshots and incremental
// transaction deltas into local storage.
package sync

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/astroCoder-3409/SSS-Backend/internal/aggregator"
	"github.com/astroCoder-3409/SSS-Backend/internal/apperr"
	"github.com/astroCoder-3409/SSS-Backend/internal/store"
)

// merchantPlaceholder is stored when neither a merchant name nor a
// counterparty name is available. Downstream display and the advice data
// context depend on this exact value.
const merchantPlaceholder = "no name?"

// Service performs account and transaction reconciliation for one user at a
// time. Each public method runs its writes inside one explicit database
// transaction: either the whole batch lands, or none of it does.
type Service struct {
	db  *store.Store
	agg aggregator.Client
	log zerolog.Logger
	now func() time.Time
}

// New creates a reconciliation service.
func New(db *store.Store, agg aggregator.Client, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		agg: agg,
		log: log,
		now: time.Now,
	}
}

// SyncAll fetches the user's account snapshot and transaction delta from the
// aggregator and applies both.
func (s *Service) SyncAll(ctx context.Context, userID string) error {
	user, err := s.db.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Wrap(apperr.NotFound, err, "user %q not found", userID)
		}
		return err
	}
	if user.PlaidAccessToken == nil {
		return apperr.New(apperr.ValidationFailed, "user %q has no linked aggregator item", userID)
	}

	accounts, err := s.agg.GetAccounts(ctx, *user.PlaidAccessToken)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "fetching accounts")
	}
	if err := s.SyncAccounts(ctx, userID, accounts); err != nil {
		return err
	}

	delta, err := s.agg.SyncTransactions(ctx, *user.PlaidAccessToken, user.PlaidTransactionsCursor)
	if err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "fetching transactions")
	}
	return s.SyncTransactions(ctx, userID, delta)
}

// SyncAccounts makes the set of locally stored accounts for the user match
// the fetched snapshot exactly, keyed by the aggregator's account id.
// Existing rows are updated in place so local identity (and any transactions
// hanging off it) survives; rows absent from the snapshot are hard-deleted.
func (s *Service) SyncAccounts(ctx context.Context, userID string, snapshot []aggregator.Account) error {
	if snapshot == nil {
		return apperr.New(apperr.ValidationFailed, "account snapshot is absent")
	}

	var added, updated, deleted int
	err := s.db.WithinTx(ctx, func(tx *store.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Wrap(apperr.NotFound, err, "user %q not found", userID)
			}
			return err
		}

		remoteIDs := make(map[string]bool, len(snapshot))
		for _, a := range snapshot {
			remoteIDs[a.AccountID] = true
		}

		existing, err := tx.AccountsForUser(ctx, userID)
		if err != nil {
			return err
		}
		byPlaidID := make(map[string]*store.Account, len(existing))
		for i := range existing {
			byPlaidID[existing[i].PlaidAccountID] = &existing[i]
		}

		for _, remote := range snapshot {
			if local, ok := byPlaidID[remote.AccountID]; ok {
				local.CurrentBalance = remote.CurrentBalance
				local.AccountName = remote.Name
				local.OfficialName = remote.OfficialName
				local.AccountType = remote.Type
				local.PlaidMask = remote.Mask
				if err := tx.SaveAccount(ctx, local); err != nil {
					return err
				}
				updated++
			} else {
				account := store.Account{
					PlaidAccountID: remote.AccountID,
					UserID:         userID,
					CurrentBalance: remote.CurrentBalance,
					AccountName:    remote.Name,
					OfficialName:   remote.OfficialName,
					AccountType:    remote.Type,
					PlaidMask:      remote.Mask,
				}
				if err := tx.CreateAccount(ctx, &account); err != nil {
					return err
				}
				added++
			}
		}

		var stale []store.Account
		for _, local := range existing {
			if !remoteIDs[local.PlaidAccountID] {
				stale = append(stale, local)
			}
		}
		if err := tx.DeleteAccounts(ctx, stale); err != nil {
			return err
		}
		deleted = len(stale)

		// UTC wall clock so the timestamp is stable across deployments.
		now := s.now().UTC()
		user.LastSyncTime = &now
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("user_id", userID).
		Int("added", added).
		Int("updated", updated).
		Int("deleted", deleted).
		Msg("Account sync completed")
	return nil
}

// SyncTransactions applies one incremental delta (added, modified, removed)
// and recomputes the user's cursor and distinct-months index. The cursor is
// written in the same transaction as the row changes, so a failed batch never
// advances it.
func (s *Service) SyncTransactions(ctx context.Context, userID string, delta *aggregator.TransactionsDelta) error {
	if delta == nil {
		return apperr.New(apperr.ValidationFailed, "transactions delta is absent")
	}

	var added, modified, removed, skipped int
	err := s.db.WithinTx(ctx, func(tx *store.Store) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.Wrap(apperr.NotFound, err, "user %q not found", userID)
			}
			return err
		}

		accounts, err := tx.AccountsForUser(ctx, userID)
		if err != nil {
			return err
		}
		accountIDs := make(map[string]uint, len(accounts))
		for _, a := range accounts {
			accountIDs[a.PlaidAccountID] = a.AccountID
		}

		for _, remote := range delta.Added {
			localAccountID, ok := accountIDs[remote.AccountID]
			if !ok {
				// Account not reconciled yet; the row will arrive again once
				// it is.
				skipped++
				continue
			}
			row := store.Transaction{}
			applyRemote(&row, remote, localAccountID)
			if err := tx.CreateTransaction(ctx, &row); err != nil {
				return err
			}
			added++
		}

		for _, remote := range delta.Modified {
			row, err := tx.TransactionByPlaidID(ctx, remote.TransactionID)
			if errors.Is(err, store.ErrNotFound) {
				// No insert-on-missing for modifications.
				skipped++
				continue
			}
			if err != nil {
				return err
			}
			localAccountID, ok := accountIDs[remote.AccountID]
			if !ok {
				skipped++
				continue
			}
			applyRemote(row, remote, localAccountID)
			if err := tx.SaveTransaction(ctx, row); err != nil {
				return err
			}
			modified++
		}

		for _, gone := range delta.Removed {
			row, err := tx.TransactionByPlaidID(ctx, gone.TransactionID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := tx.DeleteTransaction(ctx, row); err != nil {
				return err
			}
			removed++
		}

		dates, err := tx.TransactionDatesForUser(ctx, userID)
		if err != nil {
			return err
		}
		user.TransactionMonths = distinctMonths(dates)
		user.PlaidTransactionsCursor = &delta.NextCursor
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("user_id", userID).
		Int("added", added).
		Int("modified", modified).
		Int("removed", removed).
		Int("skipped", skipped).
		Msg("Transaction sync completed")
	return nil
}

// applyRemote overwrites all mapped fields on row from the remote
// transaction. Used identically for inserts and modifications.
func applyRemote(row *store.Transaction, remote aggregator.Transaction, localAccountID uint) {
	id := remote.TransactionID
	row.PlaidTransactionID = &id
	row.AccountID = localAccountID
	row.Amount = remote.Amount
	row.TransactionDate = remote.Date
	row.Description = optional(remote.Name)
	row.MerchantName = merchantName(remote)
	pending := remote.Pending
	row.IsPending = &pending
	row.PlaidCategoryPrimary = optional(remote.CategoryPrimary)
	row.PlaidCategoryDetailed = optional(remote.CategoryDetailed)
	row.PlaidCategoryConfidenceLevel = optional(remote.CategoryConfidence)
	row.CategoryID = nil
}

// merchantName resolves the display name: merchant name, then the first
// counterparty, then the placeholder.
func merchantName(t aggregator.Transaction) string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	if len(t.Counterparties) > 0 && t.Counterparties[0] != "" {
		return t.Counterparties[0]
	}
	return merchantPlaceholder
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// distinctMonths normalizes transaction dates to (year, month), deduplicates,
// and sorts most recent first.
func distinctMonths(dates []time.Time) []store.Month {
	seen := make(map[store.Month]bool, len(dates))
	months := make([]store.Month, 0, len(dates))
	for _, d := range dates {
		m := store.Month{Year: d.Year(), Month: int(d.Month())}
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}

	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year > months[j].Year
		}
		return months[i].Month > months[j].Month
	})
	return months
}
