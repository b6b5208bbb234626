package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mdiaz/mailsweep/internal/model"
)

// CreateAccount inserts a new linked account record.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acct model.LinkedAccount) error {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO linked_accounts (
			id, user_id, address, password, is_active,
			scan_task_id, unsubscribe_task_id, created_at
		) VALUES (?, ?, ?, ?, ?, '', '', ?)`,
		acct.ID, acct.UserID, acct.Address, acct.Password,
		boolToInt(acct.IsActive), acct.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating account %s: %w", acct.Address, err)
	}
	return nil
}

// GetAccount retrieves a linked account by ID.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*model.LinkedAccount, error) {
	var acct model.LinkedAccount
	err := s.db.GetContext(ctx, &acct,
		"SELECT * FROM linked_accounts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return &acct, nil
}

// GetAccountForUser retrieves a linked account by ID, scoped to its
// owning user. A mismatched owner reads as not found.
func (s *SQLiteStore) GetAccountForUser(ctx context.Context, id, userID string) (*model.LinkedAccount, error) {
	var acct model.LinkedAccount
	err := s.db.GetContext(ctx, &acct,
		"SELECT * FROM linked_accounts WHERE id = ? AND user_id = ?", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account %s for user %s: %w", id, userID, err)
	}
	return &acct, nil
}

// GetAccountByAddress retrieves a linked account by mailbox address.
func (s *SQLiteStore) GetAccountByAddress(ctx context.Context, address string) (*model.LinkedAccount, error) {
	var acct model.LinkedAccount
	err := s.db.GetContext(ctx, &acct,
		"SELECT * FROM linked_accounts WHERE address = ?", address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by address: %w", err)
	}
	return &acct, nil
}

// ClaimScanTask writes taskID into the scan-task slot only when the
// slot is empty or its previous claim has outlived the lease. The
// compare and the write happen in one statement so two concurrent
// claims cannot both succeed.
func (s *SQLiteStore) ClaimScanTask(ctx context.Context, accountID, taskID string) error {
	return s.claimTask(ctx, "scan_task", accountID, taskID)
}

// ClearScanTask empties the scan-task slot unconditionally.
func (s *SQLiteStore) ClearScanTask(ctx context.Context, accountID string) error {
	return s.clearTask(ctx, "scan_task", accountID)
}

// ClaimUnsubscribeTask is the unsubscribe-job counterpart of ClaimScanTask.
func (s *SQLiteStore) ClaimUnsubscribeTask(ctx context.Context, accountID, taskID string) error {
	return s.claimTask(ctx, "unsubscribe_task", accountID, taskID)
}

// ClearUnsubscribeTask empties the unsubscribe-task slot unconditionally.
func (s *SQLiteStore) ClearUnsubscribeTask(ctx context.Context, accountID string) error {
	return s.clearTask(ctx, "unsubscribe_task", accountID)
}

// claimTask claims the given slot ("scan_task" or "unsubscribe_task").
// An existing claim older than the lease belongs to a worker that died
// without clearing it and is taken over.
func (s *SQLiteStore) claimTask(ctx context.Context, slot, accountID, taskID string) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.taskLease)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE linked_accounts
			SET %[1]s_id = ?, %[1]s_claimed_at = ?
			WHERE id = ? AND (%[1]s_id = '' OR %[1]s_claimed_at IS NULL OR %[1]s_claimed_at < ?)`, slot),
		taskID, now, accountID, cutoff,
	)
	if err != nil {
		return fmt.Errorf("claiming %s for account %s: %w", slot, accountID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claiming %s for account %s: %w", slot, accountID, err)
	}
	if rows > 0 {
		return nil
	}

	// Distinguish an occupied slot from a missing account.
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return err
	}
	return ErrTaskInProgress
}

func (s *SQLiteStore) clearTask(ctx context.Context, slot, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE linked_accounts SET %[1]s_id = '', %[1]s_claimed_at = NULL WHERE id = ?", slot),
		accountID,
	)
	if err != nil {
		return fmt.Errorf("clearing %s for account %s: %w", slot, accountID, err)
	}
	return nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
