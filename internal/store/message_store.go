package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mdiaz/mailsweep/internal/model"
)

// HasScannedMessage checks whether the account already has a message
// with the same (sender, subject, inbox timestamp) dedupe key.
func (s *SQLiteStore) HasScannedMessage(
	ctx context.Context,
	accountID, sender, subject string,
	inboxDate time.Time,
) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM scanned_messages
		WHERE account_id = ? AND sender = ? AND subject = ? AND inbox_date = ?`,
		accountID, sender, subject, inboxDate.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("checking dedupe key for account %s: %w", accountID, err)
	}
	return count > 0, nil
}

// CreateScanResult persists one scanned message together with its
// extracted links in a single transaction. The transaction commits per
// message so a caller polling progress sees rows appear as the scan
// advances.
func (s *SQLiteStore) CreateScanResult(
	ctx context.Context,
	msg model.ScannedMessage,
	links []model.UnsubscribeLink,
) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning scan result transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scanned_messages (id, account_id, sender, subject, inbox_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.AccountID, msg.Sender, msg.Subject,
		msg.InboxDate.UTC(), msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting scanned message: %w", err)
	}

	for _, link := range links {
		if link.ID == "" {
			link.ID = uuid.New().String()
		}
		if link.Status == "" {
			link.Status = model.StatusPending
		}
		if link.CreatedAt.IsZero() {
			link.CreatedAt = time.Now().UTC()
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO unsubscribe_links (id, account_id, message_id, url, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			link.ID, link.AccountID, msg.ID, link.URL,
			string(link.Status), link.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting unsubscribe link %s: %w", link.URL, err)
		}
	}

	return tx.Commit()
}

// CountMessages returns the number of scanned messages for an account.
func (s *SQLiteStore) CountMessages(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM scanned_messages WHERE account_id = ?", accountID)
	if err != nil {
		return 0, fmt.Errorf("counting messages for account %s: %w", accountID, err)
	}
	return count, nil
}

// ListMessages returns a page of scanned messages with link counts and
// statuses, optionally filtered by sender.
func (s *SQLiteStore) ListMessages(
	ctx context.Context,
	accountID string,
	f MessageFilter,
) ([]MessageSummary, error) {
	query := `
		SELECT
			m.id, m.sender, m.subject, m.inbox_date,
			COUNT(l.id) AS link_count,
			COALESCE(GROUP_CONCAT(l.status), '') AS statuses
		FROM scanned_messages m
		LEFT JOIN unsubscribe_links l ON l.message_id = m.id
		WHERE m.account_id = ?`
	args := []interface{}{accountID}

	if f.Sender != "" {
		query += " AND m.sender = ?"
		args = append(args, f.Sender)
	}

	query += " GROUP BY m.id ORDER BY m.inbox_date DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var summaries []MessageSummary
	for rows.Next() {
		var (
			sum      MessageSummary
			statuses string
		)
		if err := rows.Scan(
			&sum.ID, &sum.Sender, &sum.Subject, &sum.InboxDate,
			&sum.LinkCount, &statuses,
		); err != nil {
			return nil, fmt.Errorf("scanning message summary row: %w", err)
		}
		if statuses != "" {
			sum.Statuses = strings.Split(statuses, ",")
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// ListSenders aggregates the account's scanned messages by sender with
// message and link counts plus the set of link statuses per sender.
func (s *SQLiteStore) ListSenders(
	ctx context.Context,
	accountID string,
	limit, offset int,
) ([]SenderSummary, error) {
	query := `
		SELECT
			m.sender,
			COUNT(DISTINCT m.id) AS message_count,
			COUNT(l.id) AS link_count,
			COALESCE(GROUP_CONCAT(l.status), '') AS statuses
		FROM scanned_messages m
		LEFT JOIN unsubscribe_links l ON l.message_id = m.id
		WHERE m.account_id = ?
		GROUP BY m.sender
		ORDER BY m.sender`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("querying senders for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var summaries []SenderSummary
	for rows.Next() {
		var (
			sum      SenderSummary
			statuses string
		)
		if err := rows.Scan(
			&sum.Sender, &sum.MessageCount, &sum.LinkCount, &statuses,
		); err != nil {
			return nil, fmt.Errorf("scanning sender summary row: %w", err)
		}
		if statuses != "" {
			sum.Statuses = strings.Split(statuses, ",")
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// DeleteScanHistory removes every scanned message for the account.
// Links go with them via the foreign-key cascade. The user's actual
// inbox is untouched; only local scan records are deleted.
func (s *SQLiteStore) DeleteScanHistory(ctx context.Context, accountID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM scanned_messages WHERE account_id = ?", accountID)
	if err != nil {
		return 0, fmt.Errorf("deleting scan history for account %s: %w", accountID, err)
	}
	return res.RowsAffected()
}
