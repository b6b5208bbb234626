package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdiaz/mailsweep/internal/model"
)

// LinkExists reports whether the account already has a link with the
// exact URL, regardless of which message it came from.
func (s *SQLiteStore) LinkExists(ctx context.Context, accountID, url string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM unsubscribe_links WHERE account_id = ? AND url = ?",
		accountID, url)
	if err != nil {
		return false, fmt.Errorf("checking link existence for account %s: %w", accountID, err)
	}
	return count > 0, nil
}

// PendingLinks returns the account's pending links, newest first. When
// senders is non-empty the result is restricted to links whose owning
// message was sent by one of the given addresses.
func (s *SQLiteStore) PendingLinks(
	ctx context.Context,
	accountID string,
	senders []string,
) ([]model.UnsubscribeLink, error) {
	query := `
		SELECT l.id, l.account_id, l.message_id, l.url, l.status, l.created_at
		FROM unsubscribe_links l
		WHERE l.account_id = ? AND l.status = ?`
	args := []interface{}{accountID, string(model.StatusPending)}

	if len(senders) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(senders)), ",")
		query += fmt.Sprintf(`
			AND l.message_id IN (
				SELECT id FROM scanned_messages
				WHERE account_id = ? AND sender IN (%s)
			)`, placeholders)
		args = append(args, accountID)
		for _, sender := range senders {
			args = append(args, sender)
		}
	}

	query += " ORDER BY l.created_at DESC, l.id"

	var links []model.UnsubscribeLink
	if err := s.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("querying pending links for account %s: %w", accountID, err)
	}
	return links, nil
}

// UpdateLinkStatuses applies every status change in one transaction so
// a batch either lands fully or not at all.
func (s *SQLiteStore) UpdateLinkStatuses(
	ctx context.Context,
	statuses map[string]model.LinkStatus,
) error {
	if len(statuses) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning status update transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"UPDATE unsubscribe_links SET status = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing status update statement: %w", err)
	}
	defer stmt.Close()

	for id, status := range statuses {
		if !status.Valid() {
			return fmt.Errorf("invalid link status %q for link %s", status, id)
		}
		if _, err := stmt.ExecContext(ctx, string(status), id); err != nil {
			return fmt.Errorf("updating status of link %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// LinksForMessage returns the links extracted from one scanned message.
func (s *SQLiteStore) LinksForMessage(
	ctx context.Context,
	accountID, messageID string,
) ([]model.UnsubscribeLink, error) {
	var links []model.UnsubscribeLink
	err := s.db.SelectContext(ctx, &links, `
		SELECT id, account_id, message_id, url, status, created_at
		FROM unsubscribe_links
		WHERE account_id = ? AND message_id = ?
		ORDER BY created_at, id`,
		accountID, messageID)
	if err != nil {
		return nil, fmt.Errorf("querying links for message %s: %w", messageID, err)
	}
	return links, nil
}
