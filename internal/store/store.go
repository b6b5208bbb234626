package store

import (
	"context"
	"errors"
	"time"

	"github.com/mdiaz/mailsweep/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrTaskInProgress is returned by a claim when the account already
	// carries an outstanding task identifier.
	ErrTaskInProgress = errors.New("task already in progress for account")
)

// MessageFilter controls filtering and pagination for message listings.
type MessageFilter struct {
	// Sender restricts the listing to one sender address when non-empty.
	Sender string
	Limit  int
	Offset int
}

// MessageSummary is one row of the paginated scanned-message listing.
type MessageSummary struct {
	ID        string    `db:"id"`
	Sender    string    `db:"sender"`
	Subject   string    `db:"subject"`
	InboxDate time.Time `db:"inbox_date"`
	LinkCount int       `db:"link_count"`

	// Statuses holds the statuses of the message's links, one entry per
	// link, in no particular order.
	Statuses []string `db:"-"`
}

// SenderSummary aggregates an account's scanned messages by sender.
type SenderSummary struct {
	Sender       string `db:"sender"`
	MessageCount int    `db:"message_count"`
	LinkCount    int    `db:"link_count"`
	Statuses     []string
}

// Store defines the persistence interface for linked accounts, scanned
// messages and unsubscribe links.
type Store interface {
	// === Linked accounts ===

	CreateAccount(ctx context.Context, acct model.LinkedAccount) error
	GetAccount(ctx context.Context, id string) (*model.LinkedAccount, error)
	GetAccountForUser(ctx context.Context, id, userID string) (*model.LinkedAccount, error)
	GetAccountByAddress(ctx context.Context, address string) (*model.LinkedAccount, error)

	// ClaimScanTask atomically writes taskID into the account's scan-task
	// slot. It fails with ErrTaskInProgress when the slot is held by a
	// live claim; a claim older than the store's lease is taken over.
	ClaimScanTask(ctx context.Context, accountID, taskID string) error

	// ClearScanTask empties the scan-task slot. Safe to call on every job
	// exit path regardless of outcome.
	ClearScanTask(ctx context.Context, accountID string) error

	ClaimUnsubscribeTask(ctx context.Context, accountID, taskID string) error
	ClearUnsubscribeTask(ctx context.Context, accountID string) error

	// === Scanned messages and links ===

	// HasScannedMessage checks the dedupe key (sender, subject, inbox
	// timestamp) for this account.
	HasScannedMessage(ctx context.Context, accountID, sender, subject string, inboxDate time.Time) (bool, error)

	// CreateScanResult persists one message and its links in a single
	// transaction. Links must already be filtered for URL uniqueness.
	CreateScanResult(ctx context.Context, msg model.ScannedMessage, links []model.UnsubscribeLink) error

	// LinkExists reports whether the account already has a link with the
	// exact URL.
	LinkExists(ctx context.Context, accountID, url string) (bool, error)

	// PendingLinks returns the account's pending links, optionally
	// restricted to links whose owning message was sent by one of the
	// given senders.
	PendingLinks(ctx context.Context, accountID string, senders []string) ([]model.UnsubscribeLink, error)

	// UpdateLinkStatuses applies all status changes in one transaction.
	UpdateLinkStatuses(ctx context.Context, statuses map[string]model.LinkStatus) error

	LinksForMessage(ctx context.Context, accountID, messageID string) ([]model.UnsubscribeLink, error)

	// === Listings (consumed by the surrounding CRUD layer) ===

	CountMessages(ctx context.Context, accountID string) (int, error)
	ListMessages(ctx context.Context, accountID string, f MessageFilter) ([]MessageSummary, error)
	ListSenders(ctx context.Context, accountID string, limit, offset int) ([]SenderSummary, error)

	// DeleteScanHistory removes all scanned messages (and, by cascade,
	// links) for an account. Returns the number of deleted messages.
	DeleteScanHistory(ctx context.Context, accountID string) (int64, error)
}
