package model

import "time"

// LinkStatus is the lifecycle status of one unsubscribe link.
type LinkStatus string

const (
	// StatusPending is the initial status of every extracted link.
	StatusPending LinkStatus = "pending"

	// StatusSuccess means the unsubscribe request returned HTTP 200.
	StatusSuccess LinkStatus = "success"

	// StatusFailure means the request returned any other status or
	// failed at the transport level.
	StatusFailure LinkStatus = "failure"

	// StatusUnsure is reserved for future classification of ambiguous
	// responses. The executor never sets it.
	StatusUnsure LinkStatus = "unsure"
)

// Valid reports whether s is one of the known statuses.
func (s LinkStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailure, StatusUnsure:
		return true
	}
	return false
}

// UnsubscribeLink is one candidate unsubscribe URL found in a scanned
// message. (URL, AccountID) is unique so repeated scans of the same
// sender template never re-add a link.
type UnsubscribeLink struct {
	ID        string     `db:"id"`
	AccountID string     `db:"account_id"`
	MessageID string     `db:"message_id"`
	URL       string     `db:"url"`
	Status    LinkStatus `db:"status"`
	CreatedAt time.Time  `db:"created_at"`
}
