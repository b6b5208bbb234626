package model

import "time"

// ScannedMessage records one inbox message that was inspected during a
// scan. Only sender, subject and the inbox timestamp are kept; message
// content is never stored.
//
// The triple (Sender, Subject, InboxDate) is unique per account and is
// the dedupe key that makes repeated scans idempotent without marking
// anything server-side.
type ScannedMessage struct {
	ID        string    `db:"id"`
	AccountID string    `db:"account_id"`
	Sender    string    `db:"sender"`
	Subject   string    `db:"subject"`

	// InboxDate is the message's own Date header as reported by the
	// mail store, not the time of scanning.
	InboxDate time.Time `db:"inbox_date"`

	CreatedAt time.Time `db:"created_at"`
}
