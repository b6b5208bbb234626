package model

import "time"

// LinkedAccount is one mailbox a user has authorized for scanning.
// The app password is stored encrypted; only the credential vault can
// turn it back into the plaintext handed to the IMAP login.
type LinkedAccount struct {
	// ID is the unique identifier for this account record.
	ID string `db:"id"`

	// UserID references the owning user account.
	UserID string `db:"user_id"`

	// Address is the mailbox address, e.g. "someone@gmail.com".
	Address string `db:"address"`

	// Password is the vault-encrypted mailbox app password.
	Password []byte `db:"password"`

	// IsActive controls whether the account may be scanned.
	IsActive bool `db:"is_active"`

	// ScanTaskID holds the identifier of the in-flight scan job, or ""
	// when no scan is running. Cleared unconditionally when the job
	// terminates; a claim left behind by a crashed worker is taken over
	// once its lease expires.
	ScanTaskID string `db:"scan_task_id"`

	// ScanTaskClaimedAt records when the scan slot was last claimed.
	// Nil while the slot is empty.
	ScanTaskClaimedAt *time.Time `db:"scan_task_claimed_at"`

	// UnsubscribeTaskID is the unsubscribe-job counterpart of ScanTaskID.
	UnsubscribeTaskID string `db:"unsubscribe_task_id"`

	UnsubscribeTaskClaimedAt *time.Time `db:"unsubscribe_task_claimed_at"`

	CreatedAt time.Time `db:"created_at"`
}
