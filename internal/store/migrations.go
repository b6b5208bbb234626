package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS linked_accounts (
	id                          TEXT PRIMARY KEY,
	user_id                     TEXT NOT NULL,
	address                     TEXT NOT NULL UNIQUE,
	password                    BLOB NOT NULL,
	is_active                   INTEGER NOT NULL DEFAULT 1 CHECK(is_active IN (0, 1)),
	scan_task_id                TEXT NOT NULL DEFAULT '',
	scan_task_claimed_at        DATETIME,
	unsubscribe_task_id         TEXT NOT NULL DEFAULT '',
	unsubscribe_task_claimed_at DATETIME,
	created_at                  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scanned_messages (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES linked_accounts(id) ON DELETE CASCADE,
	sender     TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	inbox_date DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(account_id, sender, subject, inbox_date)
);

CREATE TABLE IF NOT EXISTS unsubscribe_links (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES linked_accounts(id) ON DELETE CASCADE,
	message_id TEXT NOT NULL REFERENCES scanned_messages(id) ON DELETE CASCADE,
	url        TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending'
		CHECK(status IN ('pending', 'success', 'failure', 'unsure')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(account_id, url)
);

CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON linked_accounts(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_account_id ON scanned_messages(account_id);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON scanned_messages(account_id, sender);
CREATE INDEX IF NOT EXISTS idx_links_account_id ON unsubscribe_links(account_id);
CREATE INDEX IF NOT EXISTS idx_links_message_id ON unsubscribe_links(message_id);
CREATE INDEX IF NOT EXISTS idx_links_status ON unsubscribe_links(account_id, status);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
