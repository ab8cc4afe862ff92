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

CREATE TABLE IF NOT EXISTS messages (
	external_id  TEXT PRIMARY KEY,
	thread_id    TEXT NOT NULL DEFAULT '',
	from_address TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	received_at  DATETIME,
	snippet      TEXT NOT NULL DEFAULT '',
	raw_body     TEXT NOT NULL DEFAULT '',
	clean_body   TEXT NOT NULL DEFAULT '',
	is_unread    INTEGER NOT NULL DEFAULT 0 CHECK(is_unread IN (0, 1)),
	labels       TEXT NOT NULL DEFAULT '[]',
	fetched_at   DATETIME NOT NULL,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,

	triage_category    TEXT,
	triage_urgency     TEXT,
	triage_confidence  REAL,
	triage_reply_draft TEXT,
	triage_error       TEXT NOT NULL DEFAULT '',
	triaged_at         DATETIME,

	summary_title      TEXT NOT NULL DEFAULT '',
	summary_text       TEXT NOT NULL DEFAULT '',
	summary_key_points TEXT NOT NULL DEFAULT '[]',
	summary_error      TEXT NOT NULL DEFAULT '',
	summarized_at      DATETIME
);

CREATE INDEX IF NOT EXISTS idx_messages_is_unread ON messages(is_unread);
CREATE INDEX IF NOT EXISTS idx_messages_received_at ON messages(received_at);
CREATE INDEX IF NOT EXISTS idx_messages_triaged_at ON messages(triaged_at);
CREATE INDEX IF NOT EXISTS idx_messages_category ON messages(triage_category);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_thread_id ON messages(thread_id);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
