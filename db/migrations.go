package db

import (
	"database/sql"
	"log"
)

// SQL for the federation schema
const (
	// Local accounts table
	sqlCreateAccountsTable = `CREATE TABLE IF NOT EXISTS accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		web_public_key TEXT,
		web_private_key TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Remote accounts cache table
	sqlCreateRemoteAccountsTable = `CREATE TABLE IF NOT EXISTS remote_accounts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		domain TEXT NOT NULL,
		actor_uri TEXT UNIQUE NOT NULL,
		display_name TEXT,
		summary TEXT,
		inbox_uri TEXT NOT NULL,
		shared_inbox_uri TEXT,
		outbox_uri TEXT,
		followers_uri TEXT,
		public_key_pem TEXT NOT NULL,
		avatar_url TEXT,
		last_fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(username, domain)
	)`

	sqlCreateRemoteAccountsIndices = `
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_actor_uri ON remote_accounts(actor_uri);
		CREATE INDEX IF NOT EXISTS idx_remote_accounts_domain ON remote_accounts(domain);
	`

	// Statuses table. The UNIQUE constraint on uri is the last line of
	// defense against duplicate materialization of the same remote object.
	sqlCreateStatusesTable = `CREATE TABLE IF NOT EXISTS statuses (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		url TEXT,
		account_id TEXT NOT NULL,
		local INTEGER DEFAULT 0,
		text TEXT,
		language TEXT,
		spoiler_text TEXT,
		sensitive INTEGER DEFAULT 0,
		visibility TEXT NOT NULL DEFAULT 'public',
		in_reply_to_id TEXT,
		in_reply_to_uri TEXT,
		conversation_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateStatusesIndices = `
		CREATE INDEX IF NOT EXISTS idx_statuses_account_id ON statuses(account_id);
		CREATE INDEX IF NOT EXISTS idx_statuses_in_reply_to_uri ON statuses(in_reply_to_uri);
		CREATE INDEX IF NOT EXISTS idx_statuses_created_at ON statuses(created_at DESC);
	`

	// Hashtags table
	sqlCreateTagsTable = `CREATE TABLE IF NOT EXISTS tags (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Status-hashtag relationship table
	sqlCreateStatusTagsTable = `CREATE TABLE IF NOT EXISTS status_tags (
		status_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (status_id, tag_id)
	)`

	sqlCreateStatusTagsIndices = `
		CREATE INDEX IF NOT EXISTS idx_status_tags_tag_id ON status_tags(tag_id);
	`

	// Mentions table
	sqlCreateMentionsTable = `CREATE TABLE IF NOT EXISTS mentions (
		id TEXT NOT NULL PRIMARY KEY,
		status_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(status_id, account_id)
	)`

	sqlCreateMentionsIndices = `
		CREATE INDEX IF NOT EXISTS idx_mentions_account_id ON mentions(account_id);
	`

	// Custom emojis table, one row per shortcode within its origin domain
	sqlCreateCustomEmojisTable = `CREATE TABLE IF NOT EXISTS custom_emojis (
		id TEXT NOT NULL PRIMARY KEY,
		shortcode TEXT NOT NULL,
		domain TEXT NOT NULL,
		image_remote_url TEXT NOT NULL,
		image_path TEXT,
		uri TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(shortcode, domain)
	)`

	// Conversations table
	sqlCreateConversationsTable = `CREATE TABLE IF NOT EXISTS conversations (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Media attachments table; status_id stays NULL until the attachment
	// is linked to its status
	sqlCreateMediaAttachmentsTable = `CREATE TABLE IF NOT EXISTS media_attachments (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		status_id TEXT,
		remote_url TEXT NOT NULL,
		description TEXT,
		file_path TEXT,
		file_type TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateMediaAttachmentsIndices = `
		CREATE INDEX IF NOT EXISTS idx_media_attachments_status_id ON media_attachments(status_id);
	`

	// Tombstones for objects whose Delete arrived before their Create
	sqlCreateTombstonesTable = `CREATE TABLE IF NOT EXISTS tombstones (
		id TEXT NOT NULL PRIMARY KEY,
		uri TEXT UNIQUE NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Domain moderation table
	sqlCreateDomainBlocksTable = `CREATE TABLE IF NOT EXISTS domain_blocks (
		id TEXT NOT NULL PRIMARY KEY,
		domain TEXT UNIQUE NOT NULL,
		severity TEXT NOT NULL DEFAULT 'suspend',
		reject_media INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Cross-process dedup locks. The PRIMARY KEY makes acquisition a
	// single atomic insert-or-fail.
	sqlCreateProcessingLocksTable = `CREATE TABLE IF NOT EXISTS processing_locks (
		lock_key TEXT NOT NULL PRIMARY KEY,
		holder TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)`

	// Background task queue table
	sqlCreateTaskQueueTable = `CREATE TABLE IF NOT EXISTS task_queue (
		id TEXT NOT NULL PRIMARY KEY,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateTaskQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_task_queue_next_retry ON task_queue(next_retry_at);
	`

	// Follow relationships table
	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		target_account_id TEXT NOT NULL,
		uri TEXT,
		accepted INTEGER DEFAULT 0,
		is_local INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateFollowsIndices = `
		CREATE INDEX IF NOT EXISTS idx_follows_account_id ON follows(account_id);
		CREATE INDEX IF NOT EXISTS idx_follows_target_account_id ON follows(target_account_id);
	`

	// Home feed fan-out entries written by the distribution task
	sqlCreateTimelineEntriesTable = `CREATE TABLE IF NOT EXISTS timeline_entries (
		id TEXT NOT NULL PRIMARY KEY,
		account_id TEXT NOT NULL,
		status_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, status_id)
	)`

	sqlCreateTimelineEntriesIndices = `
		CREATE INDEX IF NOT EXISTS idx_timeline_entries_account_id ON timeline_entries(account_id, created_at DESC);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		tables := []struct {
			name string
			sql  string
		}{
			{"accounts", sqlCreateAccountsTable},
			{"remote_accounts", sqlCreateRemoteAccountsTable},
			{"statuses", sqlCreateStatusesTable},
			{"tags", sqlCreateTagsTable},
			{"status_tags", sqlCreateStatusTagsTable},
			{"mentions", sqlCreateMentionsTable},
			{"custom_emojis", sqlCreateCustomEmojisTable},
			{"conversations", sqlCreateConversationsTable},
			{"media_attachments", sqlCreateMediaAttachmentsTable},
			{"tombstones", sqlCreateTombstonesTable},
			{"domain_blocks", sqlCreateDomainBlocksTable},
			{"processing_locks", sqlCreateProcessingLocksTable},
			{"task_queue", sqlCreateTaskQueueTable},
			{"follows", sqlCreateFollowsTable},
			{"timeline_entries", sqlCreateTimelineEntriesTable},
		}
		for _, t := range tables {
			if err := db.createTableIfNotExists(tx, t.sql, t.name); err != nil {
				return err
			}
		}

		indices := []struct {
			name string
			sql  string
		}{
			{"remote_accounts", sqlCreateRemoteAccountsIndices},
			{"statuses", sqlCreateStatusesIndices},
			{"status_tags", sqlCreateStatusTagsIndices},
			{"mentions", sqlCreateMentionsIndices},
			{"media_attachments", sqlCreateMediaAttachmentsIndices},
			{"task_queue", sqlCreateTaskQueueIndices},
			{"follows", sqlCreateFollowsIndices},
			{"timeline_entries", sqlCreateTimelineEntriesIndices},
		}
		for _, i := range indices {
			if _, err := tx.Exec(i.sql); err != nil {
				log.Printf("Warning: Failed to create %s indices: %v", i.name, err)
			}
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	return nil
}
