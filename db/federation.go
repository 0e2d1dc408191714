package db

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
)

// Tombstones queries
const (
	sqlInsertTombstone = `INSERT INTO tombstones(id, uri, created_at) VALUES (?, ?, ?) ON CONFLICT(uri) DO NOTHING`
	sqlCountTombstone  = `SELECT COUNT(*) FROM tombstones WHERE uri = ?`
)

func (db *DB) CreateTombstone(uri string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertTombstone, uuid.New().String(), uri, time.Now())
		return err
	})
}

func (db *DB) HasTombstone(uri string) (bool, error) {
	var count int
	err := db.db.QueryRow(sqlCountTombstone, uri).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Domain blocks queries
const (
	sqlInsertDomainBlock = `INSERT INTO domain_blocks(id, domain, severity, reject_media, created_at) VALUES (?, ?, ?, ?, ?)`
	sqlSelectDomainBlock = `SELECT id, domain, severity, reject_media, created_at FROM domain_blocks WHERE domain = ?`
)

func (db *DB) CreateDomainBlock(block *domain.DomainBlock) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertDomainBlock, block.Id.String(), block.Domain, block.Severity, block.RejectMedia, block.CreatedAt)
		return err
	})
}

func (db *DB) ReadDomainBlock(blockedDomain string) (error, *domain.DomainBlock) {
	row := db.db.QueryRow(sqlSelectDomainBlock, blockedDomain)
	var block domain.DomainBlock
	var idStr, createdAtStr string
	err := row.Scan(&idStr, &block.Domain, &block.Severity, &block.RejectMedia, &createdAtStr)
	if err != nil {
		return err, nil
	}
	if block.Id, err = uuid.Parse(idStr); err != nil {
		return err, nil
	}
	if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
		block.CreatedAt = parsedTime
	}
	return nil, &block
}

// Processing locks queries
const (
	sqlDeleteExpiredLock = `DELETE FROM processing_locks WHERE lock_key = ? AND expires_at <= ?`
	sqlInsertLock        = `INSERT INTO processing_locks(lock_key, holder, expires_at) VALUES (?, ?, ?)`
	sqlDeleteHeldLock    = `DELETE FROM processing_locks WHERE lock_key = ? AND holder = ?`
)

// AcquireLock takes the named lock for the given holder. It returns false
// without error when another holder currently has an unexpired lease; the
// PRIMARY KEY on lock_key makes the insert the atomic decision point.
func (db *DB) AcquireLock(key string, holder string, ttl time.Duration) (bool, error) {
	now := time.Now()

	// Clear a stale lease first so a crashed holder cannot wedge the key
	if _, err := db.db.Exec(sqlDeleteExpiredLock, key, now); err != nil {
		return false, err
	}

	_, err := db.db.Exec(sqlInsertLock, key, holder, now.Add(ttl))
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ReleaseLock drops the lock if this holder still owns it. Releasing a lock
// held by someone else (after lease expiry and takeover) is a no-op.
func (db *DB) ReleaseLock(key string, holder string) error {
	_, err := db.db.Exec(sqlDeleteHeldLock, key, holder)
	return err
}

// Task queue queries
const (
	sqlInsertTask         = `INSERT INTO task_queue(id, kind, payload, attempts, next_retry_at, created_at) VALUES (?, ?, ?, 0, ?, ?)`
	sqlSelectPendingTasks = `SELECT id, kind, payload, attempts, next_retry_at, created_at FROM task_queue WHERE next_retry_at <= ? ORDER BY next_retry_at ASC LIMIT ?`
	sqlUpdateTaskAttempt  = `UPDATE task_queue SET attempts = ?, next_retry_at = ? WHERE id = ?`
	sqlDeleteTask         = `DELETE FROM task_queue WHERE id = ?`
)

func (db *DB) EnqueueTask(kind string, payload string) error {
	now := time.Now()
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertTask, uuid.New().String(), kind, payload, now, now)
		return err
	})
}

func (db *DB) ReadPendingTasks(limit int) (error, *[]domain.QueueTask) {
	rows, err := db.db.Query(sqlSelectPendingTasks, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var tasks []domain.QueueTask
	for rows.Next() {
		var task domain.QueueTask
		var idStr, nextRetryStr, createdAtStr string
		if err := rows.Scan(&idStr, &task.Kind, &task.Payload, &task.Attempts, &nextRetryStr, &createdAtStr); err != nil {
			return err, &tasks
		}
		if task.Id, err = uuid.Parse(idStr); err != nil {
			return err, &tasks
		}
		if parsedTime, err := parseTimestamp(nextRetryStr); err == nil {
			task.NextRetryAt = parsedTime
		}
		if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
			task.CreatedAt = parsedTime
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		return err, &tasks
	}
	return nil, &tasks
}

func (db *DB) UpdateTaskAttempt(id uuid.UUID, attempts int, nextRetryAt time.Time) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateTaskAttempt, attempts, nextRetryAt, id.String())
		return err
	})
}

func (db *DB) DeleteTask(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteTask, id.String())
		return err
	})
}

// Follows queries
const (
	sqlInsertFollow              = `INSERT INTO follows(id, account_id, target_account_id, uri, accepted, is_local, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectFollowersByTargetId = `SELECT id, account_id, target_account_id, uri, accepted, is_local, created_at FROM follows WHERE target_account_id = ? AND accepted = 1`
)

func (db *DB) CreateFollow(follow *domain.Follow) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertFollow,
			follow.Id.String(),
			follow.AccountId.String(),
			follow.TargetAccountId.String(),
			follow.URI,
			follow.Accepted,
			follow.IsLocal,
			follow.CreatedAt,
		)
		return err
	})
}

// ReadFollowersByAccountId returns accepted followers of the given account.
func (db *DB) ReadFollowersByAccountId(targetAccountId uuid.UUID) (error, *[]domain.Follow) {
	rows, err := db.db.Query(sqlSelectFollowersByTargetId, targetAccountId.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var follows []domain.Follow
	for rows.Next() {
		var follow domain.Follow
		var idStr, accountIdStr, targetIdStr, createdAtStr string
		var uri sql.NullString
		if err := rows.Scan(&idStr, &accountIdStr, &targetIdStr, &uri, &follow.Accepted, &follow.IsLocal, &createdAtStr); err != nil {
			return err, &follows
		}
		if follow.Id, err = uuid.Parse(idStr); err != nil {
			return err, &follows
		}
		if follow.AccountId, err = uuid.Parse(accountIdStr); err != nil {
			return err, &follows
		}
		if follow.TargetAccountId, err = uuid.Parse(targetIdStr); err != nil {
			return err, &follows
		}
		follow.URI = uri.String
		if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
			follow.CreatedAt = parsedTime
		}
		follows = append(follows, follow)
	}
	if err = rows.Err(); err != nil {
		return err, &follows
	}
	return nil, &follows
}

// Timeline entries queries
const (
	sqlInsertTimelineEntry = `INSERT OR IGNORE INTO timeline_entries(id, account_id, status_id, created_at) VALUES (?, ?, ?, ?)`
)

// CreateTimelineEntry places a status on a local account's home feed.
// Re-running distribution for the same status is absorbed by the UNIQUE
// constraint on (account_id, status_id).
func (db *DB) CreateTimelineEntry(entry *domain.TimelineEntry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertTimelineEntry, entry.Id.String(), entry.AccountId.String(), entry.StatusId.String(), entry.CreatedAt)
		return err
	})
}
