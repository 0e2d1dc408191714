package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
	"github.com/samanthaghraves/mastodon/util"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

// Accounts queries
const (
	sqlInsertAccount           = `INSERT INTO accounts(id, username, display_name, summary, web_public_key, web_private_key, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectAccountById       = `SELECT id, username, display_name, summary, web_public_key, web_private_key, created_at FROM accounts WHERE id = ?`
	sqlSelectAccountByUsername = `SELECT id, username, display_name, summary, web_public_key, web_private_key, created_at FROM accounts WHERE username = ?`
	sqlCountAccounts           = `SELECT COUNT(*) FROM accounts`
	sqlCountLocalStatuses      = `SELECT COUNT(*) FROM statuses WHERE local = 1`
)

func GetDB() *DB {
	dbOnce.Do(func() {
		// Resolve database path (local first, then user config dir)
		dbPath := util.ResolveFilePath("database.db")
		log.Printf("Using database at: %s", dbPath)

		db, err := sql.Open("sqlite", dbPath)
		if err != nil {
			panic(err)
		}

		// Configure connection pool for concurrent access
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)

		// Try to enable WAL2 mode, fall back to WAL if not supported
		var journalMode string
		err = db.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
		if err != nil || journalMode == "delete" {
			err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
			if err != nil {
				log.Printf("Warning: Failed to enable WAL mode: %v", err)
			} else {
				log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
			}
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}

		// PRAGMAs for the concurrent inbox workload
		db.Exec("PRAGMA synchronous = NORMAL")
		db.Exec("PRAGMA cache_size = -64000")
		db.Exec("PRAGMA temp_store = MEMORY")
		db.Exec("PRAGMA busy_timeout = 5000")
		db.Exec("PRAGMA foreign_keys = ON")
		db.Exec("PRAGMA auto_vacuum = INCREMENTAL")

		dbInstance = &DB{db: db}

		if err2 := dbInstance.RunMigrations(); err2 != nil {
			panic(err2)
		}
	})

	return dbInstance
}

func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			tx.Rollback()
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}

// isUniqueViolation reports whether err is a sqlite UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if serr, ok := err.(*sqlite.Error); ok {
		code := serr.Code()
		return code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTimestamp parses a timestamp string from SQLite, handling both ISO 8601 and space-separated formats
// SQLite driver returns timestamps with Z suffix even though they're stored in local time
func parseTimestamp(timestampStr string) (time.Time, error) {
	if timestampStr == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	// Remove Z suffix and convert T to space for ISO 8601 format
	if strings.HasSuffix(timestampStr, "Z") {
		timestampStr = strings.TrimSuffix(timestampStr, "Z")
		timestampStr = strings.Replace(timestampStr, "T", " ", 1)
	}

	return time.ParseInLocation("2006-01-02 15:04:05", timestampStr, time.Local)
}

func (db *DB) CreateAccount(username string, keypair *util.RsaKeyPair) (error, *domain.Account) {
	acc := domain.Account{
		Id:            uuid.New(),
		Username:      username,
		WebPublicKey:  keypair.Public,
		WebPrivateKey: keypair.Private,
		CreatedAt:     time.Now(),
	}
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAccount, acc.Id, acc.Username, acc.DisplayName, acc.Summary, acc.WebPublicKey, acc.WebPrivateKey, acc.CreatedAt)
		return err
	})
	if err != nil {
		return err, nil
	}
	return nil, &acc
}

func (db *DB) ReadAccByUsername(username string) (error, *domain.Account) {
	return db.scanAccount(db.db.QueryRow(sqlSelectAccountByUsername, username))
}

func (db *DB) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	return db.scanAccount(db.db.QueryRow(sqlSelectAccountById, id))
}

func (db *DB) scanAccount(row *sql.Row) (error, *domain.Account) {
	var acc domain.Account
	var displayName, summary, webPublicKey, webPrivateKey sql.NullString
	var createdAtStr string
	err := row.Scan(&acc.Id, &acc.Username, &displayName, &summary, &webPublicKey, &webPrivateKey, &createdAtStr)
	if err != nil {
		return err, nil
	}
	acc.DisplayName = displayName.String
	acc.Summary = summary.String
	acc.WebPublicKey = webPublicKey.String
	acc.WebPrivateKey = webPrivateKey.String
	if parsedTime, err := parseTimestamp(createdAtStr); err == nil {
		acc.CreatedAt = parsedTime
	}
	return nil, &acc
}

func (db *DB) CountAccounts() (int, error) {
	var count int
	err := db.db.QueryRow(sqlCountAccounts).Scan(&count)
	return count, err
}

func (db *DB) CountLocalStatuses() (int, error) {
	var count int
	err := db.db.QueryRow(sqlCountLocalStatuses).Scan(&count)
	return count, err
}

// Remote Accounts queries
const (
	sqlInsertRemoteAccount      = `INSERT INTO remote_accounts(id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, followers_uri, public_key_pem, avatar_url, last_fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectRemoteAccountByURI = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, followers_uri, public_key_pem, avatar_url, last_fetched_at FROM remote_accounts WHERE actor_uri = ?`
	sqlSelectRemoteAccountById  = `SELECT id, username, domain, actor_uri, display_name, summary, inbox_uri, shared_inbox_uri, outbox_uri, followers_uri, public_key_pem, avatar_url, last_fetched_at FROM remote_accounts WHERE id = ?`
	sqlUpdateRemoteAccount      = `UPDATE remote_accounts SET display_name = ?, summary = ?, inbox_uri = ?, shared_inbox_uri = ?, outbox_uri = ?, followers_uri = ?, public_key_pem = ?, avatar_url = ?, last_fetched_at = ? WHERE actor_uri = ?`
)

func (db *DB) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRemoteAccount,
			acc.Id.String(),
			acc.Username,
			acc.Domain,
			acc.ActorURI,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.SharedInboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.PublicKeyPem,
			acc.AvatarURL,
			acc.LastFetchedAt,
		)
		return err
	})
}

func (db *DB) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateRemoteAccount,
			acc.DisplayName,
			acc.Summary,
			acc.InboxURI,
			acc.SharedInboxURI,
			acc.OutboxURI,
			acc.FollowersURI,
			acc.PublicKeyPem,
			acc.AvatarURL,
			time.Now(),
			acc.ActorURI,
		)
		return err
	})
}

func (db *DB) ReadRemoteAccountByActorURI(uri string) (error, *domain.RemoteAccount) {
	return db.scanRemoteAccount(db.db.QueryRow(sqlSelectRemoteAccountByURI, uri))
}

func (db *DB) ReadRemoteAccountById(id uuid.UUID) (error, *domain.RemoteAccount) {
	return db.scanRemoteAccount(db.db.QueryRow(sqlSelectRemoteAccountById, id.String()))
}

func (db *DB) scanRemoteAccount(row *sql.Row) (error, *domain.RemoteAccount) {
	var acc domain.RemoteAccount
	var idStr string
	var displayName, summary, sharedInbox, outbox, followers, avatarURL sql.NullString
	var lastFetchedStr string
	err := row.Scan(
		&idStr,
		&acc.Username,
		&acc.Domain,
		&acc.ActorURI,
		&displayName,
		&summary,
		&acc.InboxURI,
		&sharedInbox,
		&outbox,
		&followers,
		&acc.PublicKeyPem,
		&avatarURL,
		&lastFetchedStr,
	)
	if err != nil {
		return err, nil
	}
	acc.Id, err = uuid.Parse(idStr)
	if err != nil {
		return err, nil
	}
	acc.DisplayName = displayName.String
	acc.Summary = summary.String
	acc.SharedInboxURI = sharedInbox.String
	acc.OutboxURI = outbox.String
	acc.FollowersURI = followers.String
	acc.AvatarURL = avatarURL.String
	if parsedTime, err := parseTimestamp(lastFetchedStr); err == nil {
		acc.LastFetchedAt = parsedTime
	}
	return nil, &acc
}
