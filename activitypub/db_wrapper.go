package activitypub

import (
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/domain"
)

// DBWrapper wraps the real database to implement the Database interface.
// This adapter allows the production code to use the existing db.GetDB() singleton
// while also supporting dependency injection for tests.
type DBWrapper struct {
	db *db.DB
}

// NewDBWrapper creates a new database wrapper around the singleton database
func NewDBWrapper() *DBWrapper {
	return &DBWrapper{db: db.GetDB()}
}

// Account operations

func (w *DBWrapper) ReadAccByUsername(username string) (error, *domain.Account) {
	return w.db.ReadAccByUsername(username)
}

func (w *DBWrapper) ReadAccById(id uuid.UUID) (error, *domain.Account) {
	return w.db.ReadAccById(id)
}

// Remote account operations

func (w *DBWrapper) ReadRemoteAccountByActorURI(actorURI string) (error, *domain.RemoteAccount) {
	return w.db.ReadRemoteAccountByActorURI(actorURI)
}

func (w *DBWrapper) ReadRemoteAccountById(id uuid.UUID) (error, *domain.RemoteAccount) {
	return w.db.ReadRemoteAccountById(id)
}

func (w *DBWrapper) CreateRemoteAccount(acc *domain.RemoteAccount) error {
	return w.db.CreateRemoteAccount(acc)
}

func (w *DBWrapper) UpdateRemoteAccount(acc *domain.RemoteAccount) error {
	return w.db.UpdateRemoteAccount(acc)
}

// Status operations

func (w *DBWrapper) CreateStatus(status *domain.Status, tagNames []string, mentions []*domain.Mention, emojis []*domain.CustomEmoji, attachmentIds []uuid.UUID) error {
	return w.db.CreateStatus(status, tagNames, mentions, emojis, attachmentIds)
}

func (w *DBWrapper) ReadStatusByURI(uri string) (error, *domain.Status) {
	return w.db.ReadStatusByURI(uri)
}

func (w *DBWrapper) ReadStatusById(id uuid.UUID) (error, *domain.Status) {
	return w.db.ReadStatusById(id)
}

func (w *DBWrapper) UpdateStatusThread(id uuid.UUID, inReplyToId uuid.UUID) error {
	return w.db.UpdateStatusThread(id, inReplyToId)
}

// Media attachment operations

func (w *DBWrapper) CreateMediaAttachment(att *domain.MediaAttachment) error {
	return w.db.CreateMediaAttachment(att)
}

func (w *DBWrapper) UpdateMediaAttachmentFile(id uuid.UUID, filePath string, fileType string) error {
	return w.db.UpdateMediaAttachmentFile(id, filePath, fileType)
}

// Custom emoji operations

func (w *DBWrapper) ReadCustomEmoji(shortcode string, emojiDomain string) (error, *domain.CustomEmoji) {
	return w.db.ReadCustomEmoji(shortcode, emojiDomain)
}

func (w *DBWrapper) UpdateCustomEmojiImage(id uuid.UUID, imagePath string) error {
	return w.db.UpdateCustomEmojiImage(id, imagePath)
}

// Conversation operations

func (w *DBWrapper) ReadConversationById(id uuid.UUID) (error, *domain.Conversation) {
	return w.db.ReadConversationById(id)
}

func (w *DBWrapper) GetOrCreateConversationByURI(uri string) (error, *domain.Conversation) {
	return w.db.GetOrCreateConversationByURI(uri)
}

// Tombstone operations

func (w *DBWrapper) HasTombstone(uri string) (bool, error) {
	return w.db.HasTombstone(uri)
}

func (w *DBWrapper) CreateTombstone(uri string) error {
	return w.db.CreateTombstone(uri)
}

// Processing lock operations

func (w *DBWrapper) AcquireLock(key string, holder string, ttl time.Duration) (bool, error) {
	return w.db.AcquireLock(key, holder, ttl)
}

func (w *DBWrapper) ReleaseLock(key string, holder string) error {
	return w.db.ReleaseLock(key, holder)
}

// Task queue operations

func (w *DBWrapper) EnqueueTask(kind string, payload string) error {
	return w.db.EnqueueTask(kind, payload)
}

func (w *DBWrapper) ReadPendingTasks(limit int) (error, *[]domain.QueueTask) {
	return w.db.ReadPendingTasks(limit)
}

func (w *DBWrapper) UpdateTaskAttempt(id uuid.UUID, attempts int, nextRetryAt time.Time) error {
	return w.db.UpdateTaskAttempt(id, attempts, nextRetryAt)
}

func (w *DBWrapper) DeleteTask(id uuid.UUID) error {
	return w.db.DeleteTask(id)
}

// Follow and timeline operations

func (w *DBWrapper) ReadFollowersByAccountId(accountId uuid.UUID) (error, *[]domain.Follow) {
	return w.db.ReadFollowersByAccountId(accountId)
}

func (w *DBWrapper) CreateTimelineEntry(entry *domain.TimelineEntry) error {
	return w.db.CreateTimelineEntry(entry)
}

// Ensure DBWrapper implements Database interface
var _ Database = (*DBWrapper)(nil)
