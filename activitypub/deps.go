package activitypub

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
	"github.com/samanthaghraves/mastodon/util"
)

// Database defines the database operations required by the ActivityPub package.
// This interface allows for dependency injection and testing with mock implementations.
type Database interface {
	// Account operations
	ReadAccByUsername(username string) (error, *domain.Account)
	ReadAccById(id uuid.UUID) (error, *domain.Account)

	// Remote account operations
	ReadRemoteAccountByActorURI(actorURI string) (error, *domain.RemoteAccount)
	ReadRemoteAccountById(id uuid.UUID) (error, *domain.RemoteAccount)
	CreateRemoteAccount(acc *domain.RemoteAccount) error
	UpdateRemoteAccount(acc *domain.RemoteAccount) error

	// Status operations
	CreateStatus(status *domain.Status, tagNames []string, mentions []*domain.Mention, emojis []*domain.CustomEmoji, attachmentIds []uuid.UUID) error
	ReadStatusByURI(uri string) (error, *domain.Status)
	ReadStatusById(id uuid.UUID) (error, *domain.Status)
	UpdateStatusThread(id uuid.UUID, inReplyToId uuid.UUID) error

	// Media attachment operations
	CreateMediaAttachment(att *domain.MediaAttachment) error
	UpdateMediaAttachmentFile(id uuid.UUID, filePath string, fileType string) error

	// Custom emoji operations
	ReadCustomEmoji(shortcode string, emojiDomain string) (error, *domain.CustomEmoji)
	UpdateCustomEmojiImage(id uuid.UUID, imagePath string) error

	// Conversation operations
	ReadConversationById(id uuid.UUID) (error, *domain.Conversation)
	GetOrCreateConversationByURI(uri string) (error, *domain.Conversation)

	// Tombstone operations
	HasTombstone(uri string) (bool, error)
	CreateTombstone(uri string) error

	// Processing lock operations
	AcquireLock(key string, holder string, ttl time.Duration) (bool, error)
	ReleaseLock(key string, holder string) error

	// Task queue operations
	EnqueueTask(kind string, payload string) error
	ReadPendingTasks(limit int) (error, *[]domain.QueueTask)
	UpdateTaskAttempt(id uuid.UUID, attempts int, nextRetryAt time.Time) error
	DeleteTask(id uuid.UUID) error

	// Follow and timeline operations
	ReadFollowersByAccountId(accountId uuid.UUID) (error, *[]domain.Follow)
	CreateTimelineEntry(entry *domain.TimelineEntry) error
}

// HTTPClient defines the HTTP client operations required by the ActivityPub package.
// This interface allows for dependency injection and testing with mock implementations.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DomainPolicy answers moderation questions about a remote domain.
type DomainPolicy interface {
	// IsBlocked reports whether all activity from the domain is dropped
	IsBlocked(domain string) (bool, error)
	// RejectsMedia reports whether media from the domain must not be downloaded
	RejectsMedia(domain string) (bool, error)
}

// FileRetriever downloads a remote file into local media storage and
// returns its storage path and sniffed media type.
type FileRetriever interface {
	Fetch(url string) (path string, mediaType string, err error)
}

// LanguageDetector guesses the language of a plain-text excerpt. It returns
// an ISO 639-1 code, or empty when no confident guess exists.
type LanguageDetector interface {
	Detect(text string) string
}

// DefaultHTTPClient is the default HTTP client used in production
type DefaultHTTPClient struct {
	client *http.Client
}

// NewDefaultHTTPClient creates a new default HTTP client with the specified timeout
func NewDefaultHTTPClient(timeout time.Duration) *DefaultHTTPClient {
	return &DefaultHTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Do executes the HTTP request
func (c *DefaultHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}

// InboxDeps bundles everything inbound activity processing needs. Handlers
// receive it explicitly so tests can swap any collaborator.
type InboxDeps struct {
	Database   Database
	HTTPClient HTTPClient
	Policy     DomainPolicy
	Files      FileRetriever
	Detector   LanguageDetector
}

// DefaultDeps returns the production dependency set.
func DefaultDeps(conf *util.AppConfig) *InboxDeps {
	client := NewDefaultHTTPClient(30 * time.Second)
	return &InboxDeps{
		Database:   NewDBWrapper(),
		HTTPClient: client,
		Policy:     NewDBDomainPolicy(),
		Files:      NewLocalFileRetriever(client, conf.Conf.MediaDir),
		Detector:   NewTextLanguageDetector(),
	}
}
