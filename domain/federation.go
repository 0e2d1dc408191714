package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tombstone records an object identifier whose Delete arrived before (or
// instead of) its Create. A Create for a tombstoned URI is dropped.
type Tombstone struct {
	Id        uuid.UUID
	URI       string
	CreatedAt time.Time
}

// Domain block severities. Suspend drops all activity from the domain;
// reject_media keeps the activity but suppresses media downloads.
const (
	DomainBlockSuspend     = "suspend"
	DomainBlockRejectMedia = "reject_media"
)

// DomainBlock is a moderation decision about a remote domain.
type DomainBlock struct {
	Id          uuid.UUID
	Domain      string
	Severity    string
	RejectMedia bool
	CreatedAt   time.Time
}

// Task kinds understood by the background worker
const (
	TaskResolveThread = "resolve_thread"
	TaskDistribute    = "distribute"
	TaskForwardReply  = "forward_reply"
	TaskFetchEmoji    = "fetch_emoji"
)

// QueueTask is a unit of deferred work with at-least-once delivery.
// Handlers must be idempotent; a task is retried with backoff until it
// succeeds or exhausts its attempts.
type QueueTask struct {
	Id          uuid.UUID
	Kind        string
	Payload     string // JSON arguments for the handler
	Attempts    int
	NextRetryAt time.Time
	CreatedAt   time.Time
}
