package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visibility is the audience level of a status
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// Status represents a post, local or federated. For federated statuses the
// URI is the origin server's object identifier and is unique across the
// store; a second arrival of the same URI must never create a second row.
type Status struct {
	Id             uuid.UUID
	URI            string // ActivityPub object identifier, globally unique
	URL            string // Canonical HTML permalink, may equal URI
	AccountId      uuid.UUID
	Local          bool // true when AccountId refers to a local account
	Text           string
	Language       string
	SpoilerText    string
	Sensitive      bool
	Visibility     Visibility
	InReplyToId    *uuid.UUID // Resolved reply parent, nil while unresolved
	InReplyToURI   string     // Raw reply target URI as declared by the origin
	ConversationId *uuid.UUID
	CreatedAt      time.Time
}

// TimelineEntry is a fan-out record placing a status on a local account's
// home feed. Written by the distribution task, once per follower.
type TimelineEntry struct {
	Id        uuid.UUID
	AccountId uuid.UUID
	StatusId  uuid.UUID
	CreatedAt time.Time
}
