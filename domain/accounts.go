package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account represents a local user
type Account struct {
	Id            uuid.UUID
	Username      string
	DisplayName   string
	Summary       string
	WebPublicKey  string
	WebPrivateKey string
	CreatedAt     time.Time
}

// RemoteAccount represents a cached federated user
type RemoteAccount struct {
	Id             uuid.UUID
	Username       string
	Domain         string
	ActorURI       string
	DisplayName    string
	Summary        string
	InboxURI       string
	SharedInboxURI string
	OutboxURI      string
	FollowersURI   string
	PublicKeyPem   string
	AvatarURL      string
	LastFetchedAt  time.Time
}

// PreferredInboxURI returns the shared inbox when the remote server
// advertises one, otherwise the personal inbox.
func (a *RemoteAccount) PreferredInboxURI() string {
	if a.SharedInboxURI != "" {
		return a.SharedInboxURI
	}
	return a.InboxURI
}

// Follow represents a follow relationship
type Follow struct {
	Id              uuid.UUID
	AccountId       uuid.UUID // The follower (can be local or remote)
	TargetAccountId uuid.UUID // The account being followed
	URI             string    // ActivityPub Follow activity URI (empty for local follows)
	CreatedAt       time.Time
	Accepted        bool
	IsLocal         bool // true if the follower is a local account
}
