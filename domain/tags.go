package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a hashtag, stored once per case-folded name
type Tag struct {
	Id        uuid.UUID
	Name      string // case-folded, leading '#' stripped
	CreatedAt time.Time
}

// Mention links a status to a mentioned account
type Mention struct {
	Id        uuid.UUID
	StatusId  uuid.UUID
	AccountId uuid.UUID // the mentioned remote account
	CreatedAt time.Time
}

// CustomEmoji is a remote emoji declaration, keyed by (shortcode, domain).
// An existing record is only replaced when the incoming declaration carries
// a newer updated timestamp.
type CustomEmoji struct {
	Id             uuid.UUID
	Shortcode      string
	Domain         string
	ImageRemoteURL string
	ImagePath      string // locally mirrored image, empty until fetched
	URI            string
	UpdatedAt      time.Time
	CreatedAt      time.Time
}
