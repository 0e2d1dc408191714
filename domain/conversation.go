package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups statuses in a thread. Remote conversations are keyed
// by their opaque URI; locally minted ones are addressed by id directly.
type Conversation struct {
	Id        uuid.UUID
	URI       string // empty for locally minted conversations
	CreatedAt time.Time
}
