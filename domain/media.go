package domain

import (
	"time"

	"github.com/google/uuid"
)

// MediaAttachment is a media object declared by a status. It is created
// unattached (StatusId nil) before any download is attempted, so a record
// exists even when retrieval fails or is suppressed by policy.
type MediaAttachment struct {
	Id          uuid.UUID
	AccountId   uuid.UUID
	StatusId    *uuid.UUID // nil until linked to a status
	RemoteURL   string
	Description string
	FilePath    string // locally mirrored file, empty if not downloaded
	FileType    string // sniffed media type of the local file
	CreatedAt   time.Time
}
