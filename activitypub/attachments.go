package activitypub

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
	"github.com/samanthaghraves/mastodon/util"
)

// maxLinkedAttachments is the cap on attachments linked to one status.
// Records beyond the cap are still created but stay unattached.
const maxLinkedAttachments = 4

// allowedMediaTypes are the declared MIME types accepted for ingestion.
// An attachment declaring anything else is skipped; an attachment
// declaring nothing is given the benefit of the doubt and sniffed after
// download.
var allowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

// attachmentResult is the per-item outcome of attachment ingestion. Either
// Attachment is set, or Skipped names the reason the item was dropped.
type attachmentResult struct {
	Attachment *domain.MediaAttachment
	Skipped    string
}

// ingestAttachments processes every declared attachment. Item-level
// problems (bad MIME type, missing or unparseable URL, failed download)
// skip that item only; a storage error aborts the batch and surfaces to
// the caller.
func ingestAttachments(obj *ActivityObject, accountId uuid.UUID, senderDomain string, deps *InboxDeps) ([]attachmentResult, error) {
	rejectMedia, err := deps.Policy.RejectsMedia(senderDomain)
	if err != nil {
		return nil, err
	}

	results := make([]attachmentResult, 0, len(obj.Attachment))
	for _, entry := range obj.Attachment {
		if entry.MediaType != "" && !allowedMediaTypes[entry.MediaType] {
			results = append(results, attachmentResult{Skipped: "unsupported media type " + entry.MediaType})
			continue
		}

		remoteURL := entry.RemoteURL()
		if remoteURL == "" {
			results = append(results, attachmentResult{Skipped: "no url"})
			continue
		}

		normalized, err := util.NormalizeURL(remoteURL)
		if err != nil {
			log.Printf("Inbox: Skipping attachment with unparseable URL %q: %v", remoteURL, err)
			results = append(results, attachmentResult{Skipped: "unparseable url"})
			continue
		}

		att := &domain.MediaAttachment{
			Id:          uuid.New(),
			AccountId:   accountId,
			RemoteURL:   normalized,
			Description: entry.Name,
			CreatedAt:   time.Now(),
		}

		// The record exists before any download attempt, so a reference
		// survives even when retrieval fails
		if err := deps.Database.CreateMediaAttachment(att); err != nil {
			return results, err
		}

		if !rejectMedia {
			path, mediaType, err := deps.Files.Fetch(normalized)
			if err != nil {
				log.Printf("Inbox: Media download failed for %s: %v", normalized, err)
			} else {
				if err := deps.Database.UpdateMediaAttachmentFile(att.Id, path, mediaType); err != nil {
					return results, err
				}
				att.FilePath = path
				att.FileType = mediaType
			}
		}

		results = append(results, attachmentResult{Attachment: att})
	}

	return results, nil
}

// linkableAttachmentIds returns the ids of the first created attachments
// up to the link cap.
func linkableAttachmentIds(results []attachmentResult) []uuid.UUID {
	var ids []uuid.UUID
	for _, r := range results {
		if r.Attachment == nil {
			continue
		}
		ids = append(ids, r.Attachment.Id)
		if len(ids) == maxLinkedAttachments {
			break
		}
	}
	return ids
}
