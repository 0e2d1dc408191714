package activitypub

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
)

// Tag entry kinds dispatched by processTags
const (
	tagKindHashtag = "Hashtag"
	tagKindMention = "Mention"
	tagKindEmoji   = "Emoji"
)

// tagResult carries everything extracted from an object's tag array, ready
// to be written in the status creation transaction.
type tagResult struct {
	TagNames []string
	Mentions []*domain.Mention
	Emojis   []*domain.CustomEmoji
}

// processTags walks the embedded tag entries and dispatches by kind.
// Every per-entry failure (unresolvable mention, malformed emoji) skips
// that entry only; the rest of the batch is unaffected.
func processTags(obj *ActivityObject, sender *domain.RemoteAccount, statusId uuid.UUID, deps *InboxDeps) *tagResult {
	result := &tagResult{}
	seenTags := make(map[string]bool)
	seenMentions := make(map[uuid.UUID]bool)

	for _, entry := range obj.Tag {
		switch entry.Type {
		case tagKindHashtag:
			name := normalizeHashtagName(entry.Name)
			if name == "" || seenTags[name] {
				continue
			}
			seenTags[name] = true
			result.TagNames = append(result.TagNames, name)

		case tagKindMention:
			if entry.Href == "" {
				continue
			}
			account := resolveMentionedAccount(entry.Href, deps)
			if account == nil {
				log.Printf("Inbox: Skipping unresolvable mention %s", entry.Href)
				continue
			}
			if seenMentions[account.Id] {
				continue
			}
			seenMentions[account.Id] = true
			result.Mentions = append(result.Mentions, &domain.Mention{
				Id:        uuid.New(),
				StatusId:  statusId,
				AccountId: account.Id,
				CreatedAt: time.Now(),
			})

		case tagKindEmoji:
			emoji := processEmojiTag(&entry, sender, deps)
			if emoji != nil {
				result.Emojis = append(result.Emojis, emoji)
			}
		}
	}

	return result
}

// normalizeHashtagName case-folds a declared hashtag and strips the
// leading '#'. Returns empty for unusable names.
func normalizeHashtagName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "#")
	if name == "" {
		return ""
	}
	return strings.ToLower(name)
}

// resolveMentionedAccount finds the mentioned account in the cache, falling
// back to a synchronous remote fetch. Returns nil when the account cannot
// be resolved; the mention is then dropped.
func resolveMentionedAccount(href string, deps *InboxDeps) *domain.RemoteAccount {
	err, account := deps.Database.ReadRemoteAccountByActorURI(href)
	if err == nil && account != nil {
		return account
	}

	fetched, err := FetchRemoteAccountWithDeps(href, deps)
	if err != nil {
		return nil
	}
	return fetched
}

// processEmojiTag validates a custom emoji declaration and decides whether
// it should create or replace the stored record. An existing record is
// kept unless the incoming declaration carries a newer updated timestamp.
func processEmojiTag(entry *TagEntry, sender *domain.RemoteAccount, deps *InboxDeps) *domain.CustomEmoji {
	rejectMedia, err := deps.Policy.RejectsMedia(sender.Domain)
	if err != nil {
		log.Printf("Inbox: Media policy check failed for %s: %v", sender.Domain, err)
		return nil
	}
	if rejectMedia {
		return nil
	}

	shortcode := strings.Trim(strings.TrimSpace(entry.Name), ":")
	if shortcode == "" || entry.Icon == nil || entry.Icon.URL == "" {
		return nil
	}

	err, existing := deps.Database.ReadCustomEmoji(shortcode, sender.Domain)
	if err == nil && existing != nil {
		// A declaration without an updated timestamp never replaces an
		// existing record
		if entry.Updated == nil || !existing.UpdatedAt.Before(*entry.Updated) {
			return nil
		}
	}

	updatedAt := time.Now()
	if entry.Updated != nil {
		updatedAt = *entry.Updated
	}

	return &domain.CustomEmoji{
		Id:             uuid.New(),
		Shortcode:      shortcode,
		Domain:         sender.Domain,
		ImageRemoteURL: entry.Icon.URL,
		URI:            entry.ID,
		UpdatedAt:      updatedAt,
		CreatedAt:      time.Now(),
	}
}
