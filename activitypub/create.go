package activitypub

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
	"github.com/samanthaghraves/mastodon/util"
)

// publicCollection is the ActivityStreams marker for world-readable posts
const publicCollection = "https://www.w3.org/ns/activitystreams#Public"

// lockTTL is the lease on the per-object dedup lock. Long enough to cover
// a slow ingestion with remote fetches, short enough that a crashed worker
// does not block redelivery for long.
const lockTTL = 5 * time.Minute

// nativeObjectTypes are materialized from their own content fields;
// convertibleObjectTypes are rendered as link-style posts.
var (
	nativeObjectTypes      = map[string]bool{"Note": true}
	convertibleObjectTypes = map[string]bool{"Image": true, "Video": true, "Article": true}
)

func supportedObjectType(objectType string) bool {
	return nativeObjectTypes[objectType] || convertibleObjectTypes[objectType]
}

// ProcessCreateWithDeps ingests one inbound Create activity from an
// authenticated sender. It returns the materialized status, the existing
// status on idempotent replay, or (nil, nil) when the activity is rejected
// or another worker holds the dedup lock. Only storage failures surface as
// errors; rejections are normal control flow.
func ProcessCreateWithDeps(body []byte, sender *domain.RemoteAccount, conf *util.AppConfig, deps *InboxDeps) (*domain.Status, error) {
	var envelope ActivityEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse activity: %w", err)
	}

	obj, ok := decodeCreateObject(&envelope)
	if !ok {
		return nil, nil
	}

	// Rejection checks, cheapest first. All of these are clean no-ops.
	if tombstoned, err := deps.Database.HasTombstone(obj.ID); err != nil {
		return nil, err
	} else if tombstoned {
		log.Printf("Inbox: Ignoring Create for tombstoned object %s", obj.ID)
		return nil, nil
	}

	if !supportedObjectType(obj.Type) {
		log.Printf("Inbox: Ignoring Create with unsupported object type %q", obj.Type)
		return nil, nil
	}

	if !util.IsSupportedScheme(obj.ID) || !util.SameOrigin(obj.ID, sender.ActorURI) {
		log.Printf("Inbox: Rejecting object %s claimed by actor %s (origin mismatch)", obj.ID, sender.ActorURI)
		return nil, nil
	}

	if blocked, err := deps.Policy.IsBlocked(sender.Domain); err != nil {
		return nil, err
	} else if blocked {
		return nil, nil
	}

	// The dedup lock is the at-most-once guarantee under concurrent
	// redelivery. Losing the acquisition race is a terminal no-op; the
	// holder finishes the job.
	lockKey := "create:" + obj.ID
	holder := uuid.New().String()
	acquired, err := deps.Database.AcquireLock(lockKey, holder, lockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		log.Printf("Inbox: Create for %s already in flight, skipping", obj.ID)
		return nil, nil
	}

	status, fan, err := func() (*domain.Status, *fanoutContext, error) {
		defer func() {
			if err := deps.Database.ReleaseLock(lockKey, holder); err != nil {
				log.Printf("Inbox: Failed to release lock %s: %v", lockKey, err)
			}
		}()

		// Idempotent replay: the object may have been materialized by an
		// earlier delivery, possibly under its atom-era alias
		if existing := findExistingStatus(obj, deps); existing != nil {
			return existing, nil, nil
		}
		return createStatus(obj, sender, conf, deps)
	}()
	if err != nil {
		return nil, err
	}

	// Fan-out runs after the lock is released; the status is committed and
	// every task is independently idempotent
	if fan != nil {
		enqueueFanout(body, &envelope, status, fan, obj, sender, deps)
	}
	return status, nil
}

// fanoutContext carries the in-process materialization results that
// enqueueFanout still needs once the dedup lock is gone.
type fanoutContext struct {
	parent *domain.Status
	emojis []*domain.CustomEmoji
}

// decodeCreateObject unwraps the embedded object. A bare string reference
// (a Create the origin expects us to dereference) is unsupported and
// dropped.
func decodeCreateObject(envelope *ActivityEnvelope) (*ActivityObject, bool) {
	if len(envelope.Object) == 0 {
		return nil, false
	}
	var ref string
	if err := json.Unmarshal(envelope.Object, &ref); err == nil {
		log.Printf("Inbox: Ignoring Create with unembedded object %s", ref)
		return nil, false
	}
	var obj ActivityObject
	if err := json.Unmarshal(envelope.Object, &obj); err != nil {
		log.Printf("Inbox: Failed to parse Create object: %v", err)
		return nil, false
	}
	if obj.ID == "" {
		return nil, false
	}
	return &obj, true
}

func findExistingStatus(obj *ActivityObject, deps *InboxDeps) *domain.Status {
	if err, status := deps.Database.ReadStatusByURI(obj.ID); err == nil && status != nil {
		return status
	}
	if obj.AtomURI != "" && obj.AtomURI != obj.ID {
		if err, status := deps.Database.ReadStatusByURI(obj.AtomURI); err == nil && status != nil {
			return status
		}
	}
	return nil
}

// createStatus runs the materialization: attachment ingestion and tag
// resolution happen before the transaction (they involve network I/O),
// then status + tags + mentions + emojis + attachment links commit
// atomically. The returned fanoutContext feeds the post-commit tasks.
func createStatus(obj *ActivityObject, sender *domain.RemoteAccount, conf *util.AppConfig, deps *InboxDeps) (*domain.Status, *fanoutContext, error) {
	statusId := uuid.New()

	attachmentResults, err := ingestAttachments(obj, sender.Id, sender.Domain, deps)
	if err != nil {
		return nil, nil, err
	}

	tags := processTags(obj, sender, statusId, deps)

	inReplyToURI := obj.InReplyToURI()
	var inReplyToId *uuid.UUID
	parent := resolveReplyParent(inReplyToURI, obj.InReplyToAtomURI, deps)
	if parent != nil {
		inReplyToId = &parent.Id
	}

	conversationId, err := resolveConversation(obj, conf.Conf.Domain, deps)
	if err != nil {
		return nil, nil, err
	}

	text := deriveText(obj)
	createdAt := time.Now()
	if obj.Published != nil {
		createdAt = *obj.Published
	}

	status := &domain.Status{
		Id:             statusId,
		URI:            obj.ID,
		URL:            deriveCanonicalURL(obj),
		AccountId:      sender.Id,
		Local:          false,
		Text:           text,
		Language:       deriveLanguage(obj, text, deps.Detector),
		SpoilerText:    obj.Summary,
		Sensitive:      obj.Sensitive,
		Visibility:     deriveVisibility(obj, sender),
		InReplyToId:    inReplyToId,
		InReplyToURI:   inReplyToURI,
		ConversationId: conversationId,
		CreatedAt:      createdAt,
	}

	err = deps.Database.CreateStatus(status, tags.TagNames, tags.Mentions, tags.Emojis, linkableAttachmentIds(attachmentResults))
	if err != nil {
		return nil, nil, err
	}

	return status, &fanoutContext{parent: parent, emojis: tags.Emojis}, nil
}

// enqueueFanout dispatches the post-commit background work. Each task is
// independently idempotent; enqueue failures are logged, not propagated,
// since the status itself is already committed.
func enqueueFanout(body []byte, envelope *ActivityEnvelope, status *domain.Status, fan *fanoutContext, obj *ActivityObject, sender *domain.RemoteAccount, deps *InboxDeps) {
	if status.InReplyToURI != "" && status.InReplyToId == nil {
		enqueueTask(deps, domain.TaskResolveThread, resolveThreadPayload{
			StatusId:         status.Id,
			InReplyToURI:     status.InReplyToURI,
			InReplyToAtomURI: obj.InReplyToAtomURI,
		})
	}

	enqueueTask(deps, domain.TaskDistribute, distributePayload{StatusId: status.Id})

	for _, emoji := range fan.emojis {
		enqueueTask(deps, domain.TaskFetchEmoji, fetchEmojiPayload{
			Shortcode: emoji.Shortcode,
			Domain:    emoji.Domain,
		})
	}

	// A signed reply to a local post is relayed verbatim to the author's
	// followers' servers; this server cannot re-sign someone else's
	// activity, so the original payload travels untouched
	if len(envelope.Signature) > 0 && fan.parent != nil && fan.parent.Local {
		enqueueTask(deps, domain.TaskForwardReply, forwardReplyPayload{
			Body:      json.RawMessage(body),
			AccountId: fan.parent.AccountId,
			InboxURI:  sender.PreferredInboxURI(),
		})
	}
}

func enqueueTask(deps *InboxDeps, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Inbox: Failed to encode %s task: %v", kind, err)
		return
	}
	if err := deps.Database.EnqueueTask(kind, string(data)); err != nil {
		log.Printf("Inbox: Failed to enqueue %s task: %v", kind, err)
	}
}

// deriveVisibility maps the audience lists to a visibility level,
// first match wins.
func deriveVisibility(obj *ActivityObject, sender *domain.RemoteAccount) domain.Visibility {
	switch {
	case obj.To.Contains(publicCollection):
		return domain.VisibilityPublic
	case obj.Cc.Contains(publicCollection):
		return domain.VisibilityUnlisted
	case sender.FollowersURI != "" && obj.To.Contains(sender.FollowersURI):
		return domain.VisibilityPrivate
	default:
		return domain.VisibilityDirect
	}
}

// deriveText extracts the post body. Convertible types become link-style
// posts; native types use their content, falling back to the language map.
func deriveText(obj *ActivityObject) string {
	if convertibleObjectTypes[obj.Type] {
		name := obj.Name
		if name == "" {
			if _, value, ok := FirstMapValue(obj.NameMap); ok {
				name = value
			}
		}
		link := obj.PermalinkURL()
		if link == "" {
			link = obj.ID
		}
		return util.Linkify(strings.TrimSpace(name + " " + link))
	}

	if obj.Content != "" {
		return obj.Content
	}
	if _, value, ok := FirstMapValue(obj.ContentMap); ok {
		return value
	}
	return ""
}

// deriveLanguage prefers declared language-map keys; statistical detection
// only runs for native content, never for synthesized link posts.
func deriveLanguage(obj *ActivityObject, text string, detector LanguageDetector) string {
	if key, _, ok := FirstMapValue(obj.ContentMap); ok {
		return key
	}
	if key, _, ok := FirstMapValue(obj.NameMap); ok {
		return key
	}
	if nativeObjectTypes[obj.Type] && detector != nil {
		return detector.Detect(text)
	}
	return ""
}

// deriveCanonicalURL keeps the declared HTML permalink only when it shares
// the object identifier's origin; a cross-origin permalink is spoofing.
func deriveCanonicalURL(obj *ActivityObject) string {
	u := obj.PermalinkURL()
	if u == "" {
		return ""
	}
	if !util.SameOrigin(u, obj.ID) {
		return ""
	}
	return u
}
