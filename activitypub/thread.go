package activitypub

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
)

// resolveReplyParent looks up the declared reply target among locally known
// statuses, trying the primary identifier and any atom-era alias. A miss is
// not an error; the caller enqueues background resolution instead.
func resolveReplyParent(inReplyToURI string, atomURI string, deps *InboxDeps) *domain.Status {
	if inReplyToURI != "" {
		if err, parent := deps.Database.ReadStatusByURI(inReplyToURI); err == nil && parent != nil {
			return parent
		}
	}
	if atomURI != "" && atomURI != inReplyToURI {
		if err, parent := deps.Database.ReadStatusByURI(atomURI); err == nil && parent != nil {
			return parent
		}
	}
	return nil
}

// resolveConversation maps the declared conversation reference to a local
// Conversation row. A URI minted by this server is decoded back to its id;
// any other URI gets get-or-create semantics.
func resolveConversation(obj *ActivityObject, localDomain string, deps *InboxDeps) (*uuid.UUID, error) {
	uri := obj.ConversationURI()
	if uri == "" {
		return nil, nil
	}

	if id, ok := parseLocalConversationURI(uri, localDomain); ok {
		err, conv := deps.Database.ReadConversationById(id)
		if err != nil || conv == nil {
			// A tag URI claiming to be ours but naming an unknown id is
			// treated as opaque garbage, not an error
			return nil, nil
		}
		return &conv.Id, nil
	}

	err, conv := deps.Database.GetOrCreateConversationByURI(uri)
	if err != nil {
		return nil, err
	}
	return &conv.Id, nil
}

// parseLocalConversationURI recognizes conversation URIs this server minted
// in the ostatus tag form:
//
//	tag:example.com,2024-01-01:objectId=<uuid>:objectType=Conversation
func parseLocalConversationURI(uri string, localDomain string) (uuid.UUID, bool) {
	if !strings.HasPrefix(uri, "tag:"+localDomain+",") {
		return uuid.Nil, false
	}

	segments := strings.Split(uri, ":")
	var objectId string
	objectType := ""
	for _, segment := range segments {
		if v, ok := strings.CutPrefix(segment, "objectId="); ok {
			objectId = v
		}
		if v, ok := strings.CutPrefix(segment, "objectType="); ok {
			objectType = v
		}
	}
	if objectId == "" || objectType != "Conversation" {
		return uuid.Nil, false
	}

	id, err := uuid.Parse(objectId)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// LocalConversationURI mints the tag-form URI for a locally created
// conversation, the inverse of parseLocalConversationURI.
func LocalConversationURI(conv *domain.Conversation, localDomain string) string {
	if conv.URI != "" {
		return conv.URI
	}
	return "tag:" + localDomain + "," + conv.CreatedAt.Format("2006-01-02") +
		":objectId=" + conv.Id.String() + ":objectType=Conversation"
}
