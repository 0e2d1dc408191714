package activitypub

import (
	"encoding/json"
	"sort"
	"time"
)

// ActivityEnvelope is the outer shape of an inbound activity. Object and
// Signature are kept raw: the object can be a string reference or an
// embedded document, and the LD signature is only ever forwarded verbatim.
type ActivityEnvelope struct {
	Context   json.RawMessage `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     json.RawMessage `json:"actor"`
	Object    json.RawMessage `json:"object"`
	Signature json.RawMessage `json:"signature,omitempty"`
}

// ActorURI returns the actor reference, whether given as a bare string or
// as an embedded object with an id.
func (e *ActivityEnvelope) ActorURI() string {
	return stringOrID(e.Actor)
}

// StringList decodes a JSON value that servers send either as a single
// string or as an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		// Mixed arrays (strings and objects) appear in the wild; keep
		// the string members and ignore the rest
		var raw []json.RawMessage
		if err2 := json.Unmarshal(data, &raw); err2 != nil {
			return err
		}
		for _, item := range raw {
			if s := stringOrID(item); s != "" {
				many = append(many, s)
			}
		}
	}
	*l = many
	return nil
}

// Contains reports whether the list holds the exact value.
func (l StringList) Contains(value string) bool {
	for _, v := range l {
		if v == value {
			return true
		}
	}
	return false
}

// TagEntry is one member of an object's tag array: a Hashtag, Mention or
// Emoji, discriminated by Type.
type TagEntry struct {
	Type    string     `json:"type"`
	Name    string     `json:"name"`
	Href    string     `json:"href,omitempty"`
	ID      string     `json:"id,omitempty"`
	Updated *time.Time `json:"updated,omitempty"`
	Icon    *IconEntry `json:"icon,omitempty"`
}

// IconEntry is the image reference carried by an Emoji tag.
type IconEntry struct {
	Type      string `json:"type,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	URL       string `json:"url"`
}

// AttachmentEntry is one declared media attachment.
type AttachmentEntry struct {
	Type      string          `json:"type"`
	MediaType string          `json:"mediaType,omitempty"`
	URL       json.RawMessage `json:"url"`
	Name      string          `json:"name,omitempty"`
}

// RemoteURL resolves the attachment's url field, which may be a string, a
// Link object or an array of either.
func (a *AttachmentEntry) RemoteURL() string {
	return hrefFromValue(a.URL)
}

// ActivityObject is the embedded object of a Create. All fields that
// servers express in more than one JSON shape are raw or list types.
type ActivityObject struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Content          string            `json:"content,omitempty"`
	ContentMap       map[string]string `json:"contentMap,omitempty"`
	Name             string            `json:"name,omitempty"`
	NameMap          map[string]string `json:"nameMap,omitempty"`
	Summary          string            `json:"summary,omitempty"`
	Sensitive        bool              `json:"sensitive,omitempty"`
	AttributedTo     json.RawMessage   `json:"attributedTo,omitempty"`
	InReplyTo        json.RawMessage   `json:"inReplyTo,omitempty"`
	InReplyToAtomURI string            `json:"inReplyToAtomUri,omitempty"`
	Conversation     string            `json:"conversation,omitempty"`
	Context          string            `json:"context,omitempty"`
	AtomURI          string            `json:"atomUri,omitempty"`
	Published        *time.Time        `json:"published,omitempty"`
	Updated          *time.Time        `json:"updated,omitempty"`
	URL              json.RawMessage   `json:"url,omitempty"`
	To               StringList        `json:"to,omitempty"`
	Cc               StringList        `json:"cc,omitempty"`
	Tag              []TagEntry        `json:"tag,omitempty"`
	Attachment       []AttachmentEntry `json:"attachment,omitempty"`
}

// InReplyToURI returns the reply target reference, string or embedded.
func (o *ActivityObject) InReplyToURI() string {
	return stringOrID(o.InReplyTo)
}

// PermalinkURL resolves the object's url field to a single href, preferring
// a text/html link when the field is an array of Link objects.
func (o *ActivityObject) PermalinkURL() string {
	return hrefFromValue(o.URL)
}

// ConversationURI returns the thread grouping reference, preferring the
// ostatus conversation field over the generic context.
func (o *ActivityObject) ConversationURI() string {
	if o.Conversation != "" {
		return o.Conversation
	}
	return o.Context
}

// FirstMapValue returns the value of the lexicographically first key of a
// language map, with its key. Servers put the author's language first, but
// JSON object order is not preserved, so smallest-key is used as the
// deterministic stand-in.
func FirstMapValue(m map[string]string) (key string, value string, ok bool) {
	if len(m) == 0 {
		return "", "", false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0], m[keys[0]], true
}

// stringOrID decodes a reference that is either a bare string or an object
// carrying an id. Anything else yields the empty string.
func stringOrID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

type linkEntry struct {
	Href      string `json:"href"`
	MediaType string `json:"mediaType,omitempty"`
}

// hrefFromValue resolves an ActivityStreams url value: a bare string, a
// Link object, or an array of either. For arrays of Link objects the
// text/html entry wins, matching how servers mark the permalink.
func hrefFromValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var link linkEntry
	if err := json.Unmarshal(raw, &link); err == nil && link.Href != "" {
		return link.Href
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	var fallback string
	for _, item := range items {
		var is string
		if err := json.Unmarshal(item, &is); err == nil {
			if fallback == "" {
				fallback = is
			}
			continue
		}
		var il linkEntry
		if err := json.Unmarshal(item, &il); err == nil && il.Href != "" {
			if il.MediaType == "text/html" {
				return il.Href
			}
			if fallback == "" {
				fallback = il.Href
			}
		}
	}
	return fallback
}
