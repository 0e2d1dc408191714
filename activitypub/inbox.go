package activitypub

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/samanthaghraves/mastodon/domain"
	"github.com/samanthaghraves/mastodon/util"
)

// maxBodySize caps an inbound activity at 1MB to prevent DoS
const maxBodySize = 1 * 1024 * 1024

// HandleInbox processes incoming ActivityPub activities
func HandleInbox(w http.ResponseWriter, r *http.Request, conf *util.AppConfig) {
	HandleInboxWithDeps(w, r, conf, DefaultDeps(conf))
}

// HandleInboxWithDeps processes incoming ActivityPub activities.
// This version accepts dependencies for testing.
func HandleInboxWithDeps(w http.ResponseWriter, r *http.Request, conf *util.AppConfig, deps *InboxDeps) {
	// Verify HTTP signature presence before doing any work
	if r.Header.Get("Signature") == "" {
		log.Printf("Inbox: Missing HTTP signature")
		http.Error(w, "Missing signature", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Printf("Inbox: Failed to read body: %v", err)
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == maxBodySize {
		log.Printf("Inbox: Request body too large")
		http.Error(w, "Request too large", http.StatusRequestEntityTooLarge)
		return
	}

	var envelope ActivityEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("Inbox: Failed to parse activity: %v", err)
		http.Error(w, "Invalid activity", http.StatusBadRequest)
		return
	}

	actorURI := envelope.ActorURI()
	if actorURI == "" {
		http.Error(w, "Activity missing actor", http.StatusBadRequest)
		return
	}

	log.Printf("Inbox: Received %s from %s", envelope.Type, actorURI)

	// Fetch remote actor to verify and cache
	sender, err := GetOrFetchAccountWithDeps(actorURI, deps)
	if err != nil {
		log.Printf("Inbox: Failed to fetch actor %s: %v", actorURI, err)
		http.Error(w, "Failed to verify actor", http.StatusBadRequest)
		return
	}

	// Restore body for signature verification (body was consumed during read)
	r.Body = io.NopCloser(bytes.NewReader(body))

	// Verify HTTP signature with actor's public key
	if _, err := VerifyRequest(r, sender.PublicKeyPem); err != nil {
		log.Printf("Inbox: Signature verification failed: %v", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	switch envelope.Type {
	case "Create":
		if _, err := ProcessCreateWithDeps(body, sender, conf, deps); err != nil {
			log.Printf("Inbox: Failed to handle Create: %v", err)
			http.Error(w, "Failed to process Create", http.StatusInternalServerError)
			return
		}
	case "Delete":
		if err := handleDeleteActivityWithDeps(&envelope, sender, deps); err != nil {
			log.Printf("Inbox: Failed to handle Delete: %v", err)
			http.Error(w, "Failed to process Delete", http.StatusInternalServerError)
			return
		}
	default:
		log.Printf("Inbox: Unsupported activity type: %s", envelope.Type)
	}

	// Return 202 Accepted
	w.WriteHeader(http.StatusAccepted)
}

// handleDeleteActivityWithDeps records a tombstone for the deleted object
// so that an out-of-order Create arriving later is dropped. Removal of
// already-materialized content is handled elsewhere.
func handleDeleteActivityWithDeps(envelope *ActivityEnvelope, sender *domain.RemoteAccount, deps *InboxDeps) error {
	objectURI := stringOrID(envelope.Object)
	if objectURI == "" {
		return nil
	}
	if !util.SameOrigin(objectURI, sender.ActorURI) {
		log.Printf("Inbox: Rejecting Delete for %s from %s (origin mismatch)", objectURI, sender.ActorURI)
		return nil
	}
	return deps.Database.CreateTombstone(objectURI)
}
