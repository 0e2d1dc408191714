package activitypub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/samanthaghraves/mastodon/domain"
	"golang.org/x/time/rate"
)

// fetchLimiter throttles outbound actor lookups so that a burst of
// mention-heavy activities cannot hammer a single remote server.
var fetchLimiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 5)

// ActorResponse represents the JSON structure of an ActivityPub actor
type ActorResponse struct {
	Context           json.RawMessage `json:"@context"`
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	PreferredUsername string          `json:"preferredUsername"`
	Name              string          `json:"name"`
	Summary           string          `json:"summary"`
	Inbox             string          `json:"inbox"`
	Outbox            string          `json:"outbox"`
	Followers         string          `json:"followers"`
	Endpoints         struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	Icon struct {
		Type      string `json:"type"`
		MediaType string `json:"mediaType"`
		URL       string `json:"url"`
	} `json:"icon"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// FetchRemoteAccountWithDeps fetches an actor document from a remote server
// and stores it in the remote account cache.
func FetchRemoteAccountWithDeps(actorURI string, deps *InboxDeps) (*domain.RemoteAccount, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fetchLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("actor fetch rate limited: %w", err)
	}

	req, err := http.NewRequest("GET", actorURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("User-Agent", "mastodon/1.0 ActivityPub")

	resp, err := deps.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("actor fetch failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var actor ActorResponse
	if err := json.Unmarshal(body, &actor); err != nil {
		return nil, fmt.Errorf("failed to parse actor JSON: %w", err)
	}

	if actor.ID == "" || actor.Inbox == "" || actor.PublicKey.PublicKeyPem == "" {
		return nil, fmt.Errorf("actor missing required fields")
	}

	domainName, err := extractDomain(actor.ID)
	if err != nil {
		return nil, err
	}

	remoteAcc := &domain.RemoteAccount{
		Id:             uuid.New(),
		Username:       actor.PreferredUsername,
		Domain:         domainName,
		ActorURI:       actor.ID,
		DisplayName:    actor.Name,
		Summary:        actor.Summary,
		InboxURI:       actor.Inbox,
		SharedInboxURI: actor.Endpoints.SharedInbox,
		OutboxURI:      actor.Outbox,
		FollowersURI:   actor.Followers,
		PublicKeyPem:   actor.PublicKey.PublicKeyPem,
		AvatarURL:      actor.Icon.URL,
		LastFetchedAt:  time.Now(),
	}

	err = deps.Database.CreateRemoteAccount(remoteAcc)
	if err != nil {
		// If already exists, try to update
		err = deps.Database.UpdateRemoteAccount(remoteAcc)
		if err != nil {
			return nil, fmt.Errorf("failed to store remote account: %w", err)
		}
		// Keep the cached row's identity
		if err2, cached := deps.Database.ReadRemoteAccountByActorURI(actor.ID); err2 == nil && cached != nil {
			return cached, nil
		}
	}

	return remoteAcc, nil
}

// GetOrFetchAccountWithDeps returns the actor from cache, fetching it when
// not cached or when the cached copy is older than a day.
func GetOrFetchAccountWithDeps(actorURI string, deps *InboxDeps) (*domain.RemoteAccount, error) {
	err, cached := deps.Database.ReadRemoteAccountByActorURI(actorURI)
	if err == nil && cached != nil {
		if time.Since(cached.LastFetchedAt) < 24*time.Hour {
			return cached, nil
		}
	}

	fetched, ferr := FetchRemoteAccountWithDeps(actorURI, deps)
	if ferr != nil {
		// A stale cache entry still beats no account at all
		if cached != nil {
			return cached, nil
		}
		return nil, ferr
	}
	return fetched, nil
}

// extractDomain extracts the domain from an actor URI
// Example: "https://mastodon.social/users/alice" -> "mastodon.social"
func extractDomain(actorURI string) (string, error) {
	parsed, err := url.Parse(actorURI)
	if err != nil {
		return "", fmt.Errorf("invalid actor URI: %w", err)
	}

	return parsed.Host, nil
}
