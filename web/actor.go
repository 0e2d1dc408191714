package web

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/util"
)

type action uint

const (
	id action = iota
	inbox
	followers
	sharedInbox
)

func GetActor(actor string, conf *util.AppConfig) (error, string) {
	err, acc := db.GetDB().ReadAccByUsername(actor)
	if err != nil {
		return err, "{}"
	}

	username := acc.Username
	pubKey := strings.ReplaceAll(acc.WebPublicKey, "\n", "\\n")

	// Use DisplayName if available, otherwise use username
	displayName := acc.DisplayName
	if displayName == "" {
		displayName = username
	}

	// Escape any quotes in summary for JSON
	summary := strings.ReplaceAll(acc.Summary, "\"", "\\\"")
	summary = strings.ReplaceAll(summary, "\n", "\\n")

	return nil, fmt.Sprintf(
		`{
					"@context": [
						"https://www.w3.org/ns/activitystreams",
						"https://w3id.org/security/v1"
					],

					"id": "%s",
					"type": "Person",
					"preferredUsername": "%s",
					"name" : "%s",
					"summary": "%s",
					"inbox": "%s",
					"followers": "%s",
					"url": "%s",
  					"manuallyApprovesFollowers": false,
					"discoverable": true,
  					"endpoints": {
    					"sharedInbox": "%s"
  					},
					"publicKey": {
						"id": "%s#main-key",
						"owner": "%s",
						"publicKeyPem": "%s"
					}
				}`,
		getIRI(conf.Conf.Domain, username, id),
		username, displayName, summary,
		getIRI(conf.Conf.Domain, username, inbox),
		getIRI(conf.Conf.Domain, username, followers),
		getIRI(conf.Conf.Domain, username, id),
		getIRI(conf.Conf.Domain, username, sharedInbox),
		getIRI(conf.Conf.Domain, username, id),
		getIRI(conf.Conf.Domain, username, id), pubKey)
}

func getIRI(domain string, username string, action action) string {

	prefix := fmt.Sprintf("https://%s/users/%s", domain, username)
	switch action {
	case inbox:
		return fmt.Sprintf("%s/inbox", prefix)
	case followers:
		return fmt.Sprintf("%s/followers", prefix)
	case id:
		return prefix
	case sharedInbox:
		return fmt.Sprintf("https://%s/inbox", domain)
	default:
		return ""
	}
}

// GetFollowersCollection returns an ActivityPub OrderedCollection of followers
// Always uses paging for compatibility with Mastodon and other servers
func GetFollowersCollection(actor string, conf *util.AppConfig, followerURIs []string) string {
	collectionURI := fmt.Sprintf("https://%s/users/%s/followers", conf.Conf.Domain, actor)

	collection := map[string]any{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         collectionURI,
		"type":       "OrderedCollection",
		"totalItems": len(followerURIs),
		"first":      fmt.Sprintf("%s?page=1", collectionURI),
	}

	jsonBytes, err := json.Marshal(collection)
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

// GetFollowersPage returns an OrderedCollectionPage for followers
func GetFollowersPage(actor string, conf *util.AppConfig, followerURIs []string, page int) string {
	collectionURI := fmt.Sprintf("https://%s/users/%s/followers", conf.Conf.Domain, actor)
	pageURI := fmt.Sprintf("%s?page=%d", collectionURI, page)

	collectionPage := map[string]any{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           pageURI,
		"type":         "OrderedCollectionPage",
		"partOf":       collectionURI,
		"orderedItems": followerURIs,
		"totalItems":   len(followerURIs),
	}

	jsonBytes, err := json.Marshal(collectionPage)
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}
