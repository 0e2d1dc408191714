package web

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/util"
)

// WellKnownNodeInfo represents the /.well-known/nodeinfo response
type WellKnownNodeInfo struct {
	Links []NodeInfoLink `json:"links"`
}

type NodeInfoLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// GetNodeInfo20 returns a NodeInfo 2.0 JSON response
// See: https://nodeinfo.diaspora.software/schema.html
func GetNodeInfo20(conf *util.AppConfig) string {
	database := db.GetDB()

	totalUsers, err := database.CountAccounts()
	if err != nil {
		log.Printf("Failed to count accounts: %v", err)
		totalUsers = 0
	}

	localPosts, err := database.CountLocalStatuses()
	if err != nil {
		log.Printf("Failed to count local statuses: %v", err)
		localPosts = 0
	}

	// Field order matters to some crawlers, so the document is built by hand
	return fmt.Sprintf(`{
  "version": "2.0",
  "software": {
    "name": "%s",
    "version": "%s"
  },
  "protocols": ["activitypub"],
  "services": {
    "outbound": [],
    "inbound": []
  },
  "usage": {
    "users": {
      "total": %d
    },
    "localPosts": %d
  },
  "openRegistrations": false,
  "metadata": {
    "nodeName": "%s"
  }
}`,
		util.Name,
		util.GetVersion(),
		totalUsers,
		localPosts,
		conf.Conf.Domain,
	)
}

// GetWellKnownNodeInfo returns the /.well-known/nodeinfo discovery document
func GetWellKnownNodeInfo(conf *util.AppConfig) string {
	wellKnown := WellKnownNodeInfo{
		Links: []NodeInfoLink{
			{
				Rel:  "http://nodeinfo.diaspora.software/ns/schema/2.0",
				Href: "https://" + conf.Conf.Domain + "/nodeinfo/2.0",
			},
		},
	}

	jsonBytes, err := json.Marshal(wellKnown)
	if err != nil {
		log.Printf("Failed to marshal well-known nodeinfo: %v", err)
		return "{}"
	}

	return string(jsonBytes)
}
