package web

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/feeds"
	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/util"
)

const feedLimit = 50

// buildURL creates a public URL for a local path
func buildURL(conf *util.AppConfig, path string) string {
	if conf.Conf.Domain != "" {
		return fmt.Sprintf("https://%s%s", conf.Conf.Domain, path)
	}
	return fmt.Sprintf("http://%s:%d%s", conf.Conf.Host, conf.Conf.HttpPort, path)
}

// GetRSS renders the most recent public statuses as an RSS feed.
func GetRSS(conf *util.AppConfig) (string, error) {
	err, statuses := db.GetDB().ReadRecentPublicStatuses(feedLimit)
	if err != nil {
		log.Println("Could not get statuses!", err)
		return "", errors.New("error retrieving statuses")
	}

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("%s - public timeline", conf.Conf.Domain),
		Link:        &feeds.Link{Href: buildURL(conf, "/feed")},
		Description: "recent public statuses",
		Created:     time.Now(),
	}

	var feedItems []*feeds.Item
	if statuses != nil {
		for _, status := range *statuses {
			// Skip replies - only include top-level posts
			if status.InReplyToURI != "" {
				continue
			}
			link := status.URL
			if link == "" {
				link = status.URI
			}
			feedItems = append(feedItems,
				&feeds.Item{
					Id:      status.URI,
					Title:   status.CreatedAt.Format(time.RFC1123),
					Link:    &feeds.Link{Href: link},
					Content: status.Text,
					Created: status.CreatedAt,
				})
		}
	}

	feed.Items = feedItems
	return feed.ToRss()
}
