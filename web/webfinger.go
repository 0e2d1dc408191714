package web

import (
	"fmt"

	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/util"
)

// GetWebfinger resolves a local account name to its actor document link.
func GetWebfinger(username string, conf *util.AppConfig) (error, string) {
	err, acc := db.GetDB().ReadAccByUsername(username)
	if err != nil {
		return err, GetWebFingerNotFound()
	}

	actorURI := fmt.Sprintf("https://%s/users/%s", conf.Conf.Domain, acc.Username)

	return nil, fmt.Sprintf(
		`{
				"subject": "acct:%s@%s",
				"links": [
					{
						"rel": "self",
						"type": "application/activity+json",
						"href": "%s"
					}
				]
			}`,
		acc.Username, conf.Conf.Domain, actorURI)
}

func GetWebFingerNotFound() string {
	return `{"error": "not found"}`
}
