package web

import (
	"fmt"
	"log"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/samanthaghraves/mastodon/activitypub"
	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/util"
	"golang.org/x/time/rate"
)

// Router builds the HTTP engine. The caller owns the listener so that
// shutdown can drain in-flight inbox deliveries.
func Router(conf *util.AppConfig) (*gin.Engine, error) {
	// Set Gin to use the same log writer as the rest of the application
	gin.DefaultWriter = util.GetLogWriter()
	gin.DefaultErrorWriter = util.GetLogWriter()

	g := gin.Default()
	g.Use(gzip.Gzip(gzip.DefaultCompression))

	// Downloaded remote media is served straight from storage
	g.Static("/media", conf.Conf.MediaDir)

	// Global rate limiter: 10 requests per second per IP, burst of 20
	globalLimiter := NewRateLimiter(rate.Limit(10), 20)
	g.Use(RateLimitMiddleware(globalLimiter))

	// Stricter rate limit for ActivityPub endpoints: 5 req/sec per IP
	apLimiter := NewRateLimiter(rate.Limit(5), 10)

	// Max 1MB request body size for ActivityPub activities
	maxBodySize := MaxBytesMiddleware(1 * 1024 * 1024) // 1MB

	g.GET("/users/:actor", func(c *gin.Context) {
		c.Header("Content-Type", "application/activity+json; charset=utf-8")
		err, actor := GetActor(c.Param("actor"), conf)
		if err != nil {
			c.Render(404, render.String{Format: actor})
		} else {
			c.Render(200, render.String{Format: actor})
		}
	})

	g.POST("/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		log.Println("POST /inbox (shared inbox)")
		activitypub.HandleInbox(c.Writer, c.Request, conf)
	})

	g.POST("/users/:actor/inbox", RateLimitMiddleware(apLimiter), maxBodySize, func(c *gin.Context) {
		log.Printf("POST /users/%s/inbox", c.Param("actor"))
		activitypub.HandleInbox(c.Writer, c.Request, conf)
	})

	g.GET("/users/:actor/followers", func(c *gin.Context) {
		actor := c.Param("actor")
		page := c.Query("page")
		c.Header("Content-Type", "application/activity+json; charset=utf-8")

		database := db.GetDB()
		err, account := database.ReadAccByUsername(actor)
		if err != nil {
			c.Render(404, render.String{Format: "{}"})
			return
		}

		err, followers := database.ReadFollowersByAccountId(account.Id)
		if err != nil {
			c.Render(200, render.String{Format: GetFollowersCollection(actor, conf, []string{})})
			return
		}

		followerURIs := []string{}
		if followers != nil {
			for _, follower := range *followers {
				err, remoteActor := database.ReadRemoteAccountById(follower.AccountId)
				if err == nil && remoteActor != nil {
					followerURIs = append(followerURIs, remoteActor.ActorURI)
					continue
				}
				err, localAcc := database.ReadAccById(follower.AccountId)
				if err == nil && localAcc != nil {
					followerURIs = append(followerURIs, fmt.Sprintf("https://%s/users/%s", conf.Conf.Domain, localAcc.Username))
				}
			}
		}

		if page != "" {
			c.Render(200, render.String{Format: GetFollowersPage(actor, conf, followerURIs, 1)})
		} else {
			c.Render(200, render.String{Format: GetFollowersCollection(actor, conf, followerURIs)})
		}
	})

	g.GET("/.well-known/webfinger", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")

		resource := c.Query("resource")
		if resource == "" || !strings.HasPrefix(resource, "acct:") {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
			return
		}
		resource = strings.TrimPrefix(resource, "acct:")
		resource = strings.TrimSuffix(resource, fmt.Sprintf("@%s", conf.Conf.Domain))
		err, resp := GetWebfinger(resource, conf)
		if err != nil {
			c.Render(404, render.String{Format: GetWebFingerNotFound()})
		} else {
			c.Render(200, render.String{Format: resp})
		}
	})

	// NodeInfo endpoints for server discovery and statistics
	g.GET("/.well-known/nodeinfo", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetWellKnownNodeInfo(conf)})
	})

	g.GET("/nodeinfo/2.0", func(c *gin.Context) {
		c.Header("Content-Type", "application/json; charset=utf-8")
		c.Render(200, render.String{Format: GetNodeInfo20(conf)})
	})

	// RSS feed of recent public statuses
	g.GET("/feed", func(c *gin.Context) {
		c.Header("Content-Type", "application/xml; charset=utf-8")
		rss, err := GetRSS(conf)
		if err != nil {
			c.Render(404, render.String{Format: ""})
		} else {
			c.Render(200, render.String{Format: rss})
		}
	})

	return g, nil
}
