package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samanthaghraves/mastodon/activitypub"
	"github.com/samanthaghraves/mastodon/db"
	"github.com/samanthaghraves/mastodon/util"
	"github.com/samanthaghraves/mastodon/web"
)

// App represents the main application with its server and dependencies
type App struct {
	config     *util.AppConfig
	httpServer *http.Server
	done       chan os.Signal
}

// New creates a new App instance with the given configuration
func New(conf *util.AppConfig) (*App, error) {
	return &App{
		config: conf,
		done:   make(chan os.Signal, 1),
	}, nil
}

// Initialize sets up the database and the HTTP server
func (a *App) Initialize() error {
	// Opening the database runs migrations
	log.Println("Opening database...")
	database := db.GetDB()
	log.Println("Database ready")

	// The instance needs at least one local account to answer actor
	// lookups and to sign forwarded replies
	if count, err := database.CountAccounts(); err == nil && count == 0 {
		log.Println("No local accounts found, creating default account 'admin'")
		if err, _ := database.CreateAccount("admin", util.GeneratePemKeypair()); err != nil {
			return fmt.Errorf("failed to create default account: %w", err)
		}
	}

	router, err := web.Router(a.config)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP router: %w", err)
	}

	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.config.Conf.Host, a.config.Conf.HttpPort),
		Handler: router,
	}

	return nil
}

// Start starts the server and blocks until a shutdown signal is received
func (a *App) Start() error {
	// Background worker drains the federation task queue
	activitypub.StartTaskWorker(a.config, activitypub.DefaultDeps(a.config))

	signal.Notify(a.done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("Starting HTTP server on %s:%d", a.config.Conf.Host, a.config.Conf.HttpPort)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-a.done
	log.Println("Shutdown signal received")

	return a.Shutdown()
}

// Shutdown gracefully stops the server with a 30 second timeout
func (a *App) Shutdown() error {
	log.Println("Initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server stopped gracefully")
	return nil
}
