package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"anagrambot/internal/anagram"
	"anagrambot/internal/anagram/repository"
	"anagrambot/internal/anagram/service"
	"anagrambot/internal/config"
	"anagrambot/internal/logger"
	"anagrambot/internal/mongo"
	"anagrambot/internal/notify"
	"anagrambot/internal/platform/tumblr"
	"anagrambot/internal/platform/twitter"
	"anagrambot/internal/web"
)

// App owns every long-lived service and its lifecycle.
type App struct {
	MongoDB    *mongo.Client
	Service    *service.Service
	Schedulers *anagram.Schedulers

	httpServer *http.Server
}

// New initializes the services in dependency order. Any failure aborts
// startup; nothing runs half-wired.
func New(cfg *config.Config) (*App, error) {
	app := &App{}

	mongoClient, err := mongo.NewClient(context.Background(), mongo.Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDBName,
	})
	if err != nil {
		return nil, fmt.Errorf("init MongoDB failed: %w", err)
	}
	app.MongoDB = mongoClient
	logger.L().Info("MongoDB initialized successfully")

	db := mongoClient.Database()
	matches := repository.NewMongoMatchRepository(db)
	tweets := repository.NewMongoTweetRepository(db)
	queue := repository.NewMongoQueueRepository(db)

	indexCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := queue.EnsureIndexes(indexCtx); err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init queue indexes failed: %w", err)
	}

	twitterClient, err := twitter.NewClient(cfg.Twitter)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init twitter client failed: %w", err)
	}

	tumblrClient, err := tumblr.NewClient(cfg.Tumblr)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init tumblr client failed: %w", err)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.TelegramToken != "" {
		telegramNotifier, err := notify.NewTelegramNotifier(cfg.Notify)
		if err != nil {
			app.Close(context.Background())
			return nil, fmt.Errorf("init telegram notifier failed: %w", err)
		}
		notifier = telegramNotifier
		logger.L().Info("Telegram notifier initialized")
	}

	app.Service = service.NewService(matches, tweets, queue, twitterClient, tumblrClient, notifier)
	app.Schedulers = anagram.NewSchedulers(app.Service, cfg.Tasks)

	handler := web.NewHandler(app.Service, matches, queue)
	app.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: web.NewRouter(handler),
	}

	return app, nil
}

// Start launches the schedulers and the review API. ListenAndServe blocks
// until Close shuts the server down.
func (a *App) Start() error {
	a.Schedulers.Start()

	logger.L().Infof("Review API listening on %s", a.httpServer.Addr)
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("review API failed: %w", err)
	}
	return nil
}

// Close shuts everything down in reverse order of startup.
func (a *App) Close(ctx context.Context) error {
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			logger.L().Errorf("Review API shutdown failed: %v", err)
		}
	}

	if a.Schedulers != nil {
		a.Schedulers.Stop()
	}

	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
