package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full application configuration, loaded from environment
// variables.
type Config struct {
	MongoURI    string
	MongoDBName string

	ListenAddr string // review API listen address

	Twitter TwitterConfig
	Tumblr  TumblrConfig
	Notify  NotifyConfig
	Tasks   TasksConfig
}

// TwitterConfig configures the amplification-platform client.
type TwitterConfig struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
	BaseURL           string // override for tests; defaults to the public API
	Timeout           time.Duration
}

// TumblrConfig configures the mirror-platform client.
type TumblrConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
	BlogName       string
	BaseURL        string
	Timeout        time.Duration
}

// NotifyConfig configures the operator alert channel. Both fields empty
// disables notifications.
type NotifyConfig struct {
	TelegramToken string
	ChatID        int64
}

// TasksConfig configures the background task cadence and batch sizes.
type TasksConfig struct {
	QueueDrainInterval time.Duration // dequeue one pending entry
	PruneInterval      time.Duration // stale tweet existence check
	PruneBatchSize     int
	ReconcileInterval  time.Duration // timeline desync sweep
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	mongoDBName := os.Getenv("MONGO_DB_NAME")
	if mongoDBName == "" {
		mongoDBName = "anagrambot"
	}

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":3000"
	}

	cfg := &Config{
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDBName: mongoDBName,
		ListenAddr:  listenAddr,
	}

	twitterCfg, err := loadTwitterConfig()
	if err != nil {
		return nil, err
	}
	cfg.Twitter = twitterCfg

	tumblrCfg, err := loadTumblrConfig()
	if err != nil {
		return nil, err
	}
	cfg.Tumblr = tumblrCfg

	notifyCfg, err := loadNotifyConfig()
	if err != nil {
		return nil, err
	}
	cfg.Notify = notifyCfg

	tasksCfg, err := loadTasksConfig()
	if err != nil {
		return nil, err
	}
	cfg.Tasks = tasksCfg

	return cfg, nil
}

func loadTwitterConfig() (TwitterConfig, error) {
	cfg := TwitterConfig{
		ConsumerKey:       strings.TrimSpace(os.Getenv("TWITTER_CONSUMER_KEY")),
		ConsumerSecret:    strings.TrimSpace(os.Getenv("TWITTER_CONSUMER_SECRET")),
		AccessToken:       strings.TrimSpace(os.Getenv("TWITTER_ACCESS_TOKEN")),
		AccessTokenSecret: strings.TrimSpace(os.Getenv("TWITTER_ACCESS_TOKEN_SECRET")),
		BaseURL:           strings.TrimSpace(os.Getenv("TWITTER_BASE_URL")),
	}

	timeout, err := secondsFromEnv("TWITTER_TIMEOUT_SECONDS", 10*time.Second)
	if err != nil {
		return TwitterConfig{}, err
	}
	cfg.Timeout = timeout

	return cfg, nil
}

func loadTumblrConfig() (TumblrConfig, error) {
	blogName := strings.TrimSpace(os.Getenv("TUMBLR_BLOG_NAME"))
	if blogName == "" {
		blogName = "anagrammatweest"
	}

	cfg := TumblrConfig{
		ConsumerKey:    strings.TrimSpace(os.Getenv("TUMBLR_CONSUMER_KEY")),
		ConsumerSecret: strings.TrimSpace(os.Getenv("TUMBLR_CONSUMER_SECRET")),
		Token:          strings.TrimSpace(os.Getenv("TUMBLR_ACCESS_TOKEN")),
		TokenSecret:    strings.TrimSpace(os.Getenv("TUMBLR_ACCESS_TOKEN_SECRET")),
		BlogName:       blogName,
		BaseURL:        strings.TrimSpace(os.Getenv("TUMBLR_BASE_URL")),
	}

	timeout, err := secondsFromEnv("TUMBLR_TIMEOUT_SECONDS", 10*time.Second)
	if err != nil {
		return TumblrConfig{}, err
	}
	cfg.Timeout = timeout

	return cfg, nil
}

func loadNotifyConfig() (NotifyConfig, error) {
	cfg := NotifyConfig{
		TelegramToken: strings.TrimSpace(os.Getenv("NOTIFY_TELEGRAM_TOKEN")),
	}

	chatIDStr := strings.TrimSpace(os.Getenv("NOTIFY_TELEGRAM_CHAT_ID"))
	if chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return NotifyConfig{}, fmt.Errorf("failed to parse NOTIFY_TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.ChatID = chatID
	}

	if cfg.TelegramToken != "" && cfg.ChatID == 0 {
		return NotifyConfig{}, fmt.Errorf("NOTIFY_TELEGRAM_CHAT_ID is required when NOTIFY_TELEGRAM_TOKEN is set")
	}

	return cfg, nil
}

func loadTasksConfig() (TasksConfig, error) {
	cfg := TasksConfig{}

	drain, err := minutesFromEnv("QUEUE_DRAIN_INTERVAL_MINUTES", 5*time.Minute)
	if err != nil {
		return TasksConfig{}, err
	}
	cfg.QueueDrainInterval = drain

	prune, err := minutesFromEnv("PRUNE_INTERVAL_MINUTES", time.Hour)
	if err != nil {
		return TasksConfig{}, err
	}
	cfg.PruneInterval = prune

	reconcile, err := minutesFromEnv("RECONCILE_INTERVAL_MINUTES", 6*time.Hour)
	if err != nil {
		return TasksConfig{}, err
	}
	cfg.ReconcileInterval = reconcile

	batchStr := strings.TrimSpace(os.Getenv("PRUNE_BATCH_SIZE"))
	if batchStr == "" {
		cfg.PruneBatchSize = 59
	} else {
		batch, err := strconv.Atoi(batchStr)
		if err != nil {
			return TasksConfig{}, fmt.Errorf("failed to parse PRUNE_BATCH_SIZE: %w", err)
		}
		if batch < 1 {
			return TasksConfig{}, fmt.Errorf("PRUNE_BATCH_SIZE must be >= 1, got %d", batch)
		}
		cfg.PruneBatchSize = batch
	}

	return cfg, nil
}

func minutesFromEnv(key string, def time.Duration) (time.Duration, error) {
	return unitFromEnv(key, def, time.Minute)
}

func secondsFromEnv(key string, def time.Duration) (time.Duration, error) {
	return unitFromEnv(key, def, time.Second)
}

// unitFromEnv parses a positive integer count of unit from the environment,
// falling back to def when unset.
func unitFromEnv(key string, def, unit time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return time.Duration(n) * unit, nil
}
