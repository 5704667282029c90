package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	StateDriver        string
	StatePath          string
	ProjectID          string
	ChannelsConfigPath string
	AssociateTag       string
	PollInterval       time.Duration
	DedupWindow        time.Duration
	FreeTierDelay      time.Duration
	SpamBlocklist      []string
	MaxEmojiCount      int
	MaxUppercaseRatio  float64
	TemplateSeed       int64
	PublishRatePerSec  float64
}

// Load reads configuration from the environment, with a .env file as an
// optional local-development convenience.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env file")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		slog.Info("Defaulting to port", "port", port)
	}

	stateDriver := strings.ToLower(os.Getenv("STATE_DRIVER"))
	if stateDriver == "" {
		stateDriver = "memory"
		slog.Warn("STATE_DRIVER not set, state will not survive restarts")
	}
	switch stateDriver {
	case "memory", "sqlite", "firestore":
	default:
		return nil, fmt.Errorf("invalid STATE_DRIVER %q: want memory, sqlite, or firestore", stateDriver)
	}

	statePath := os.Getenv("STATE_PATH")
	if stateDriver == "sqlite" && statePath == "" {
		statePath = "dispatch.db"
		slog.Info("Defaulting to state path", "path", statePath)
	}

	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if stateDriver == "firestore" && projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when STATE_DRIVER=firestore")
	}

	channelsPath := os.Getenv("CHANNELS_CONFIG_PATH")
	if channelsPath == "" {
		channelsPath = "config/channels.yaml"
	}

	associateTag := os.Getenv("ASSOCIATE_TAG")
	if associateTag == "" {
		slog.Warn("ASSOCIATE_TAG not set, links will pass through unmonetized")
	}

	pollInterval, err := durationEnv("POLL_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	dedupHours, err := intEnv("DEDUP_WINDOW_HOURS", 24)
	if err != nil {
		return nil, err
	}
	freeDelayMinutes, err := intEnv("FREE_TIER_DELAY_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	maxEmoji, err := intEnv("MAX_EMOJI_COUNT", 2)
	if err != nil {
		return nil, err
	}

	maxUpperRatio, err := floatEnv("MAX_UPPERCASE_RATIO", 0.5)
	if err != nil {
		return nil, err
	}
	publishRate, err := floatEnv("PUBLISH_RATE_PER_SEC", 1)
	if err != nil {
		return nil, err
	}

	templateSeed, err := int64Env("TEMPLATE_SEED", time.Now().UnixNano())
	if err != nil {
		return nil, err
	}

	var blocklist []string
	if v := os.Getenv("SPAM_BLOCKLIST"); v != "" {
		for _, phrase := range strings.Split(v, ",") {
			if phrase = strings.TrimSpace(phrase); phrase != "" {
				blocklist = append(blocklist, phrase)
			}
		}
	}

	return &Config{
		Port:               port,
		StateDriver:        stateDriver,
		StatePath:          statePath,
		ProjectID:          projectID,
		ChannelsConfigPath: channelsPath,
		AssociateTag:       associateTag,
		PollInterval:       pollInterval,
		DedupWindow:        time.Duration(dedupHours) * time.Hour,
		FreeTierDelay:      time.Duration(freeDelayMinutes) * time.Minute,
		SpamBlocklist:      blocklist,
		MaxEmojiCount:      maxEmoji,
		MaxUppercaseRatio:  maxUpperRatio,
		TemplateSeed:       templateSeed,
		PublishRatePerSec:  publishRate,
	}, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}
