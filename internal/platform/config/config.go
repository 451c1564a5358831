package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	BotID       int64
	BotUsername string

	PollThreshold      int
	PollCreationLimit  int
	PollCreationWindow time.Duration

	ParticipantCacheTTL time.Duration
	UserStaleness       time.Duration
	ChatStaleness       time.Duration

	OutboxTopic     string
	OutboxBatchSize int
	RelayInterval   time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "bobbot"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("OUTBOX_TOPIC")
	if topic == "" {
		topic = "chat-moderation.poll-events"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		BotID:       envInt64("BOT_ID", 0),
		BotUsername: os.Getenv("BOT_USERNAME"),

		PollThreshold:      envInt("POLL_THRESHOLD", 3),
		PollCreationLimit:  envInt("POLL_CREATION_LIMIT", 2),
		PollCreationWindow: envDuration("POLL_CREATION_WINDOW", 10*time.Minute),

		ParticipantCacheTTL: envDuration("PARTICIPANT_CACHE_TTL", 3*time.Minute),
		UserStaleness:       envDuration("USER_STALENESS", time.Minute),
		ChatStaleness:       envDuration("CHAT_STALENESS", 2*time.Minute),

		OutboxTopic:     topic,
		OutboxBatchSize: envInt("OUTBOX_BATCH_SIZE", 100),
		RelayInterval:   envDuration("RELAY_INTERVAL", 5*time.Second),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envInt64(name string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
