package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":9090"`

	StorageDriver     string `envconfig:"STORAGE_DRIVER" default:"memory"`
	MongoURI          string `envconfig:"MONGO_URI"`
	MongoDB           string `envconfig:"MONGO_DB" default:"marketplace"`
	MongoTransactions bool   `envconfig:"MONGO_TRANSACTIONS" default:"false"`

	KafkaBrokers       []string        `envconfig:"KAFKA_BROKERS"`
	KafkaTopicPrefix   string          `envconfig:"KAFKA_TOPIC_PREFIX"`
	OutboxPollInterval time.Duration   `envconfig:"OUTBOX_POLL_INTERVAL" default:"500ms"`
	RetryBackoff       []time.Duration `envconfig:"RETRY_BACKOFF" default:"1s,5s,30s"`
	IdempotencyTTL     time.Duration   `envconfig:"IDEMP_TTL" default:"168h"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	SendRatePerMinute     int `envconfig:"SEND_RATE_PER_MINUTE" default:"60"`
	SendRateBurst         int `envconfig:"SEND_RATE_BURST" default:"10"`
	SearchConversationCap int `envconfig:"SEARCH_CONVERSATION_CAP" default:"200"`

	// ListingsFixtures points at a JSON file of listings seeded at startup.
	ListingsFixtures string `envconfig:"LISTINGS_FIXTURES"`
}

var ErrJWTSecretRequired = errors.New("config: JWT_SECRET is required")

// Load parses configuration from the current environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		if strings.Contains(err.Error(), "JWT_SECRET") {
			return Config{}, fmt.Errorf("%w: %v", ErrJWTSecretRequired, err)
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrJWTSecretRequired
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" {
			return fmt.Errorf("config: MONGO_URI is required when STORAGE_DRIVER=%s", DriverMongo)
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.SendRatePerMinute <= 0 || c.SendRateBurst <= 0 {
		return fmt.Errorf("config: SEND_RATE_PER_MINUTE and SEND_RATE_BURST must be positive")
	}
	if c.SearchConversationCap <= 0 {
		return fmt.Errorf("config: SEARCH_CONVERSATION_CAP must be positive")
	}
	return nil
}

func compact(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}
