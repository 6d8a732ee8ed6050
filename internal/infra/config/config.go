package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "autoparc-dev-secret-change-me"

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env           string
	HTTPAddr      string
	PublicBaseURL string
	CORSOrigins   []string

	// StorageMode selects the repositories: "memory" or "durable"
	// (mongo + postgres + scylla).
	StorageMode    string
	MongoURI       string
	MongoDB        string
	PostgresDSN    string
	ScyllaHosts    []string
	ScyllaKeyspace string
	ScyllaTimeout  time.Duration

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	// ImageStore is "memory", "s3" or "cloudinary". Reports always go to
	// object storage ("memory" or "s3").
	ImageStore       string
	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3ImagesBucket   string
	S3ReportsBucket  string
	S3UseSSL         bool
	CloudinaryURL    string
	CloudinaryFolder string

	JWTSecret            string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	BcryptCost           int
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses configuration from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:              strings.ToLower(getEnv("APP_ENV", "dev")),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		PublicBaseURL:    strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		StorageMode:      strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "autoparc"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		ScyllaKeyspace:   getEnv("SCYLLA_KEYSPACE", "autoparc_chat"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", ""),
		ImageStore:       strings.ToLower(getEnv("IMAGE_STORE", "memory")),
		S3Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3PublicEndpoint: getEnv("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      getEnv("S3_SECRET_KEY", "minioadmin"),
		S3ImagesBucket:   getEnv("S3_IMAGES_BUCKET", "listing-images"),
		S3ReportsBucket:  getEnv("S3_REPORTS_BUCKET", "expertise-reports"),
		CloudinaryURL:    os.Getenv("CLOUDINARY_URL"),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "autoparc"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
	}
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))
	cfg.ScyllaHosts = splitList(os.Getenv("SCYLLA_HOSTS"))
	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))

	var err error
	if cfg.ScyllaTimeout, err = parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SessionSweepInterval, err = parseDurationEnv("SESSION_SWEEP_INTERVAL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if cfg.BcryptCost, err = parseIntEnv("BCRYPT_COST", 0); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	if cfg.KafkaGroupID == "" {
		cfg.KafkaGroupID = cfg.KafkaTopicPrefix + "autoparc-realtime"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageMode {
	case "memory":
	case "durable":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required in durable mode")
		}
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required in durable mode")
		}
		if len(c.ScyllaHosts) == 0 {
			return fmt.Errorf("SCYLLA_HOSTS is required in durable mode")
		}
	default:
		return fmt.Errorf("invalid STORAGE_MODE %q", c.StorageMode)
	}
	switch c.ImageStore {
	case "memory", "s3":
	case "cloudinary":
		if c.CloudinaryURL == "" {
			return fmt.Errorf("CLOUDINARY_URL is required when IMAGE_STORE=cloudinary")
		}
	default:
		return fmt.Errorf("invalid IMAGE_STORE %q", c.ImageStore)
	}
	if c.JWTSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("JWT_SECRET is required outside dev")
		}
		c.JWTSecret = devJWTSecret
	}
	return nil
}

func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "local" || c.Env == "test"
}

// UsesS3 reports whether any bucket lives in S3-compatible storage.
func (c Config) UsesS3() bool {
	return c.ImageStore == "s3" || c.StorageMode == "durable"
}

// RealtimeTopic carries change events between API instances.
func (c Config) RealtimeTopic() string {
	return c.KafkaTopicPrefix + "autoparc.realtime"
}

// DomainEventsTopic receives outbox records.
func (c Config) DomainEventsTopic() string {
	return c.KafkaTopicPrefix + "autoparc.domain-events"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
