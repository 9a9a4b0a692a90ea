package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/validation"
	"github.com/joho/godotenv"
)

const (
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Upstream UpstreamConfig
	CORS     CORSConfig
	Quota    QuotaConfig
	Links    LinksConfig
	Store    StoreConfig
	Redis    RedisConfig
	MongoDB  MongoDBConfig
	Kafka    KafkaConfig
	OTel     OTelConfig
}

type AppConfig struct {
	Name     string `validate:"required,notblank"`
	Version  string
	Env      string `validate:"required,oneof=development staging production test"`
	LogLevel string `validate:"required,oneof=debug info warn error"`
}

type ServerConfig struct {
	Port      string `validate:"required,numeric"`
	Host      string
	AdminPort string `validate:"required,numeric"`

	// Zero means no timeout. Relayed completions can stream for minutes.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxBodyBytes int64 `validate:"gt=0"`
}

type UpstreamConfig struct {
	BaseURL string `validate:"required,http_url"`
	APIKey  string `validate:"required,notblank"`
	// Zero means the gateway imposes no timeout on upstream calls.
	Timeout         time.Duration
	BreakerFailures int `validate:"gte=0"`
	BreakerCooldown time.Duration
}

// ChatCompletionsURL is the endpoint raw chat bodies are relayed to.
func (u UpstreamConfig) ChatCompletionsURL() string {
	return strings.TrimRight(u.BaseURL, "/") + "/chat/completions"
}

type CORSConfig struct {
	FrontendOrigin string   `validate:"required,origin"`
	AllowedOrigins []string `validate:"dive,notblank"`
}

type QuotaConfig struct {
	DailyTokenLimit int64 `validate:"gte=0"`
	CounterTTL      time.Duration
}

type LinksConfig struct {
	TTL             time.Duration
	SlugLength      int    `validate:"gte=4,lte=32"`
	ShareBaseURL    string `validate:"required,http_url"`
	PrecomputeIntro bool
	IntroModel      string `validate:"required_if=PrecomputeIntro true"`
	IntroMaxTokens  int    `validate:"gte=0"`
}

type StoreConfig struct {
	Backend        string `validate:"required,oneof=redis mongo memory"`
	QuotaNamespace string `validate:"required,notblank"`
	LinkNamespace  string `validate:"required,notblank,nefield=QuotaNamespace"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
	PoolSize int `validate:"gte=0"`
}

type MongoDBConfig struct {
	URI      string
	Database string
}

type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	UsageTopic   string
	UsageGroupID string
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	frontendOrigin := GetEnv("FRONTEND_ORIGIN", "http://localhost:5173")

	cfg := &Config{
		App: AppConfig{
			Name:     GetEnv("APP_NAME", "llm-edge-gateway"),
			Version:  GetEnv("APP_VERSION", "0.1.0"),
			Env:      GetEnv("APP_ENV", "development"),
			LogLevel: strings.ToLower(GetEnv("LOG_LEVEL", "info")),
		},
		Server: ServerConfig{
			Port:         GetEnv("APP_PORT", "8080"),
			Host:         GetEnv("APP_HOST", "localhost"),
			AdminPort:    GetEnv("ADMIN_PORT", "9090"),
			ReadTimeout:  GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: GetEnvDuration("SERVER_WRITE_TIMEOUT", 0),
			IdleTimeout:  GetEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			MaxBodyBytes: GetEnvInt64("MAX_BODY_BYTES", 4<<20),
		},
		Upstream: UpstreamConfig{
			BaseURL:         GetEnv("UPSTREAM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:          GetEnv("UPSTREAM_API_KEY", ""),
			Timeout:         GetEnvDuration("UPSTREAM_TIMEOUT", 0),
			BreakerFailures: GetEnvInt("UPSTREAM_BREAKER_FAILURES", 5),
			BreakerCooldown: GetEnvDuration("UPSTREAM_BREAKER_COOLDOWN", 30*time.Second),
		},
		CORS: CORSConfig{
			FrontendOrigin: strings.TrimRight(frontendOrigin, "/"),
			AllowedOrigins: SplitCSV(GetEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		Quota: QuotaConfig{
			DailyTokenLimit: GetEnvInt64("DAILY_TOKEN_LIMIT", 100_000),
			CounterTTL:      GetEnvDuration("QUOTA_COUNTER_TTL", 48*time.Hour),
		},
		Links: LinksConfig{
			TTL:             time.Duration(GetEnvInt64("LINK_TTL_SECONDS", 30*24*60*60)) * time.Second,
			SlugLength:      GetEnvInt("SLUG_LENGTH", 8),
			ShareBaseURL:    GetEnv("LINK_SHARE_BASE_URL", frontendOrigin),
			PrecomputeIntro: GetEnvBool("LINK_PRECOMPUTE_INTRO", true),
			IntroModel:      GetEnv("LINK_INTRO_MODEL", "gpt-4o-mini"),
			IntroMaxTokens:  GetEnvInt("LINK_INTRO_MAX_TOKENS", 300),
		},
		Store: StoreConfig{
			Backend:        strings.ToLower(GetEnv("STORE_BACKEND", StoreRedis)),
			QuotaNamespace: GetEnv("QUOTA_NAMESPACE", "chat_quota"),
			LinkNamespace:  GetEnv("LINK_NAMESPACE", "negotiation_links"),
		},
		Redis: RedisConfig{
			Addr:     GetEnv("REDIS_ADDR", "localhost:6379"),
			Password: GetEnv("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
			PoolSize: GetEnvInt("REDIS_POOL_SIZE", 10),
		},
		MongoDB: MongoDBConfig{
			URI:      GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database: GetEnv("MONGODB_DATABASE", "llm_gateway"),
		},
		Kafka: KafkaConfig{
			Enabled:      GetEnvBool("KAFKA_ENABLED", false),
			Brokers:      SplitCSV(GetEnv("KAFKA_BROKERS", "localhost:9092")),
			UsageTopic:   GetEnv("KAFKA_USAGE_TOPIC", "usage.recorded"),
			UsageGroupID: GetEnv("KAFKA_USAGE_GROUP_ID", "usage-analytics"),
		},
		OTel: OTelConfig{
			Enabled:  GetEnvBool("OTEL_ENABLED", false),
			Endpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs struct-tag validation plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Links.TTL <= 0 {
		return fmt.Errorf("LINK_TTL_SECONDS must be > 0 (got %s)", c.Links.TTL)
	}
	if c.Quota.CounterTTL < 24*time.Hour {
		return fmt.Errorf("QUOTA_COUNTER_TTL must be at least 24h so a day's counter outlives the day (got %s)", c.Quota.CounterTTL)
	}
	if c.Upstream.BreakerFailures > 0 && c.Upstream.BreakerCooldown <= 0 {
		return fmt.Errorf("UPSTREAM_BREAKER_COOLDOWN must be > 0 when the breaker is enabled")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
		}
		if strings.TrimSpace(c.Kafka.UsageTopic) == "" {
			return fmt.Errorf("KAFKA_USAGE_TOPIC must not be empty")
		}
	}
	switch c.Store.Backend {
	case StoreRedis:
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("REDIS_ADDR must not be empty for the redis store")
		}
	case StoreMongo:
		if strings.TrimSpace(c.MongoDB.URI) == "" || strings.TrimSpace(c.MongoDB.Database) == "" {
			return fmt.Errorf("MONGODB_URI and MONGODB_DATABASE must be set for the mongo store")
		}
	}

	return nil
}
