package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Config holds all runtime configuration for the evaluation services.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development" validate:"oneof=development production"`
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Dataset
	DatasetPath string `env:"DATASET_PATH" envDefault:"data/train.json"`
	SampleSize  int    `env:"SAMPLE_SIZE" envDefault:"50" validate:"min=1"`
	SampleSeed  int64  `env:"SAMPLE_SEED" envDefault:"10"`

	// LLM
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openai" validate:"oneof=openai stub"`
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	LLMModel    string `env:"LLM_MODEL" envDefault:"gpt-4o"`
	JudgeModel  string `env:"JUDGE_MODEL" envDefault:"gpt-4o-mini"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"4" validate:"min=1,max=64"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"none" validate:"oneof=postgres none"`
	DBURL         string `env:"DB_URL"`

	// Cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"none" validate:"oneof=redis none"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheTTL      int    `env:"CACHE_TTL" envDefault:"86400"` // seconds

	// Queue
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none" validate:"oneof=nats none"`
	QueueURL      string `env:"QUEUE_URL"`
}

var validate = validator.New()

// Load parses configuration from environment variables and validates it.
// Providers that require a credential or endpoint fail here, not at first use.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints plus the cross-field requirements that
// struct tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.LLMProvider == "openai" && c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
	}
	if c.StoreProvider == "postgres" && c.DBURL == "" {
		return fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
	}
	if c.QueueProvider == "nats" && c.QueueURL == "" {
		return fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
	}
	return nil
}
