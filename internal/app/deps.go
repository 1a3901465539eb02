package app

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"convfinqa-eval/internal/cache"
	"convfinqa-eval/internal/config"
	"convfinqa-eval/internal/llm"
	"convfinqa-eval/internal/logger"
	"convfinqa-eval/internal/queue"
	"convfinqa-eval/internal/store"
)

// Deps bundles common runtime dependencies for services. Store and Queue are
// nil when their provider is "none".
type Deps struct {
	Config config.Config
	Log    *slog.Logger
	Store  store.Store
	Cache  cache.Cache
	Queue  queue.Queue
	LLM    llm.Client
}

// Close releases held connections. Safe on partially built deps.
func (d Deps) Close() {
	if d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			d.Log.Warn("failed to close cache", "err", err)
		}
	}
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			d.Log.Warn("failed to close store", "err", err)
		}
	}
}

// Build loads env, config, and every shared component for the eval CLI.
func Build() (Deps, error) {
	cfg, log, err := buildBase()
	if err != nil {
		return Deps{}, err
	}
	deps := Deps{Config: cfg, Log: log}

	if deps.Store, err = buildStore(cfg, log); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	if deps.Cache, err = buildCache(cfg, log); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if deps.Queue, err = buildQueue(cfg, log); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
	}
	if deps.LLM, err = buildLLM(cfg, log); err != nil {
		return Deps{}, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return deps, nil
}

// BuildWorker is Build plus the requirement that queue and store exist, since
// a worker without either can do nothing.
func BuildWorker() (Deps, error) {
	deps, err := Build()
	if err != nil {
		return Deps{}, err
	}
	if deps.Queue == nil {
		return Deps{}, fmt.Errorf("worker requires QUEUE_PROVIDER=nats")
	}
	if deps.Store == nil {
		return Deps{}, fmt.Errorf("worker requires STORE_PROVIDER=postgres")
	}
	return deps, nil
}

// BuildResults constructs only what the results service needs: config,
// logging, and the store.
func BuildResults() (Deps, error) {
	cfg, log, err := buildBase()
	if err != nil {
		return Deps{}, err
	}
	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	if st == nil {
		return Deps{}, fmt.Errorf("results service requires STORE_PROVIDER=postgres")
	}
	return Deps{Config: cfg, Log: log, Store: st}, nil
}

func buildBase() (config.Config, *slog.Logger, error) {
	// .env is a local-development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.AppEnv), nil
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		db, err := store.NewPostgres(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: postgres, none)", cfg.StoreProvider)
	}
}

func buildCache(cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "redis":
		c, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis answer cache", "addr", cfg.RedisAddr)
		return c, nil
	case "none":
		return cache.NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: redis, none)", cfg.CacheProvider)
	}
}

func buildQueue(cfg config.Config, log *slog.Logger) (queue.Queue, error) {
	switch cfg.QueueProvider {
	case "nats":
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS queue")
		return queue.NewNATS(log, nc), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: nats, none)", cfg.QueueProvider)
	}
}

func buildLLM(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		client, err := llm.NewOpenAIClient(log, cfg.OpenAIKey, openai.ChatModel(cfg.LLMModel), openai.ChatModel(cfg.JudgeModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
		}
		log.Info("using OpenAI LLM client", "model", cfg.LLMModel, "judge_model", cfg.JudgeModel)
		return client, nil
	case "stub":
		log.Warn("using stub LLM client; answers are canned")
		return llm.NewStub(), nil
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: openai, stub)", cfg.LLMProvider)
	}
}
