package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type Config struct {
	LogMode     string `env:"LOG_MODE" envDefault:"development"`
	Environment string `env:"APP_ENV" envDefault:"local"`
	Version     string `env:"APP_VERSION" envDefault:"dev"`

	// HTTP
	Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
	IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxBodyBytes      int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"262144"`
	CORSOrigins       []string      `env:"CORS_ORIGINS" envSeparator:","`
	JWTSecretKey      string        `env:"JWT_SECRET_KEY"`

	// Store
	StoreDriver      string `env:"STORE_DRIVER" envDefault:"memory"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresName     string `env:"POSTGRES_NAME" envDefault:"haven"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"haven.db"`
	DBMaxOpenConns   int    `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns   int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	RedisAddr        string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`
	RedisNamespace   string `env:"REDIS_NAMESPACE" envDefault:"haven"`

	// Gates
	ChatRateMax       int           `env:"RATE_CHAT_MAX" envDefault:"30"`
	ChatRateWindow    time.Duration `env:"RATE_CHAT_WINDOW" envDefault:"60s"`
	GeneralRateMax    int           `env:"RATE_GENERAL_MAX" envDefault:"120"`
	GeneralRateWindow time.Duration `env:"RATE_GENERAL_WINDOW" envDefault:"60s"`
	MonthlyTokenLimit int64         `env:"MONTHLY_TOKEN_LIMIT" envDefault:"1000000"`
	BudgetWarnRatio   float64       `env:"BUDGET_WARNING_RATIO" envDefault:"0.8"`

	// Model engine
	EngineType        string        `env:"LLM_ENGINE" envDefault:"mock"`
	EngineBaseURL     string        `env:"LLM_BASE_URL"`
	EngineAPIKey      string        `env:"LLM_API_KEY"`
	ChatModel         string        `env:"LLM_CHAT_MODEL" envDefault:"gpt-4o-mini"`
	EmbedModel        string        `env:"LLM_EMBED_MODEL" envDefault:"text-embedding-3-small"`
	EngineTimeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`
	StreamTimeout     time.Duration `env:"LLM_STREAM_TIMEOUT" envDefault:"120s"`
	Temperature       float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens         int           `env:"LLM_MAX_TOKENS" envDefault:"800"`
	ConfidenceMinimum float64       `env:"CONFIDENCE_THRESHOLD" envDefault:"0.6"`
	HistoryTurns      int           `env:"HISTORY_TURNS" envDefault:"8"`

	// Retrieval
	RetrievalEnabled  bool          `env:"RETRIEVAL_ENABLED" envDefault:"true"`
	RetrievalLexical  float64       `env:"RETRIEVAL_WEIGHT_LEXICAL" envDefault:"0.4"`
	RetrievalDense    float64       `env:"RETRIEVAL_WEIGHT_DENSE" envDefault:"0.6"`
	RetrievalTopK     int           `env:"RETRIEVAL_TOP_K" envDefault:"3"`
	RetrievalRerank   bool          `env:"RETRIEVAL_RERANK" envDefault:"false"`
	RetrievalCategory string        `env:"RETRIEVAL_CATEGORY"`
	RetrievalTimeout  time.Duration `env:"RETRIEVAL_TIMEOUT" envDefault:"8s"`

	// Background work
	BackgroundTimeout     time.Duration `env:"BACKGROUND_TIMEOUT" envDefault:"10s"`
	BackgroundConcurrency int           `env:"BACKGROUND_CONCURRENCY" envDefault:"32"`

	// Observability
	MetricsEnabled  bool    `env:"METRICS_ENABLED" envDefault:"true"`
	CostInputPer1K  float64 `env:"LLM_COST_INPUT_PER_1K" envDefault:"0"`
	CostOutputPer1K float64 `env:"LLM_COST_OUTPUT_PER_1K" envDefault:"0"`
	OtelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OtelService     string  `env:"OTEL_SERVICE_NAME" envDefault:"haven"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelSampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1"`
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig(log *logger.Logger, files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if cfg.JWTSecretKey == "" && log != nil {
		log.Warn("JWT_SECRET_KEY not set; bearer tokens will be rejected")
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.StoreDriver) {
	case "memory", "postgres", "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch strings.ToLower(c.EngineType) {
	case "mock", "oai_http", "openai":
	default:
		return fmt.Errorf("unsupported LLM_ENGINE %q", c.EngineType)
	}
	if c.EngineType != "mock" && c.EngineAPIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required for engine %q", c.EngineType)
	}
	if c.ChatRateMax <= 0 || c.GeneralRateMax <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}
