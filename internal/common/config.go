package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	TextLayer TextLayerConfig
	LLM       LLMConfig
	Catalog   CatalogConfig
	Pricing   PricingConfig
	Progress  ProgressConfig
	Ingest    IngestConfig
}

// DatabaseConfig holds database-related configuration.
// A DSN starting with "sqlite:" or "file:" selects the embedded sqlite driver.
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string
	MetricsAddr string
}

// TextLayerConfig controls the text-layer probe
type TextLayerConfig struct {
	Pdftotext     string
	MinTextChars  int
	MinChunkChars int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider     string
	Model        string
	APIKey       string
	GeminiModel  string
	GeminiAPIKey string
	Temperature  float32
	Timeout      time.Duration
	RatePerSec   float64
	Burst        int

	// parallel dimensional-inference calls; 1 keeps them sequential
	InferenceConcurrency int
}

// CatalogConfig points at the price book to index on startup
type CatalogConfig struct {
	Path           string
	EmbeddingModel string
	PersistDir     string
}

// PricingConfig holds pricing-engine knobs
type PricingConfig struct {
	ConfigPath string
	Verify     bool
	BatchSize  int
}

// ProgressConfig holds the progress sink settings
type ProgressConfig struct {
	NATSURL       string
	SubjectPrefix string
}

// IngestConfig holds inbox/background processing settings
type IngestConfig struct {
	InboxDir       string
	ExportDir      string
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	Debounce       time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:    getEnv("GRPC_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		TextLayer: TextLayerConfig{
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
			MinTextChars:  getEnvAsInt("TEXT_LAYER_MIN_CHARS", 500),
			MinChunkChars: getEnvAsInt("MIN_CHUNK_CHARS", 50),
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			Temperature:  getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:      getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			RatePerSec:   getEnvAsFloat64("LLM_RATE_PER_SEC", 5),
			Burst:        getEnvAsInt("LLM_BURST", 5),

			InferenceConcurrency: getEnvAsInt("INFERENCE_CONCURRENCY", 1),
		},
		Catalog: CatalogConfig{
			Path:           getEnv("CATALOG_PATH", ""),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			PersistDir:     getEnv("CATALOG_DIR", ""),
		},
		Pricing: PricingConfig{
			ConfigPath: getEnv("PRICING_CONFIG", ""),
			Verify:     getEnvAsBool("PRICING_VERIFY", true),
			BatchSize:  getEnvAsInt("PRICING_BATCH_SIZE", 5),
		},
		Progress: ProgressConfig{
			NATSURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("PROGRESS_SUBJECT_PREFIX", "budget.progress"),
		},
		Ingest: IngestConfig{
			InboxDir:       getEnv("INBOX_DIR", ""),
			ExportDir:      getEnv("EXPORT_DIR", "./exports"),
			Workers:        getEnvAsInt("QUEUE_WORKERS", 2),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 20*time.Minute),
			Debounce:       getEnvAsDuration("INBOX_DEBOUNCE", 500*time.Millisecond),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", "LLM_PROVIDER must be openai or gemini", ErrInvalidInput)
	}
	if c.TextLayer.MinTextChars <= 0 || c.TextLayer.MinChunkChars < 0 {
		return NewAppError("CONFIG_ERROR", "text layer thresholds must be positive", ErrInvalidInput)
	}
	if c.Pricing.BatchSize <= 0 {
		return NewAppError("CONFIG_ERROR", "PRICING_BATCH_SIZE must be positive", ErrInvalidInput)
	}
	return nil
}

// ValidateServer adds the checks only the daemon needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	return nil
}
