package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Agent     AgentConfig
	Bonfire   BonfireConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Pipeline  PipelineConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port        string `env:"APP_PORT" validate:"required,numeric"`
	Environment string `env:"GO_ENV"`
	LogFilePath string `env:"LOG_FILE_PATH" validate:"required"`
	Transport   string `env:"TRANSPORT" validate:"oneof=nats local"`
	NatsURL     string `env:"NATS_URL" validate:"required_if=Transport nats"`
	RedisURL    string `env:"REDIS_URL"`
}

type AgentConfig struct {
	Name       string `env:"AGENT_NAME" validate:"required"`
	SeedPhrase string `env:"AGENT_SEED_PHRASE" validate:"required"`
	Subject    string `env:"AGENT_SUBJECT" validate:"required"`
}

type BonfireConfig struct {
	Endpoint   string `env:"BONFIRES_ENDPOINT" validate:"required,url"`
	Id         string `env:"BONFIRES_ID" validate:"required"`
	ChunkLabel string `env:"CHUNK_LABEL" validate:"required"`
}

type DatabaseConfig struct {
	Connection string `env:"DB_CONNECTION_STRING"`
}

type AIConfig struct {
	LLMProvider   string `env:"LLM_PROVIDER" validate:"oneof=asione openai ollama"`
	LLMModel      string `env:"LLM_MODEL"`
	LLMBaseURL    string `env:"LLM_BASE_URL" validate:"omitempty,url"`
	LLMMaxTokens  int    `env:"LLM_MAX_TOKENS" validate:"min=1"`
	AsiOneAPIKey  string `env:"ASI_ONE_API_KEY" validate:"required_unless=LLMProvider ollama"`
	OllamaBaseURL string `env:"OLLAMA_BASE_URL" validate:"omitempty,url"`
}

type PipelineConfig struct {
	StageTimeout      time.Duration `env:"STAGE_TIMEOUT" validate:"gt=0s"`
	MaxConcurrentRuns int           `env:"MAX_CONCURRENT_RUNS" validate:"min=1"`
	DedupTTL          time.Duration `env:"DEDUP_TTL" validate:"gt=0s"`
}

type TelemetryConfig struct {
	Enabled      bool   `env:"OTEL_ENABLED"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:        getEnv("APP_PORT", "8000"),
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "agent.log"),
			Transport:   getEnv("TRANSPORT", "nats"),
			NatsURL:     getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:    getEnv("REDIS_URL", ""),
		},
		Agent: AgentConfig{
			Name:       getEnv("AGENT_NAME", "bonfire_agent"),
			SeedPhrase: getEnv("AGENT_SEED_PHRASE", ""),
			Subject:    getEnv("AGENT_SUBJECT", "organize a birthday party"),
		},
		Bonfire: BonfireConfig{
			Endpoint:   getEnv("BONFIRES_ENDPOINT", ""),
			Id:         getEnv("BONFIRES_ID", ""),
			ChunkLabel: getEnv("CHUNK_LABEL", "Chat Message"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "asione"),
			LLMModel:      getEnv("LLM_MODEL", ""),
			LLMBaseURL:    getEnv("LLM_BASE_URL", ""),
			LLMMaxTokens:  getEnvAsInt("LLM_MAX_TOKENS", 2048),
			AsiOneAPIKey:  getEnv("ASI_ONE_API_KEY", ""),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Pipeline: PipelineConfig{
			StageTimeout:      getEnvAsDuration("STAGE_TIMEOUT", 30*time.Second),
			MaxConcurrentRuns: getEnvAsInt("MAX_CONCURRENT_RUNS", 16),
			DedupTTL:          getEnvAsDuration("DEDUP_TTL", 10*time.Minute),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvAsBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
