package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration, read from the environment
// (a local .env file is loaded first when present).
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	WhatsApp   WhatsAppConfig   `envPrefix:"WHATSAPP_"`
	Completion CompletionConfig `envPrefix:"COMPLETION_"`
	Scheduling SchedulingConfig `envPrefix:"SCHEDULING_"`
	Ingestion  IngestionConfig  `envPrefix:"INGEST_"`

	KnowledgeFile string `env:"KNOWLEDGE_FILE" envDefault:"data/clinic.yaml"`
}

// WhatsAppConfig configures the Business Cloud API channel.
type WhatsAppConfig struct {
	AccessToken   string `env:"ACCESS_TOKEN"`
	PhoneNumberID string `env:"PHONE_NUMBER_ID"`
	VerifyToken   string `env:"VERIFY_TOKEN,required"`
	AppSecret     string `env:"APP_SECRET"`
}

// CompletionConfig configures the OpenAI-compatible Completion Service.
type CompletionConfig struct {
	APIBase string        `env:"API_BASE" envDefault:"https://api.openai.com/v1"`
	APIKey  string        `env:"API_KEY"`
	Model   string        `env:"MODEL" envDefault:"gpt-4o-mini"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// SchedulingConfig configures the external Scheduling Service.
type SchedulingConfig struct {
	BaseURL string        `env:"BASE_URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// IngestionConfig tunes the per-sender webhook rate limit.
type IngestionConfig struct {
	Capacity       int           `env:"CAPACITY" envDefault:"10"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"1m"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine in containerized deploys.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}
