package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all environment backed configuration for chat-api.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Session / Auth
	SessionSecret   string `env:"SESSION_SECRET,notEmpty"`
	SessionIssuer   string `env:"SESSION_ISSUER" envDefault:"chat-api"`
	SessionAudience string `env:"SESSION_AUDIENCE" envDefault:"chat-web"`

	// Model provider
	ProviderBaseURL string `env:"PROVIDER_BASE_URL" envDefault:"http://localhost:8001/v1"`
	ProviderAPIKey  string `env:"PROVIDER_API_KEY"`

	// Weather tool
	WeatherBaseURL string `env:"WEATHER_BASE_URL" envDefault:"https://api.open-meteo.com/v1"`

	// Pipeline budgets. A fired budget abandons the operation; it does not
	// cancel it.
	ParseTimeout   time.Duration `env:"PARSE_TIMEOUT" envDefault:"2s"`
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"8s"`
	DBTimeout      time.Duration `env:"DB_TIMEOUT" envDefault:"25s"`
	TitleTimeout   time.Duration `env:"TITLE_TIMEOUT" envDefault:"5s"`
	RequestBudget  time.Duration `env:"REQUEST_BUDGET" envDefault:"55s"`

	// Generation
	MaxToolSteps     int           `env:"MAX_TOOL_STEPS" envDefault:"5"`
	ResumptionWindow time.Duration `env:"RESUMPTION_WINDOW" envDefault:"15s"`
	StreamMarkerTTL  time.Duration `env:"STREAM_MARKER_TTL" envDefault:"24h"`

	// Observability / Logging
	OTLPEndpoint     string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName      string `env:"SERVICE_NAME" envDefault:"chat-api"`
	ServiceNamespace string `env:"SERVICE_NAMESPACE" envDefault:"convo"`
	Environment      string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`
}

// Timeouts groups the per-step budgets handed to the chat pipeline.
type Timeouts struct {
	Parse   time.Duration
	Session time.Duration
	DB      time.Duration
	Title   time.Duration
	Request time.Duration
}

// Timeouts returns the pipeline budgets from the loaded configuration.
func (c *Config) Timeouts() Timeouts {
	return Timeouts{
		Parse:   c.ParseTimeout,
		Session: c.SessionTimeout,
		DB:      c.DBTimeout,
		Title:   c.TitleTimeout,
		Request: c.RequestBudget,
	}
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if _, err := url.ParseRequestURI(cfg.ProviderBaseURL); err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_BASE_URL: %w", err)
	}

	if cfg.RequestBudget <= cfg.DBTimeout {
		return nil, errors.New("REQUEST_BUDGET must exceed DB_TIMEOUT")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	return cfg, nil
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
