package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"720h"`
	SessionRetention time.Duration `env:"SESSION_RETENTION" envDefault:"168h"`
	SweepBatchSize   int           `env:"SWEEP_BATCH_SIZE" envDefault:"500"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"true"`

	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL"`
	StateSecret        string        `env:"OAUTH_STATE_SECRET"`
	StateTTL           time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	PostLoginRedirect  string        `env:"POST_LOGIN_REDIRECT" envDefault:"/"`

	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED" envDefault:"false"`
	OTELTracesEnabled         bool          `env:"OTEL_TRACES_ENABLED" envDefault:"false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED" envDefault:"false"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELServiceName           string        `env:"OTEL_SERVICE_NAME" envDefault:"cloned-it"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL" envDefault:"15s"`
	EnableOTelHTTP            bool          `env:"OTEL_HTTP_ENABLED" envDefault:"false"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

var dotenvOnce sync.Once

// Load parses configuration from the environment, after a best-effort load
// of a local .env file. Missing .env is not an error.
func Load() (*Config, error) {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		err = fmt.Errorf("parse config: %w", err)
		recordConfigLoadEvent(context.Background(), cfg.Env, "error", classifyConfigLoadError(err))
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		err = fmt.Errorf("validate config: %w", err)
		recordConfigLoadEvent(context.Background(), cfg.Env, "error", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigLoadEvent(context.Background(), cfg.Env, "success", "none")
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.SessionRetention <= 0 {
		errs = append(errs, errors.New("SESSION_RETENTION must be positive"))
	}
	if c.SweepBatchSize <= 0 {
		errs = append(errs, errors.New("SWEEP_BATCH_SIZE must be positive"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.Env == "production" {
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" || c.GoogleRedirectURL == "" {
			errs = append(errs, errors.New("google oauth credentials are required in production"))
		}
		if c.StateSecret == "" {
			errs = append(errs, errors.New("OAUTH_STATE_SECRET is required in production"))
		}
		if !c.CookieSecure {
			errs = append(errs, errors.New("COOKIE_SECURE must not be disabled in production"))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool { return c.Env == "production" }
