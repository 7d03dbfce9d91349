// 프로세스 설정 로딩
//
// 환경변수 (.env 파일이 있으면 먼저 로드, 이미 설정된 값은 덮어쓰지 않음):
//   - SLACK_BOT_TOKEN, SLACK_SIGNING_SECRET, SLACK_COMMAND
//   - GEMINI_API_KEY, GEMINI_MODEL
//   - STORE_BACKEND: sashido | postgres | memory
//   - SASHIDO_APP_ID, SASHIDO_REST_KEY, SASHIDO_API_URL, SASHIDO_TIMEOUT
//   - DATABASE_URL 또는 PGHOST/PGPORT/PGUSER/PGPASSWORD/PGDATABASE/PGSSLMODE
//   - STATUS_WEBHOOK_URL, STATUS_WEBHOOK_METHOD, STATUS_WEBHOOK_HEADERS, STATUS_WEBHOOK_BODY
//   - PORT, ENVIRONMENT, LOG_LEVEL, PROCESS_TIMEOUT

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreSashido  = "sashido"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	App           AppConfig
	Slack         SlackConfig   `envPrefix:"SLACK_"`
	Gemini        GeminiConfig  `envPrefix:"GEMINI_"`
	Store         StoreConfig   `envPrefix:"STORE_"`
	Sashido       SashidoConfig `envPrefix:"SASHIDO_"`
	Postgres      PostgresConfig
	StatusWebhook StatusWebhookConfig `envPrefix:"STATUS_WEBHOOK_"`
}

type AppConfig struct {
	Port           int           `env:"PORT" envDefault:"8000"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"INFO"`
	ProcessTimeout time.Duration `env:"PROCESS_TIMEOUT" envDefault:"2m"`
}

type SlackConfig struct {
	BotToken      string `env:"BOT_TOKEN"`
	SigningSecret string `env:"SIGNING_SECRET"`
	CommandName   string `env:"COMMAND" envDefault:"/incident-message"`
}

type GeminiConfig struct {
	APIKey string `env:"API_KEY"`
	Model  string `env:"MODEL" envDefault:"gemini-2.5-flash"`
}

type StoreConfig struct {
	Backend string `env:"BACKEND" envDefault:"sashido"`
}

type SashidoConfig struct {
	AppID   string        `env:"APP_ID"`
	RestKey string        `env:"REST_KEY"`
	APIURL  string        `env:"API_URL"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type PostgresConfig struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Host        string `env:"PGHOST" envDefault:"localhost"`
	Port        string `env:"PGPORT" envDefault:"5432"`
	User        string `env:"PGUSER"`
	Password    string `env:"PGPASSWORD"`
	Database    string `env:"PGDATABASE"`
	SSLMode     string `env:"PGSSLMODE" envDefault:"disable"`
}

// StatusWebhookConfig - 상태 페이지 등 외부 Webhook 중계 설정 (URL이 비어있으면 비활성)
type StatusWebhookConfig struct {
	URL     string            `env:"URL"`
	Method  string            `env:"METHOD" envDefault:"POST"`
	Headers map[string]string `env:"HEADERS"`
	Body    string            `env:"BODY"`
	Timeout time.Duration     `env:"TIMEOUT" envDefault:"10s"`
}

// Load - .env(있으면)와 환경변수에서 설정을 읽음
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env: %w", err)
	}
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	return cfg, nil
}

// Validate - 필수값 누락과 잘못된 값을 한 번에 모아서 반환
func (c Config) Validate() error {
	var errs []error

	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d (must be 1..65535)", c.App.Port))
	}
	if !ValidLogLevel(c.App.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q", c.App.LogLevel))
	}
	if c.App.ProcessTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid PROCESS_TIMEOUT %s", c.App.ProcessTimeout))
	}

	if c.Slack.BotToken == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN is required"))
	}
	if c.Slack.SigningSecret == "" {
		errs = append(errs, errors.New("SLACK_SIGNING_SECRET is required"))
	}
	if !strings.HasPrefix(c.Slack.CommandName, "/") {
		errs = append(errs, fmt.Errorf("SLACK_COMMAND %q must start with /", c.Slack.CommandName))
	}

	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if c.Gemini.Model == "" {
		errs = append(errs, errors.New("GEMINI_MODEL is required"))
	}

	switch c.Store.Backend {
	case StoreSashido:
		if c.Sashido.AppID == "" {
			errs = append(errs, errors.New("SASHIDO_APP_ID is required"))
		}
		if c.Sashido.RestKey == "" {
			errs = append(errs, errors.New("SASHIDO_REST_KEY is required"))
		}
		if c.Sashido.APIURL == "" {
			errs = append(errs, errors.New("SASHIDO_API_URL is required"))
		}
		if c.Sashido.Timeout <= 0 {
			errs = append(errs, fmt.Errorf("invalid SASHIDO_TIMEOUT %s", c.Sashido.Timeout))
		}
	case StorePostgres:
		if c.Postgres.DatabaseURL == "" && (c.Postgres.User == "" || c.Postgres.Database == "") {
			errs = append(errs, errors.New("DATABASE_URL or PGUSER/PGDATABASE is required"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_BACKEND %q (sashido, postgres, memory)", c.Store.Backend))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ValidLogLevel - LOG_LEVEL 허용값 체크 (대소문자 무시)
func ValidLogLevel(level string) bool {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
		return true
	}
	return false
}
