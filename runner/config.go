// Package runner holds process configuration and logger setup.
package runner

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config is loaded from the environment, with a .env file honored when
// present.
type Config struct {
	Addr       string `env:"ADDR" envDefault:":8080"`
	DataFolder string `env:"DATA_FOLDER" envDefault:"./data"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// Job execution.
	JobWorkers    int     `env:"JOB_WORKERS" envDefault:"3"`
	RateLimit     float64 `env:"RATE_LIMIT" envDefault:"1.0"`
	MaxCrawlPages int     `env:"MAX_CRAWL_PAGES" envDefault:"10"`
	VerifyEmails  bool    `env:"VERIFY_EMAILS" envDefault:"false"`

	// Network knobs.
	DNSWorkers     int           `env:"DNS_WORKERS" envDefault:"10"`
	DNSServer      string        `env:"DNS_SERVER"`
	DNSTimeout     time.Duration `env:"DNS_TIMEOUT" envDefault:"2s"`
	HeadTimeout    time.Duration `env:"HEAD_TIMEOUT" envDefault:"2s"`
	GetTimeout     time.Duration `env:"GET_TIMEOUT" envDefault:"10s"`
	SearchTimeout  time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`
	SearchEndpoint string        `env:"SEARCH_ENDPOINT" envDefault:"https://html.duckduckgo.com/html/"`

	// Optional Postgres lead mirror.
	PostgresDSN string `env:"POSTGRES_DSN"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	switch level {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "info":
		logger = logger.Level(zerolog.InfoLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}

	return logger
}
