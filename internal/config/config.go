package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Numenorean/ShazamAPI/pkg/logger"
	"github.com/Numenorean/ShazamAPI/pkg/resilience"
)

// Config carries the process-level defaults for recognition runs. It is
// read from the environment only; there is no configuration file.
type Config struct {
	Locale struct {
		Language string `env:"SHAZAM_LANGUAGE" env-default:"ru"`
		Region   string `env:"SHAZAM_REGION" env-default:"RU"`
	}

	Timezone string `env:"SHAZAM_TIMEZONE" env-default:"Europe/Moscow"`

	HTTPTimeoutSeconds int     `env:"SHAZAM_HTTP_TIMEOUT" env-default:"20"`
	WindowSeconds      float64 `env:"SHAZAM_WINDOW_SECONDS" env-default:"12"`
	OverlapSeconds     float64 `env:"SHAZAM_OVERLAP_SECONDS" env-default:"0"`

	// RateLimit caps outgoing recognition requests per minute.
	// Zero disables client-side pacing.
	RateLimit int `env:"SHAZAM_RATE_LIMIT" env-default:"0"`

	Debug bool `env:"SHAZAM_DEBUG" env-default:"false"`
}

// Load reads the configuration from the environment, after loading a
// local .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	logger.Debug("config loaded from environment")
	return &cfg, nil
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) WindowDuration() time.Duration {
	return time.Duration(c.WindowSeconds * float64(time.Second))
}

func (c *Config) Overlap() time.Duration {
	return time.Duration(c.OverlapSeconds * float64(time.Second))
}

// RateLimiter builds the request pacer for the configured limit, or nil
// when pacing is disabled.
func (c *Config) RateLimiter() *resilience.RateLimiter {
	if c.RateLimit <= 0 {
		return nil
	}
	return resilience.NewRateLimiter(c.RateLimit, time.Minute/time.Duration(c.RateLimit))
}
