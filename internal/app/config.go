package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/shopkeep/internal/domain/item"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (SHOPKEEP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOPKEEP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
	Stats       StatsConfig
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max        int           `default:"100"   usage:"Max requests per window"`
	Window     time.Duration `default:"1m"    usage:"Rate limit window duration"`
	TrustProxy bool          `default:"false" usage:"Identify clients by X-Forwarded-For and X-Real-IP" flag:"trust-proxy"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// StatsConfig holds the defaults of the reporting endpoints.
type StatsConfig struct {
	TopDefault int `default:"3" usage:"Items returned by /items/top when n is omitted" flag:"top-default"`
	ActiveDays int `default:"3" usage:"Window in days used by /users/active-count when days is omitted" flag:"active-days"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOPKEEP",
		Files:     []string{"config.yaml", "/etc/shopkeep/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT onto the configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOPKEEP_DATABASE_URL or DATABASE_URL")
	case c.RateLimit.Max < 1:
		return errors.Errorf("rate limit max must be positive, got %d", c.RateLimit.Max)
	case c.RateLimit.Window <= 0:
		return errors.Errorf("rate limit window must be positive, got %s", c.RateLimit.Window)
	case c.Stats.TopDefault < 1 || c.Stats.TopDefault > item.MaxTop:
		return errors.Errorf("stats top default must be in [1, %d], got %d", item.MaxTop, c.Stats.TopDefault)
	case c.Stats.ActiveDays < 1:
		return errors.Errorf("stats active days must be positive, got %d", c.Stats.ActiveDays)
	}
	return nil
}
