// Package config loads kwscout settings from flags, environment, an
// optional config file and defaults through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingToken is returned by ValidateUpstream when no Serpstat token is set.
var ErrMissingToken = errors.New("config: serpstat.token (or SERPSTAT_API_KEY) is required")

// EnvPrefix prefixes every environment variable, e.g. KWSCOUT_SERVER_ADDR.
const EnvPrefix = "KWSCOUT"

// Limiter modes.
const (
	ModeFixed = "fixed"
	ModeToken = "token"
	ModeRedis = "redis"
)

// Journal backends.
const (
	JournalNone     = "none"
	JournalSQLite   = "sqlite"
	JournalPostgres = "postgres"
	JournalJSON     = "json"
	JournalCSV      = "csv"
)

// Serpstat configures the upstream API client and keyword lookups.
type Serpstat struct {
	Endpoint     string        `mapstructure:"endpoint"`
	Token        string        `mapstructure:"token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SearchEngine string        `mapstructure:"search_engine"`
	RelatedLimit int           `mapstructure:"related_limit"`
}

// RateLimit selects and tunes the pacing of upstream calls.
type RateLimit struct {
	Mode      string        `mapstructure:"mode"`
	Interval  time.Duration `mapstructure:"interval"`
	Jitter    float64       `mapstructure:"jitter"`
	Burst     int           `mapstructure:"burst"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisKey  string        `mapstructure:"redis_key"`
}

// Analysis holds the default domain and selection bounds.
type Analysis struct {
	DefaultDomain string `mapstructure:"default_domain"`
	TopN          int    `mapstructure:"top_n"`
	FruitMin      int    `mapstructure:"fruit_min"`
	FruitMax      int    `mapstructure:"fruit_max"`
}

// Server configures the HTTP API and the metrics listener.
type Server struct {
	Addr        string `mapstructure:"addr"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// Journal selects the upstream call journal backend.
type Journal struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// Audit configures the optional landing-page audit.
type Audit struct {
	Enabled       bool          `mapstructure:"enabled"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	UserAgent     string        `mapstructure:"user_agent"`
	Concurrency   int           `mapstructure:"concurrency"`
}

// Log configures the root slog logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full kwscout configuration.
type Config struct {
	Serpstat  Serpstat  `mapstructure:"serpstat"`
	RateLimit RateLimit `mapstructure:"ratelimit"`
	Analysis  Analysis  `mapstructure:"analysis"`
	Server    Server    `mapstructure:"server"`
	Journal   Journal   `mapstructure:"journal"`
	Audit     Audit     `mapstructure:"audit"`
	Log       Log       `mapstructure:"log"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("serpstat.endpoint", "https://api.serpstat.com/v4")
	v.SetDefault("serpstat.token", "")
	v.SetDefault("serpstat.timeout", 10*time.Second)
	v.SetDefault("serpstat.search_engine", "g_dk")
	v.SetDefault("serpstat.related_limit", 20)

	v.SetDefault("ratelimit.mode", ModeFixed)
	v.SetDefault("ratelimit.interval", 1100*time.Millisecond)
	v.SetDefault("ratelimit.jitter", 0.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("ratelimit.redis_addr", "localhost:6379")
	v.SetDefault("ratelimit.redis_key", "kwscout:serpstat:pacer")

	v.SetDefault("analysis.default_domain", "p-lindberg.dk")
	v.SetDefault("analysis.top_n", 5)
	v.SetDefault("analysis.fruit_min", 4)
	v.SetDefault("analysis.fruit_max", 21)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.metrics_port", 0)

	v.SetDefault("journal.backend", JournalNone)
	v.SetDefault("journal.dsn", "")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.timeout", 15*time.Second)
	v.SetDefault("audit.respect_robots", true)
	v.SetDefault("audit.user_agent", "")
	v.SetDefault("audit.concurrency", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init prepares v: defaults, environment binding and, when present, the
// config file. cfgFile overrides the default kwscout.yaml lookup.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("serpstat.token", EnvPrefix+"_SERPSTAT_TOKEN", "SERPSTAT_API_KEY"); err != nil {
		return fmt.Errorf("config: bind token env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
		return nil
	}

	v.SetConfigName("kwscout")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: read config file: %w", err)
		}
	}
	return nil
}

// Load decodes v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	switch c.RateLimit.Mode {
	case ModeFixed, ModeToken, ModeRedis:
	default:
		return fmt.Errorf("config: unknown ratelimit.mode %q", c.RateLimit.Mode)
	}
	if c.RateLimit.Mode == ModeRedis && c.RateLimit.RedisAddr == "" {
		return errors.New("config: ratelimit.redis_addr is required in redis mode")
	}

	switch c.Journal.Backend {
	case JournalNone, "":
	case JournalSQLite, JournalPostgres, JournalJSON, JournalCSV:
		if c.Journal.DSN == "" {
			return fmt.Errorf("config: journal.dsn is required for the %s backend", c.Journal.Backend)
		}
	default:
		return fmt.Errorf("config: unknown journal.backend %q", c.Journal.Backend)
	}

	if c.Analysis.FruitMin > c.Analysis.FruitMax {
		return fmt.Errorf("config: analysis.fruit_min %d exceeds fruit_max %d", c.Analysis.FruitMin, c.Analysis.FruitMax)
	}
	if c.Analysis.TopN < 0 || c.Serpstat.RelatedLimit < 0 {
		return errors.New("config: analysis.top_n and serpstat.related_limit must not be negative")
	}
	return nil
}

// ValidateUpstream additionally requires the settings needed to call the
// Serpstat API.
func (c *Config) ValidateUpstream() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Serpstat.Token == "" {
		return ErrMissingToken
	}
	return nil
}
