package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Alias1177/volregime/models"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config holds all classifier configuration
type Config struct {
	LogLevel   string               `yaml:"log_level" default:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFormat  string               `yaml:"log_format" default:"console" validate:"oneof=console json"`
	Timeframes TimeframeConfig      `yaml:"timeframes"`
	Store      StoreConfig          `yaml:"store"`
	Sessions   []SessionBoundary    `yaml:"sessions" validate:"dive"`
	Thresholds Thresholds           `yaml:"thresholds"`
	Symbols    map[string]yaml.Node `yaml:"symbols" validate:"-"`

	mu        sync.RWMutex
	overrides map[string]Thresholds
}

// TimeframeConfig names the short/medium/long windows and their composite weights
type TimeframeConfig struct {
	Short        models.Timeframe `yaml:"short" default:"5min" validate:"required"`
	Medium       models.Timeframe `yaml:"medium" default:"15min" validate:"required"`
	Long         models.Timeframe `yaml:"long" default:"1h" validate:"required"`
	Primary      models.Timeframe `yaml:"primary"`
	ShortWeight  float64          `yaml:"short_weight" default:"0.5" validate:"gte=0"`
	MediumWeight float64          `yaml:"medium_weight" default:"0.3" validate:"gte=0"`
	LongWeight   float64          `yaml:"long_weight" default:"0.2" validate:"gte=0"`
}

// Ordered returns the configured timeframes from shortest to longest
func (t TimeframeConfig) Ordered() []models.Timeframe {
	return []models.Timeframe{t.Short, t.Medium, t.Long}
}

// Weight returns the composite weight for tf, 0 for unknown timeframes
func (t TimeframeConfig) Weight(tf models.Timeframe) float64 {
	switch tf {
	case t.Short:
		return t.ShortWeight
	case t.Medium:
		return t.MediumWeight
	case t.Long:
		return t.LongWeight
	}
	return 0
}

// PrimaryTimeframe returns the timeframe used for breakout recency and tracker predicates
func (t TimeframeConfig) PrimaryTimeframe() models.Timeframe {
	if t.Primary != "" {
		return t.Primary
	}
	return t.Short
}

// StoreConfig configures the breakout store
type StoreConfig struct {
	Driver          string        `yaml:"driver" default:"sqlite" validate:"oneof=sqlite postgres none"`
	DSN             string        `yaml:"dsn" default:"regime_breakouts.db"`
	BusyTimeout     time.Duration `yaml:"busy_timeout" default:"3s" validate:"gt=0"`
	QueryTimeout    time.Duration `yaml:"query_timeout" default:"5s" validate:"gt=0"`
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"3m" validate:"gt=0"`
	Retention       time.Duration `yaml:"retention" default:"24h" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"10m" validate:"gt=0"`
	MaxOpenConns    int           `yaml:"max_open_conns" default:"1" validate:"gte=1"`
	BreakerFailures uint32        `yaml:"breaker_failures" default:"3" validate:"gte=1"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" default:"30s" validate:"gt=0"`
}

// SessionBoundary is a UTC clock time at which trading passes from one session to the next
type SessionBoundary struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
	UTC  string `yaml:"utc" validate:"required"` // HH:MM
}

// Clock parses the boundary time into hours and minutes
func (b SessionBoundary) Clock() (int, int, error) {
	t, err := time.Parse("15:04", b.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("session boundary %s->%s: %w", b.From, b.To, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Name returns the transition label, e.g. ASIA_TO_LONDON
func (b SessionBoundary) Name() string {
	return strings.ToUpper(b.From) + "_TO_" + strings.ToUpper(b.To)
}

// DefaultSessions returns the ASIA->LONDON, LONDON->NY and NY->ASIA boundaries
func DefaultSessions() []SessionBoundary {
	return []SessionBoundary{
		{From: models.SessionAsia, To: models.SessionLondon, UTC: "07:00"},
		{From: models.SessionLondon, To: models.SessionNY, UTC: "12:00"},
		{From: models.SessionNY, To: models.SessionAsia, UTC: "21:00"},
	}
}

// Default returns a configuration populated only from struct defaults
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		// defaults are compile-time constants; a failure here is a programming error
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	cfg.Sessions = DefaultSessions()
	if err := cfg.finalize(); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file and the environment
func Load(path string) (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	cfg.Sessions = DefaultSessions()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = getEnvWithDefault("REGIME_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnvWithDefault("REGIME_LOG_FORMAT", cfg.LogFormat)
	cfg.Store.Driver = getEnvWithDefault("REGIME_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = getEnvWithDefault("REGIME_STORE_DSN", cfg.Store.DSN)
	cfg.Store.BusyTimeout = getEnvDurationWithDefault("REGIME_STORE_BUSY_TIMEOUT", cfg.Store.BusyTimeout)
	cfg.Store.CacheTTL = getEnvDurationWithDefault("REGIME_CACHE_TTL", cfg.Store.CacheTTL)
	cfg.Timeframes.Primary = models.Timeframe(getEnvWithDefault("REGIME_PRIMARY_TIMEFRAME", string(cfg.Timeframes.Primary)))
	cfg.Thresholds.ADXChopCeiling = getEnvFloatWithDefault("REGIME_ADX_CHOP_CEILING", cfg.Thresholds.ADXChopCeiling)
	cfg.Thresholds.SpikeRatio = getEnvFloatWithDefault("REGIME_SPIKE_RATIO", cfg.Thresholds.SpikeRatio)
}

// finalize validates the configuration and resolves per-symbol overrides
func (c *Config) finalize() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	for _, s := range c.Sessions {
		if _, _, err := s.Clock(); err != nil {
			return err
		}
	}
	for _, tf := range c.Timeframes.Ordered() {
		if tf.Duration() <= 0 {
			return fmt.Errorf("validate config: unknown timeframe %q", tf)
		}
	}

	overrides := make(map[string]Thresholds, len(c.Symbols))
	for symbol, node := range c.Symbols {
		t := c.Thresholds
		if err := node.Decode(&t); err != nil {
			return fmt.Errorf("symbol %s thresholds: %w", symbol, err)
		}
		if err := validate.Struct(t); err != nil {
			return fmt.Errorf("symbol %s thresholds: %w", symbol, err)
		}
		overrides[normalizeSymbol(symbol)] = t
	}

	c.mu.Lock()
	c.overrides = overrides
	c.mu.Unlock()
	return nil
}

// ThresholdsFor returns the thresholds for symbol, falling back to the defaults
func (c *Config) ThresholdsFor(symbol string) Thresholds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t, ok := c.overrides[normalizeSymbol(symbol)]; ok {
		return t
	}
	return c.Thresholds
}

// SetSymbolThresholds installs a full threshold override for one symbol
func (c *Config) SetSymbolThresholds(symbol string, t Thresholds) error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("symbol %s thresholds: %w", symbol, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overrides == nil {
		c.overrides = make(map[string]Thresholds)
	}
	c.overrides[normalizeSymbol(symbol)] = t
	return nil
}

// LongestBreakoutMaxAge returns the largest breakout_max_age across the
// defaults and every symbol override
func (c *Config) LongestBreakoutMaxAge() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	longest := c.Thresholds.BreakoutMaxAge
	for _, t := range c.overrides {
		if t.BreakoutMaxAge > longest {
			longest = t.BreakoutMaxAge
		}
	}
	return longest
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring malformed float in environment")
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring malformed duration in environment")
	}
	return defaultValue
}
