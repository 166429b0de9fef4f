package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/punchamoorthee/mockbank/internal/logging"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	DBSource        string        `mapstructure:"DB_SOURCE"`
	Port            string        `mapstructure:"SERVER_PORT"`
	Env             string        `mapstructure:"ENVIRONMENT"`
	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	RabbitMQURL     string        `mapstructure:"RABBITMQ_URL"`
	EventsExchange  string        `mapstructure:"EVENTS_EXCHANGE"`
	DefaultCurrency string        `mapstructure:"DEFAULT_CURRENCY"`
	OTPTTL          time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxAttempts  int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	SeedDemo        bool          `mapstructure:"SEED_DEMO"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	LogFormat       string        `mapstructure:"LOG_FORMAT"`
	LogDev          bool          `mapstructure:"LOG_DEV"`
}

var keys = []string{
	"DB_SOURCE", "SERVER_PORT", "ENVIRONMENT", "STORE_DRIVER", "RABBITMQ_URL",
	"EVENTS_EXCHANGE", "DEFAULT_CURRENCY", "OTP_TTL", "OTP_MAX_ATTEMPTS", "SEED_DEMO",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_DEV",
}

// Load reads configuration from the environment and an optional .env file
// in path. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("EVENTS_EXCHANGE", "mockbank.events")
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("OTP_TTL", 5*time.Minute)
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Demo data is on by default only where nobody would mind it.
	if !v.IsSet("SEED_DEMO") {
		v.Set("SEED_DEMO", v.GetString("ENVIRONMENT") == "development")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.DefaultCurrency = strings.ToUpper(strings.TrimSpace(cfg.DefaultCurrency))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DBSource == "" {
			return fmt.Errorf("DB_SOURCE environment variable is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("DEFAULT_CURRENCY must be a 3-letter code, got %q", c.DefaultCurrency)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.OTPMaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive")
	}
	return nil
}

// LogConfig turns the LOG_* keys into a logger configuration. LOG_DEV picks
// the development preset, which LOG_LEVEL and LOG_FORMAT then override.
func (c *Config) LogConfig() logging.Config {
	lc := logging.DefaultConfig()
	if c.LogDev {
		lc = logging.DevelopmentConfig()
	}
	if c.LogLevel != "" {
		lc.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	return lc
}
