package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Account   Account   `mapstructure:"account"`
	Simulator Simulator `mapstructure:"simulator"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Journal   Journal   `mapstructure:"journal"`
	Auth      Auth      `mapstructure:"auth"`
	Client    Client    `mapstructure:"client"`
}

// Account holds the rules applied to every simulated account.
type Account struct {
	StartingBonus float64 `mapstructure:"starting_bonus"`
	MinWithdrawal float64 `mapstructure:"min_withdrawal"`
}

// Simulator holds the configuration for the price drift simulation.
type Simulator struct {
	Interval  time.Duration `mapstructure:"interval"`
	Seed      int64         `mapstructure:"seed"` // 0 seeds from the clock
	AutoStart bool          `mapstructure:"autostart"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Journal holds the configuration for the write-ahead transaction journal.
type Journal struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Auth holds the configuration for sessions and password hashing.
type Auth struct {
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// Client holds the configuration used by the command line client.
type Client struct {
	BaseURL        string        `mapstructure:"base_url"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error: defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("account.starting_bonus", 500.00)
	v.SetDefault("account.min_withdrawal", 50.00)

	v.SetDefault("simulator.interval", 5*time.Second)
	v.SetDefault("simulator.seed", 0)
	v.SetDefault("simulator.autostart", true)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.dsn", "portfolio.db")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.dir", "./wal/transactions")

	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.rate_limit", 10)      // requests per second
	v.SetDefault("client.rate_limit_burst", 5) // burst size
	v.SetDefault("client.timeout", 10*time.Second)
}
