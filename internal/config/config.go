// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Claims    ClaimsConfig    `mapstructure:"claims"`
	Summon    SummonConfig    `mapstructure:"summon"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// BotConfig holds Discord bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
	// CardBotID is the user ID of the card bot whose embeds are tracked.
	CardBotID string `mapstructure:"card_bot_id"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// WhitelistConfig holds guild whitelist configuration.
type WhitelistConfig struct {
	Guilds []string `mapstructure:"guilds"`
}

// ClaimsConfig holds claim pipeline configuration.
type ClaimsConfig struct {
	// DedupTTL is how long a claim fingerprint stays in the cache.
	DedupTTL time.Duration `mapstructure:"dedup_ttl"`
}

// SummonConfig holds summon round configuration.
type SummonConfig struct {
	// GuildID is the single guild where summon rounds run.
	GuildID string `mapstructure:"guild_id"`
	// TriggerPhrase marks a card-bot embed as a summon trigger.
	TriggerPhrase  string        `mapstructure:"trigger_phrase"`
	WindowDuration time.Duration `mapstructure:"window_duration"`
	BoosterRoleID  string        `mapstructure:"booster_role_id"`
	ClanRoleID     string        `mapstructure:"clan_role_id"`
}

// RateLimitConfig holds outbound send throttle configuration.
type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxRequests int           `mapstructure:"max_requests"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, SUMMON_GUILD_ID.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "claimbot")
	v.SetDefault("database.name", "claimbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Claim pipeline defaults
	v.SetDefault("claims.dedup_ttl", "1h")

	// Summon round defaults
	v.SetDefault("summon.trigger_phrase", "A card has been summoned")
	v.SetDefault("summon.window_duration", "19s")

	// Outbound throttle defaults
	v.SetDefault("rate_limit.window", "1s")
	v.SetDefault("rate_limit.max_requests", 50)
}

// IsGuildAllowed checks if a guild ID is in the whitelist.
func (c *Config) IsGuildAllowed(guildID string) bool {
	// Empty whitelist means all guilds are allowed
	if len(c.Whitelist.Guilds) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Guilds {
		if id == guildID {
			return true
		}
	}
	return false
}
