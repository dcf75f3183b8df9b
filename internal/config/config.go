// Package config loads daemon settings from an optional config file plus
// SPINDEX_-prefixed environment variables, with env taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/spindex/spindex/internal/db"
	"github.com/spindex/spindex/internal/gateway"
	"github.com/spindex/spindex/internal/submission"
)

// EnvPrefix is the environment variable namespace, e.g.
// SPINDEX_CHAT_BOT_TOKEN.
const EnvPrefix = "SPINDEX"

// Chat holds the community chat integration settings.
type Chat struct {
	// BotToken authenticates outbound bot API calls. Placeholder or
	// empty means announcements are disabled.
	BotToken string `mapstructure:"bot_token"`

	// PublicKey is the hex Ed25519 key interactions are verified with.
	PublicKey string `mapstructure:"public_key"`

	// GuildID is the community server the bot lives in.
	GuildID string `mapstructure:"guild_id"`

	// ChannelID is the moderation channel announcements are posted to.
	ChannelID string `mapstructure:"channel_id"`

	// ModeratorRoleIDs is the role allow-list for moderation actions.
	ModeratorRoleIDs []string `mapstructure:"moderator_role_ids"`
}

// RateLimit controls the per-moderator budget for web moderation calls.
type RateLimit struct {
	Requests int64         `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Moderation tunes the approval workflow.
type Moderation struct {
	// RequiredApprovals is the default approvals-to-approve threshold.
	RequiredApprovals int `mapstructure:"required_approvals"`

	// RequiredApprovalsPerType overrides the threshold for individual
	// submission types, keyed by type name.
	RequiredApprovalsPerType map[string]int `mapstructure:"required_approvals_per_type"`
}

// Config is the full daemon configuration.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string `mapstructure:"listen_addr"`

	// DatabasePath is the SQLite file location.
	DatabasePath string `mapstructure:"database_path"`

	// SiteBaseURL is the public site, used for link buttons.
	SiteBaseURL string `mapstructure:"site_base_url"`

	// AdminBaseURL is the moderation UI, used for "Details" buttons.
	AdminBaseURL string `mapstructure:"admin_base_url"`

	// CSRFSecret keys the web API's CSRF tokens.
	CSRFSecret string `mapstructure:"csrf_secret"`

	// DebugLevel is the log filter, e.g. "info" or "debug".
	DebugLevel string `mapstructure:"debug_level"`

	Chat       Chat       `mapstructure:"chat"`
	RateLimit  RateLimit  `mapstructure:"rate_limit"`
	Moderation Moderation `mapstructure:"moderation"`
}

// Load reads configuration from the given file (optional, "" skips it)
// and the environment, then validates the result.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", "127.0.0.1:8335")

	// A missing home directory leaves the default empty; validation
	// then demands an explicit path.
	defaultDB, _ := db.DefaultDBPath()
	v.SetDefault("database_path", defaultDB)
	v.SetDefault("debug_level", "info")
	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("moderation.required_approvals", 2)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only walks keys viper already knows about, so keys
	// without defaults need explicit binds to be reachable from the
	// environment alone.
	for _, key := range []string{
		"site_base_url", "admin_base_url", "csrf_secret",
		"chat.bot_token", "chat.public_key", "chat.guild_id",
		"chat.channel_id", "chat.moderator_role_ids",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the daemon cannot safely run with.
// Missing chat credentials are allowed (the integration degrades to
// disabled), but present-and-malformed values are not.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path must not be empty")
	}

	if c.Chat.PublicKey != "" {
		if _, err := gateway.ParsePublicKey(c.Chat.PublicKey); err != nil {
			return fmt.Errorf("chat.public_key: %w", err)
		}
	}

	if c.RateLimit.Requests <= 0 {
		return errors.New("rate_limit.requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return errors.New("rate_limit.window must be positive")
	}

	if c.Moderation.RequiredApprovals < 1 {
		return errors.New(
			"moderation.required_approvals must be at least 1",
		)
	}
	for name, n := range c.Moderation.RequiredApprovalsPerType {
		if _, err := submission.ParseType(name); err != nil {
			return fmt.Errorf(
				"moderation.required_approvals_per_type: %w",
				err)
		}
		if n < 1 {
			return fmt.Errorf("moderation.required_approvals_"+
				"per_type[%s] must be at least 1", name)
		}
	}

	return nil
}

// ApprovalOverrides converts the per-type threshold map to typed keys.
// Validate has already checked the type names.
func (c *Config) ApprovalOverrides() map[submission.Type]int {
	if len(c.Moderation.RequiredApprovalsPerType) == 0 {
		return nil
	}

	out := make(map[submission.Type]int,
		len(c.Moderation.RequiredApprovalsPerType))
	for name, n := range c.Moderation.RequiredApprovalsPerType {
		subType, err := submission.ParseType(name)
		if err != nil {
			continue
		}
		out[subType] = n
	}

	return out
}
