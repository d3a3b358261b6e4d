// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":3000"
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "rankbridge"
	DefaultPGSSLMode          = "disable"
	DefaultOpenCloudBaseURL   = "https://apis.roblox.com"
	DefaultUsersAPIURL        = "https://users.roblox.com"
	DefaultGroupsAPIURL       = "https://groups.roblox.com"
	DefaultAuthorizeURL       = "https://apis.roblox.com/oauth/v1/authorize"
	DefaultTokenURL           = "https://apis.roblox.com/oauth/v1/token"
	DefaultUserinfoURL        = "https://apis.roblox.com/oauth/v1/userinfo"
	DefaultRedirectURI        = "http://localhost:3000/oauth/callback"
	DefaultCodeLength         = 8
	DefaultTimeoutMinutes     = 10
	DefaultSyncCooldownSec    = 300
	DefaultCommandCooldownSec = 5
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log          LogConfig          `toml:"log"`
	Server       ServerConfig       `toml:"server"`
	Postgres     PostgresConfig     `toml:"postgres"`
	Discord      DiscordConfig      `toml:"discord"`
	Roblox       RobloxConfig       `toml:"roblox"`
	OAuth        OAuthConfig        `toml:"oauth"`
	Verification VerificationConfig `toml:"verification"`
	Sync         SyncConfig         `toml:"sync"`
	Auth         AuthConfig         `toml:"auth"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DiscordConfig holds the bot token and application id used to register slash commands.
type DiscordConfig struct {
	Token         string `toml:"token"`
	ApplicationID string `toml:"application_id"`
	// GuildID limits command registration to one guild when set (faster propagation
	// during development); empty registers commands globally.
	GuildID string `toml:"guild_id"`
}

// RobloxConfig holds the Open Cloud API key, API base URLs, and default group.
type RobloxConfig struct {
	APIKey            string `toml:"api_key"`
	DefaultGroupID    int64  `toml:"default_group_id"`
	OpenCloudBaseURL  string `toml:"open_cloud_base_url"`
	UsersAPIURL       string `toml:"users_api_url"`
	GroupsAPIURL      string `toml:"groups_api_url"`
	RequestsPerSecond int    `toml:"requests_per_second"`
}

// OAuthConfig holds the Roblox OAuth2 application credentials and endpoints.
type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	AuthorizeURL string `toml:"authorize_url"`
	TokenURL     string `toml:"token_url"`
	UserinfoURL  string `toml:"userinfo_url"`
}

// Enabled reports whether the OAuth verification flow is configured.
func (c OAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// VerificationConfig holds bio-code length and pending-verification timeout.
type VerificationConfig struct {
	CodeLength     int `toml:"code_length"`
	TimeoutMinutes int `toml:"timeout_minutes"`
}

// SyncConfig holds cooldowns and the scheduled auto-sync toggle.
type SyncConfig struct {
	CooldownSeconds        int  `toml:"cooldown_seconds"`
	CommandCooldownSeconds int  `toml:"command_cooldown_seconds"`
	AutoSyncEnabled        bool `toml:"auto_sync_enabled"`
}

// AuthConfig holds the JWT secret for the in-game HTTP API.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Roblox: RobloxConfig{
			OpenCloudBaseURL:  DefaultOpenCloudBaseURL,
			UsersAPIURL:       DefaultUsersAPIURL,
			GroupsAPIURL:      DefaultGroupsAPIURL,
			RequestsPerSecond: 10,
		},
		OAuth: OAuthConfig{
			RedirectURI:  DefaultRedirectURI,
			AuthorizeURL: DefaultAuthorizeURL,
			TokenURL:     DefaultTokenURL,
			UserinfoURL:  DefaultUserinfoURL,
		},
		Verification: VerificationConfig{
			CodeLength:     DefaultCodeLength,
			TimeoutMinutes: DefaultTimeoutMinutes,
		},
		Sync: SyncConfig{
			CooldownSeconds:        DefaultSyncCooldownSec,
			CommandCooldownSeconds: DefaultCommandCooldownSec,
			AutoSyncEnabled:        true,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
