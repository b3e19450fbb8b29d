// Package config handles the XDG configuration directory, file paths and
// environment settings.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// AppName is the application directory name.
	AppName = "taskdeck"

	// OAuthClientFile is the OAuth client credentials filename.
	OAuthClientFile = "oauth_client.json"

	// TokenFile is the stored OAuth token filename.
	TokenFile = "token.json"

	// DatabaseFile is the default SQLite database filename.
	DatabaseFile = "taskdeck.db"

	// DefaultArchivalDelay is how long a completed task stays visible.
	DefaultArchivalDelay = 24 * time.Hour
)

// Store backends.
const (
	StoreSQLite      = "sqlite"
	StoreGoogleTasks = "googletasks"
)

// Logger holds logging settings.
type Logger struct {
	Level     slog.Level
	Plaintext bool
}

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	// Owner is the owner id the CLI acts as.
	Owner string

	// Store selects the task store backend.
	Store string

	// DBPath is the SQLite database path. Empty means Dir/taskdeck.db.
	DBPath string

	ArchivalDelay time.Duration
	SweepInterval time.Duration
	PollInterval  time.Duration

	// Location is where deadlines without a zone are interpreted.
	Location *time.Location

	RedisAddr  string
	JWTSecret  string
	TokenTTL   time.Duration
	ServerAddr string

	Logger Logger

	// Clock replaces time.Now when set.
	Clock func() time.Time
}

// New creates a new Config with the default or specified config directory
// and the settings from the environment.
// If configDir is empty, uses XDG_CONFIG_HOME/taskdeck or $HOME/.config/taskdeck.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg, err := Load()
	cfg.Dir = dir
	return &cfg, err
}

// Load reads the environment settings. Every invalid variable is reported.
func Load() (Config, error) {
	var ge getenv
	cfg := Config{
		Owner:         ge.String("TASKDECK_OWNER", false, "local"),
		Store:         ge.OneOf("TASKDECK_STORE", StoreSQLite, StoreSQLite, StoreGoogleTasks),
		DBPath:        ge.String("TASKDECK_DB", false, ""),
		ArchivalDelay: ge.PositiveDuration("TASKDECK_ARCHIVAL_DELAY", DefaultArchivalDelay),
		SweepInterval: ge.PositiveDuration("TASKDECK_SWEEP_INTERVAL", time.Minute),
		PollInterval:  ge.PositiveDuration("TASKDECK_POLL_INTERVAL", 15*time.Second),
		Location:      ge.Location("TASKDECK_TIMEZONE", time.Local),
		RedisAddr:     ge.String("TASKDECK_REDIS_ADDR", false, ""),
		JWTSecret:     ge.String("TASKDECK_JWT_SECRET", false, ""),
		TokenTTL:      ge.PositiveDuration("TASKDECK_TOKEN_TTL", 30*24*time.Hour),
		ServerAddr:    ge.String("TASKDECK_SERVER_ADDR", false, ":3000"),
		Logger: Logger{
			Level:     ge.LogLevel("LOG_LEVEL", false, slog.LevelInfo),
			Plaintext: ge.Bool("LOG_PLAINTEXT", false, true),
		},
	}
	return cfg, ge.Err()
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.Dir, DatabaseFile)
}

// OAuthClientPath returns the path to the OAuth client credentials file.
func (c *Config) OAuthClientPath() string {
	return filepath.Join(c.Dir, OAuthClientFile)
}

// TokenPath returns the path to the stored OAuth token file.
func (c *Config) TokenPath() string {
	return filepath.Join(c.Dir, TokenFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

// HasOAuthClient checks if the OAuth client credentials file exists.
func (c *Config) HasOAuthClient() bool {
	_, err := os.Stat(c.OAuthClientPath())
	return err == nil
}

// HasToken checks if the token file exists.
func (c *Config) HasToken() bool {
	_, err := os.Stat(c.TokenPath())
	return err == nil
}

// RemoveToken deletes the token file.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// Loc returns the deadline location, falling back to time.Local.
func (c *Config) Loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// Now returns the current time from Clock or time.Now.
func (c *Config) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// Delay returns the archival delay, falling back to DefaultArchivalDelay.
func (c *Config) Delay() time.Duration {
	if c.ArchivalDelay <= 0 {
		return DefaultArchivalDelay
	}
	return c.ArchivalDelay
}
