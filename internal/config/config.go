// Package config resolves c5t settings from flags, C5T_* environment
// variables, $XDG_CONFIG_HOME/c5t/config.toml and built-in defaults, in
// that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/c5t/c5t/internal/vcs"
)

// Keys understood in config.toml. Nested keys map to C5T_ variables with
// dots replaced by underscores, e.g. sync.branch → C5T_SYNC_BRANCH.
const (
	KeyDataDir       = "data_dir"
	KeyDatabase      = "database"
	KeyNoColor       = "no_color"
	KeySyncDir       = "sync.dir"
	KeySyncVCS       = "sync.vcs"
	KeySyncRemote    = "sync.remote_name"
	KeySyncBranch    = "sync.branch"
	KeySyncTimeout   = "sync.network_timeout"
	KeyLogLevel      = "log.level"
	KeyLogFile       = "log.file"
	KeyLogMaxSizeMB  = "log.max_size_mb"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAgeDays = "log.max_age_days"
)

const (
	configName        = "config"
	configType        = "toml"
	envPrefix         = "C5T"
	appDir            = "c5t"
	defaultDatabase   = "c5t.db"
	defaultSyncSubdir = "sync"
)

// Config is the resolved configuration.
type Config struct {
	DataDir  string
	Database string
	NoColor  bool
	Sync     SyncConfig
	Log      LogConfig

	// File is the config file that was read, or "" if none was found
	File string
}

// SyncConfig configures the sync working area.
type SyncConfig struct {
	Dir            string
	VCS            vcs.Type
	RemoteName     string
	Branch         string
	NetworkTimeout time.Duration
}

// LogConfig configures logging.
type LogConfig struct {
	Level      slog.Level
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var v *viper.Viper

// Initialize sets up the configuration sources. An explicit file, when
// given, must exist; otherwise a missing default file is not an error.
func Initialize(file string) error {
	v = viper.New()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDataDir, "")
	v.SetDefault(KeyDatabase, "")
	v.SetDefault(KeyNoColor, false)
	v.SetDefault(KeySyncDir, "")
	v.SetDefault(KeySyncVCS, string(vcs.TypeGit))
	v.SetDefault(KeySyncRemote, vcs.DefaultRemote)
	v.SetDefault(KeySyncBranch, vcs.DefaultBranch)
	v.SetDefault(KeySyncTimeout, "2m")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSizeMB, 10)
	v.SetDefault(KeyLogMaxBackups, 3)
	v.SetDefault(KeyLogMaxAgeDays, 28)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	if dir, err := ConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// Set overrides a key, typically from a command-line flag.
func Set(key string, value any) {
	ensure()
	v.Set(key, value)
}

// GetString returns the raw value of key.
func GetString(key string) string {
	ensure()
	return v.GetString(key)
}

// Load resolves every setting, filling path defaults from the data
// directory.
func Load() (*Config, error) {
	ensure()

	cfg := &Config{
		DataDir:  v.GetString(KeyDataDir),
		Database: v.GetString(KeyDatabase),
		NoColor:  v.GetBool(KeyNoColor),
		File:     v.ConfigFileUsed(),
		Sync: SyncConfig{
			Dir:        v.GetString(KeySyncDir),
			RemoteName: v.GetString(KeySyncRemote),
			Branch:     v.GetString(KeySyncBranch),
		},
		Log: LogConfig{
			File:       v.GetString(KeyLogFile),
			MaxSizeMB:  v.GetInt(KeyLogMaxSizeMB),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAgeDays: v.GetInt(KeyLogMaxAgeDays),
		},
	}

	if cfg.DataDir == "" {
		dir, err := DataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	if cfg.Database == "" {
		cfg.Database = filepath.Join(cfg.DataDir, defaultDatabase)
	}
	if cfg.Sync.Dir == "" {
		cfg.Sync.Dir = filepath.Join(cfg.DataDir, defaultSyncSubdir)
	}

	t, ok := vcs.ParseType(v.GetString(KeySyncVCS))
	if !ok {
		return nil, &Error{Key: KeySyncVCS, Message: fmt.Sprintf("unknown vcs %q (want git or jj)", v.GetString(KeySyncVCS))}
	}
	cfg.Sync.VCS = t

	timeout, err := time.ParseDuration(v.GetString(KeySyncTimeout))
	if err != nil || timeout <= 0 {
		return nil, &Error{Key: KeySyncTimeout, Message: fmt.Sprintf("invalid duration %q", v.GetString(KeySyncTimeout))}
	}
	cfg.Sync.NetworkTimeout = timeout

	if err := cfg.Log.Level.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return nil, &Error{Key: KeyLogLevel, Message: err.Error()}
	}

	return cfg, nil
}

// Error reports an invalid configuration value.
type Error struct {
	Key     string
	Message string
}

func (e *Error) Error() string {
	return "config error in '" + e.Key + "': " + e.Message
}

// ConfigDir returns $XDG_CONFIG_HOME/c5t or the platform equivalent.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDir), nil
}

// DataDir returns $XDG_DATA_HOME/c5t, defaulting to ~/.local/share/c5t.
func DataDir() (string, error) {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine data directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDir), nil
}

func ensure() {
	if v == nil {
		_ = Initialize("")
	}
}
