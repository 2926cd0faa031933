// Package config loads runtime configuration from file, environment
// and defaults.
//
// Precedence is the usual viper order: explicit flags beat STRIDE_*
// environment variables, which beat the stride.yaml config file, which
// beats built-in defaults. A config file is optional; the defaults run
// a fully local setup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	// Remote backend.
	RemoteURL    string `mapstructure:"remote_url"`
	RemoteAPIKey string `mapstructure:"remote_api_key"`

	// DataDir holds the sqlite database. Defaults to ~/.stride.
	DataDir string `mapstructure:"data_dir"`

	// Connectivity probing.
	ProbeURL      string        `mapstructure:"probe_url"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// Dashboard WebSocket server.
	DashboardPort int `mapstructure:"dashboard_port"`

	// Log sink. Empty LogFile means stderr only.
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
}

// DBPath returns the sqlite database path inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "stride.db")
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	// Empty-string defaults register the key so STRIDE_* env bindings
	// survive Unmarshal even without a config file.
	v.SetDefault("remote_url", "")
	v.SetDefault("remote_api_key", "")
	v.SetDefault("data_dir", filepath.Join(home, ".stride"))
	v.SetDefault("probe_url", "")
	v.SetDefault("probe_interval", 5*time.Second)
	v.SetDefault("dashboard_port", 8787)
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)
}

// current is the viper instance backing the last Load; Watch reuses it.
var current *viper.Viper

// Load reads configuration. If cfgFile is non-empty it must exist;
// otherwise stride.yaml is searched in the working directory and
// ~/.stride, and absence is fine.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STRIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("stride")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".stride"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	current = v
	return &config, nil
}

// Watch re-reads the config file on change and invokes onChange with
// the fresh values. Only file-backed settings hot-reload; settings that
// were never in a file (pure env/defaults) don't change underneath the
// process.
func Watch(onChange func(*Config)) {
	v := current
	if v == nil || v.ConfigFileUsed() == "" {
		return // nothing to watch
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		var config Config
		if err := v.Unmarshal(&config); err != nil {
			return
		}
		onChange(&config)
	})
	v.WatchConfig()
}
