// Package runnerconfig deals with tool-level configuration: where caches and
// run history live, which shell runs pipeline commands, how many lanes run
// at once.  This is configuration of the runner itself; per-pipeline
// configuration lives in the descriptor.
package runnerconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	CacheDir    string `mapstructure:"cache_dir"`
	HistoryDB   string `mapstructure:"history_db"`
	Shell       string `mapstructure:"shell"`
	MaxParallel int    `mapstructure:"max_parallel"`
}

// Load reads the tool configuration.  With an empty configPath the usual
// locations are searched ($CILANE_CONFIG_DIR, ~/.config/cilane, .); a
// missing config file is fine, the defaults stand alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		if dir := os.Getenv("CILANE_CONFIG_DIR"); dir != "" {
			v.AddConfigPath(dir)
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "cilane"))
		}
		v.AddConfigPath(".")
	}

	dataDir := defaultDataDir()
	v.SetDefault("cache_dir", filepath.Join(dataDir, "cache"))
	v.SetDefault("history_db", filepath.Join(dataDir, "history.db"))
	v.SetDefault("shell", "/bin/sh")
	v.SetDefault("max_parallel", 0) // 0 = no limit

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func defaultDataDir() string {
	if dir := os.Getenv("CILANE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "cilane")
}
