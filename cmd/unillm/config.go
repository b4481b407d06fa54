package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/voocel/unillm"
)

const (
	envPrefix      = "UNILLM"
	configName     = "unillm"
	reloadDebounce = 100 * time.Millisecond
)

// configDefaults registers every scalar key so AutomaticEnv can override it
// even when the file leaves it out.
var configDefaults = map[string]any{
	"server.addr":               ":8080",
	"log.level":                 "info",
	"log.format":                "text",
	"log.output":                "stderr",
	"transport.timeout":         "5m",
	"transport.connect_timeout": "10s",
	"transport.max_retries":     0,
	"cache.ttl":                 "0s",
	"cache.redis.addr":          "",
	"cache.redis.password":      "",
	"cache.redis.db":            0,
	"defaults.reasoning_effort": "",
}

// loadConfig reads path, or ./unillm.yaml when path is empty and the file
// exists, layers UNILLM_* environment variables on top and validates.
func loadConfig(path string) (*viper.Viper, *unillm.Config, error) {
	v := viper.New()
	for k, val := range configDefaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := decodeConfig(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

func decodeConfig(v *viper.Viper) (*unillm.Config, error) {
	var cfg unillm.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// watchConfig calls onChange with every valid revision of the file. Bursts
// of write events collapse into one reload; invalid revisions are logged and
// skipped.
func watchConfig(v *viper.Viper, onChange func(*unillm.Config)) {
	if v.ConfigFileUsed() == "" {
		return
	}

	var (
		debounceTimer *time.Timer
		debounceMu    sync.Mutex
	)
	v.OnConfigChange(func(ev fsnotify.Event) {
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(reloadDebounce, func() {
			cfg, err := decodeConfig(v)
			if err != nil {
				slog.Warn("ignoring config change", "file", ev.Name, "error", err)
				return
			}
			slog.Info("config reloaded", "file", ev.Name)
			onChange(cfg)
		})
	})
	v.WatchConfig()
}
