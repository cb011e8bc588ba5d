package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/ril/transport"
)

const defaultMetricsAddr = "127.0.0.1:9464"

type wakeLockFileConfig struct {
	Enabled     bool   `toml:"enabled"`
	SysfsDir    string `toml:"sysfs_dir"`
	RequestName string `toml:"request_name"`
	AckName     string `toml:"ack_name"`
}

type logFileConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	Timestamp  bool   `toml:"timestamp"`
	NoColor    bool   `toml:"no_color"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

type fileConfig struct {
	Instance           int                `toml:"instance"`
	SocketDir          string             `toml:"socket_dir"`
	SocketName         string             `toml:"socket_name"`
	MaxFrameBytes      uint32             `toml:"max_frame_bytes"`
	ConnectTimeout     string             `toml:"connect_timeout"`
	WriteTimeout       string             `toml:"write_timeout"`
	ReconnectInterval  string             `toml:"reconnect_interval"`
	RequestLockTimeout string             `toml:"request_lock_timeout"`
	AckLockTimeout     string             `toml:"ack_lock_timeout"`
	BlockingTimeout    string             `toml:"blocking_timeout"`
	AckMinVersion      int32              `toml:"ack_min_version"`
	SubscriberBuffer   int                `toml:"subscriber_buffer"`
	PoolCapacity       int                `toml:"pool_capacity"`
	MetricsAddr        string             `toml:"metrics_addr"`
	WakeLock           wakeLockFileConfig `toml:"wake_lock"`
	Log                logFileConfig      `toml:"log"`
}

type appConfig struct {
	Transport   transport.Config
	MetricsAddr string
	Log         logs.Config
}

func defaultAppConfig() appConfig {
	return appConfig{
		Transport:   transport.DefaultConfig(),
		MetricsAddr: defaultMetricsAddr,
		Log:         logs.DefaultConfig(logs.ProfileRuntime),
	}
}

// loadAppConfig reads path over the defaults. An empty path yields the defaults.
func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load rilctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return appConfig{}, fmt.Errorf("load rilctl config: unknown keys %v", undecoded)
	}

	tc := &cfg.Transport
	if meta.IsDefined("instance") {
		tc.Instance = raw.Instance
	}
	if meta.IsDefined("socket_dir") {
		tc.SocketDir = strings.TrimSpace(raw.SocketDir)
	}
	if meta.IsDefined("socket_name") {
		tc.SocketName = strings.TrimSpace(raw.SocketName)
	}
	if meta.IsDefined("max_frame_bytes") {
		tc.MaxFrameBytes = raw.MaxFrameBytes
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &tc.ConnectTimeout},
		{"write_timeout", raw.WriteTimeout, &tc.WriteTimeout},
		{"request_lock_timeout", raw.RequestLockTimeout, &tc.RequestLockTimeout},
		{"ack_lock_timeout", raw.AckLockTimeout, &tc.AckLockTimeout},
		{"blocking_timeout", raw.BlockingTimeout, &tc.BlockingTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("reconnect_interval") {
		v, err := time.ParseDuration(strings.TrimSpace(raw.ReconnectInterval))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse reconnect_interval: %w", err)
		}
		tc.ReconnectInterval = v
	}

	if meta.IsDefined("ack_min_version") {
		tc.AckMinVersion = raw.AckMinVersion
	}
	if meta.IsDefined("subscriber_buffer") {
		tc.SubscriberBuffer = raw.SubscriberBuffer
	}
	if meta.IsDefined("pool_capacity") {
		tc.PoolCapacity = raw.PoolCapacity
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	if meta.IsDefined("wake_lock", "enabled") {
		tc.WakeLock.Enabled = raw.WakeLock.Enabled
	}
	if meta.IsDefined("wake_lock", "sysfs_dir") {
		tc.WakeLock.SysfsDir = strings.TrimSpace(raw.WakeLock.SysfsDir)
	}
	if meta.IsDefined("wake_lock", "request_name") {
		tc.WakeLock.RequestName = strings.TrimSpace(raw.WakeLock.RequestName)
	}
	if meta.IsDefined("wake_lock", "ack_name") {
		tc.WakeLock.AckName = strings.TrimSpace(raw.WakeLock.AckName)
	}

	if meta.IsDefined("log", "level") {
		lvl, ok := logs.ParseLevel(raw.Log.Level)
		if !ok {
			return appConfig{}, fmt.Errorf("parse log.level: unknown level %q", raw.Log.Level)
		}
		cfg.Log.Level = lvl
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}

	if err := tc.WithDefaults().Validate(); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}
