package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/rilbridge/internal/testutil/testlog"
)

func TestLoadAppConfigExample(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadAppConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	tc := cfg.Transport
	if tc.Instance != 1 || tc.SocketPath() != "/dev/socket/rild2" {
		t.Fatalf("unexpected socket: instance=%d path=%q", tc.Instance, tc.SocketPath())
	}
	if tc.ReconnectInterval != 4*time.Second {
		t.Fatalf("unexpected reconnect interval: %v", tc.ReconnectInterval)
	}
	if tc.AckLockTimeout != 200*time.Millisecond || tc.BlockingTimeout != 2*time.Second {
		t.Fatalf("unexpected timeouts: ack=%v blocking=%v", tc.AckLockTimeout, tc.BlockingTimeout)
	}
	if tc.WakeLock.Enabled || tc.WakeLock.AckName != "RILJ_ACK_WL" {
		t.Fatalf("unexpected wake lock: %+v", tc.WakeLock)
	}
	if cfg.MetricsAddr != "127.0.0.1:9464" {
		t.Fatalf("unexpected metrics addr: %q", cfg.MetricsAddr)
	}
	if cfg.Log.Level != zerolog.DebugLevel || !cfg.Log.Timestamp {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadAppConfigEmptyPathUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadAppConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Transport.SocketPath() != "/dev/socket/rild" || cfg.MetricsAddr != defaultMetricsAddr {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppConfigRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"bad duration": `blocking_timeout = "soon"`,
		"unknown key":  `sokcet_dir = "/tmp"`,
		"bad level":    "[log]\nlevel = \"loud\"",
		"bad instance": `instance = -2`,
	}
	for name, content := range cases {
		if _, err := loadAppConfig(writeConfig(t, content)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSendEncoder(t *testing.T) {
	testlog.Start(t)
	if enc, err := sendEncoder(nil, nil); err != nil || enc != nil {
		t.Fatalf("no args: enc=%v err=%v", enc, err)
	}
	if _, err := sendEncoder([]string{"1"}, []string{"a"}); err == nil {
		t.Fatalf("expected mixed args to fail")
	}
	if _, err := sendEncoder([]string{"x"}, nil); err == nil {
		t.Fatalf("expected bad int to fail")
	}
	if enc, err := sendEncoder([]string{"1", "-2"}, nil); err != nil || enc == nil {
		t.Fatalf("ints: enc=%v err=%v", enc, err)
	}
}

func TestWriteTemplateRoundTrips(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "rilctl.toml")
	if err := writeTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := writeTemplate(path, false); err == nil {
		t.Fatalf("expected existing file to be kept")
	}
	if err := writeTemplate(path, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := loadAppConfig(path); err != nil {
		t.Fatalf("template does not load: %v", err)
	}
}
