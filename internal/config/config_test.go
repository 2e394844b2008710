package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:8787" {
		t.Fatalf("unexpected default listen addr: %s", cfg.Server.ListenAddr)
	}
	if cfg.Limits.SignalQueueCap != 50 || cfg.Limits.GroupLogCap != 500 {
		t.Fatalf("unexpected default caps: %+v", cfg.Limits)
	}
	if cfg.Retention.SignalSec != 300 {
		t.Fatalf("unified signaling window must default to 300s, got %d", cfg.Retention.SignalSec)
	}
}

func TestLoadFilePartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "courier.json")
	body := `{"server":{"listen_addr":"0.0.0.0:9000","ping_interval_seconds":25,"pong_timeout_seconds":60},"retention":{"peer_ttl_seconds":120}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("file override lost: %s", cfg.Server.ListenAddr)
	}
	if cfg.Retention.PeerTTLSec != 120 {
		t.Fatalf("file override lost: %d", cfg.Retention.PeerTTLSec)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:8787" {
		t.Fatalf("missing file must yield defaults, got %s", cfg.Server.ListenAddr)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("COURIER_LISTEN_ADDR", "127.0.0.1:7001")
	t.Setenv("COURIER_SIGNAL_QUEUE_CAP", "25")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:7001" {
		t.Fatalf("env override lost: %s", cfg.Server.ListenAddr)
	}
	if cfg.Limits.SignalQueueCap != 25 {
		t.Fatalf("env override lost: %d", cfg.Limits.SignalQueueCap)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":       func(c *Config) { c.Server.ListenAddr = "" },
		"zero ttl":         func(c *Config) { c.Retention.PeerTTLSec = 0 },
		"negative cap":     func(c *Config) { c.Limits.SignalQueueCap = -1 },
		"pong before ping": func(c *Config) { c.Server.PongTimeoutSec = c.Server.PingIntervalSec },
		"bad external url": func(c *Config) { c.Server.ExternalURL = "ftp://nope" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsHostnames(t *testing.T) {
	for _, addr := range []string{"localhost:8787", "broker.internal:443", ":8787"} {
		cfg := Default()
		cfg.Server.ListenAddr = addr
		if err := cfg.Validate(); err != nil {
			t.Fatalf("%s must validate: %v", addr, err)
		}
	}
}
