package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the broker's full configuration. Loaded from a JSON file, then
// overridden by COURIER_* environment variables. Server fields require a
// restart to change; Retention fields reload live (see Watch).
type Config struct {
	Server    Server    `json:"server"`
	Retention Retention `json:"retention"`
	Limits    Limits    `json:"limits"`
}

type Server struct {
	// TCP address the HTTP/WebSocket server binds to.
	ListenAddr string `json:"listen_addr" env:"COURIER_LISTEN_ADDR"`

	// Public URL shown to clients; required behind NAT or a reverse proxy.
	ExternalURL string `json:"external_url" env:"COURIER_EXTERNAL_URL"`

	// Identifier returned to registering peers in the bootstrapId field.
	// Defaults to a random id per process when empty.
	BootstrapID string `json:"bootstrap_id" env:"COURIER_BOOTSTRAP_ID"`

	// WebSocket liveness. A connection missing a pong for PongTimeoutSec
	// is terminated and treated as a disconnect.
	PingIntervalSec int `json:"ping_interval_seconds" env:"COURIER_PING_INTERVAL_SEC"`
	PongTimeoutSec  int `json:"pong_timeout_seconds" env:"COURIER_PONG_TIMEOUT_SEC"`
}

// Retention holds every time-based eviction window, in seconds. Signaling
// retention is one configurable window for answered and unanswered peers
// alike; deployments wanting tighter turnover lower it.
type Retention struct {
	PeerTTLSec       int `json:"peer_ttl_seconds" env:"COURIER_PEER_TTL_SEC"`
	SweepIntervalSec int `json:"sweep_interval_seconds" env:"COURIER_SWEEP_INTERVAL_SEC"`
	SignalSec        int `json:"signal_retention_seconds" env:"COURIER_SIGNAL_RETENTION_SEC"`
	CallSec          int `json:"call_retention_seconds" env:"COURIER_CALL_RETENTION_SEC"`
	MailboxSec       int `json:"mailbox_retention_seconds" env:"COURIER_MAILBOX_RETENTION_SEC"`
	UserDataTTLSec   int `json:"userdata_ttl_seconds" env:"COURIER_USERDATA_TTL_SEC"`
}

// Limits caps every per-key queue so one recipient can never grow memory
// without bound. Fixed at construction; changing them requires a restart.
type Limits struct {
	SignalQueueCap  int `json:"signal_queue_cap" env:"COURIER_SIGNAL_QUEUE_CAP"`
	CallQueueCap    int `json:"call_queue_cap" env:"COURIER_CALL_QUEUE_CAP"`
	MailboxQueueCap int `json:"mailbox_queue_cap" env:"COURIER_MAILBOX_QUEUE_CAP"`
	GroupLogCap     int `json:"group_log_cap" env:"COURIER_GROUP_LOG_CAP"`
	ChannelLogCap   int `json:"channel_log_cap" env:"COURIER_CHANNEL_LOG_CAP"`
	BlobCacheSize   int `json:"blob_cache_size" env:"COURIER_BLOB_CACHE_SIZE"`
}

func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:      "127.0.0.1:8787",
			PingIntervalSec: 25,
			PongTimeoutSec:  60,
		},
		Retention: Retention{
			PeerTTLSec:       300,
			SweepIntervalSec: 60,
			SignalSec:        300,
			CallSec:          300,
			MailboxSec:       86400,
			UserDataTTLSec:   86400,
		},
		Limits: Limits{
			SignalQueueCap:  50,
			CallQueueCap:    50,
			MailboxQueueCap: 1000,
			GroupLogCap:     500,
			ChannelLogCap:   500,
			BlobCacheSize:   4096,
		},
	}
}

// Load reads the config file at path (missing file = defaults), applies
// environment overrides, and validates. An empty path skips the file step.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// fall through to defaults
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	// Hostnames are fine; net.Listen resolves them at bind time.
	_, port, err := net.SplitHostPort(c.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("server.listen_addr: %w", err)
	}
	if port == "" {
		return errors.New("server.listen_addr port is required")
	}

	if u := strings.TrimSpace(c.Server.ExternalURL); u != "" {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return errors.New("server.external_url must start with http:// or https://")
		}
	}

	if c.Server.PingIntervalSec <= 0 {
		return errors.New("server.ping_interval_seconds must be > 0")
	}
	if c.Server.PongTimeoutSec <= c.Server.PingIntervalSec {
		return errors.New("server.pong_timeout_seconds must be > ping_interval_seconds")
	}

	for name, v := range map[string]int{
		"retention.peer_ttl_seconds":          c.Retention.PeerTTLSec,
		"retention.sweep_interval_seconds":    c.Retention.SweepIntervalSec,
		"retention.signal_retention_seconds":  c.Retention.SignalSec,
		"retention.call_retention_seconds":    c.Retention.CallSec,
		"retention.mailbox_retention_seconds": c.Retention.MailboxSec,
		"retention.userdata_ttl_seconds":      c.Retention.UserDataTTLSec,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}

	for name, v := range map[string]int{
		"limits.signal_queue_cap":  c.Limits.SignalQueueCap,
		"limits.call_queue_cap":    c.Limits.CallQueueCap,
		"limits.mailbox_queue_cap": c.Limits.MailboxQueueCap,
		"limits.group_log_cap":     c.Limits.GroupLogCap,
		"limits.channel_log_cap":   c.Limits.ChannelLogCap,
		"limits.blob_cache_size":   c.Limits.BlobCacheSize,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}

	return nil
}
