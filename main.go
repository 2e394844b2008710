// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/blobstore"
	"github.com/courier-p2p/courier/internal/channel"
	"github.com/courier-p2p/courier/internal/config"
	"github.com/courier-p2p/courier/internal/directory"
	"github.com/courier-p2p/courier/internal/gateway"
	"github.com/courier-p2p/courier/internal/group"
	"github.com/courier-p2p/courier/internal/hub"
	"github.com/courier-p2p/courier/internal/mailbox"
	"github.com/courier-p2p/courier/internal/metrics"
	"github.com/courier-p2p/courier/internal/retention"
	"github.com/courier-p2p/courier/internal/signaling"
)

var log = logging.Logger("courier")

var (
	configPath = flag.String("config", "", "path to JSON config file")
	listenAddr = flag.String("listen", "", "override listen address")
	logLevel   = flag.String("log-level", "info", "log level (debug|info|warn|error)")
	version    = flag.Bool("version", false, "show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("courier v%s\n", appVersion)
		return
	}

	if err := logging.SetLogLevel("*", *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", *logLevel, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if cfg.Server.BootstrapID == "" {
		cfg.Server.BootstrapID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath); err != nil {
		log.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, cfgPath string) error {
	clk := clock.New()

	dir := directory.New(clk, directory.DefaultOnlineWindow)
	conns := hub.New(
		time.Duration(cfg.Server.PingIntervalSec)*time.Second,
		time.Duration(cfg.Server.PongTimeoutSec)*time.Second,
	)
	mail := mailbox.New(conns, clk, cfg.Limits.MailboxQueueCap)
	relay := signaling.NewRelay(conns, clk, cfg.Limits.SignalQueueCap)
	calls := signaling.NewCalls(clk, cfg.Limits.CallQueueCap)
	groups := group.NewRegistry(clk, cfg.Limits.GroupLogCap)
	channels := channel.NewRegistry(clk, cfg.Limits.ChannelLogCap)

	blobs, err := blobstore.New(cfg.Limits.BlobCacheSize,
		time.Duration(cfg.Retention.UserDataTTLSec)*time.Second)
	if err != nil {
		return err
	}

	activeWindow := time.Duration(cfg.Retention.PeerTTLSec) * time.Second
	met := metrics.New(
		func() float64 { return float64(len(dir.ListActive(activeWindow))) },
		func() float64 { return float64(conns.Count()) },
		func() float64 { return float64(mail.Depth()) },
	)

	sched := retention.New(clk, dir, mail, relay, calls, met,
		retention.PolicyFromConfig(cfg.Retention))
	go sched.Run(ctx)

	if err := config.Watch(ctx, cfgPath, func(r config.Retention) {
		sched.SetPolicy(retention.PolicyFromConfig(r))
	}); err != nil {
		log.Warnf("config watch disabled: %v", err)
	}

	srv := gateway.New(cfg, gateway.Deps{
		Dir:      dir,
		Hub:      conns,
		Mail:     mail,
		Relay:    relay,
		Calls:    calls,
		Groups:   groups,
		Channels: channels,
		Blobs:    blobs,
		Metrics:  met,
	})
	if err := srv.Start(ctx); err != nil {
		return err
	}

	log.Infof("courier broker up at %s (bootstrap %s)", srv.URL(), cfg.Server.BootstrapID)

	<-ctx.Done()
	log.Infof("shutting down")
	return nil
}
