// Package gateway is the transport layer: one stateless request/response
// endpoint and one persistent WebSocket protocol, with identical semantics
// over the same injected stores.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/blobstore"
	"github.com/courier-p2p/courier/internal/channel"
	"github.com/courier-p2p/courier/internal/config"
	"github.com/courier-p2p/courier/internal/directory"
	"github.com/courier-p2p/courier/internal/group"
	"github.com/courier-p2p/courier/internal/hub"
	"github.com/courier-p2p/courier/internal/mailbox"
	"github.com/courier-p2p/courier/internal/metrics"
	"github.com/courier-p2p/courier/internal/signaling"
	"github.com/courier-p2p/courier/internal/util"
)

var log = logging.Logger("courier/gateway")

// Deps are the stores the gateway dispatches into. All are constructed at
// startup and shared by both transports.
type Deps struct {
	Dir      *directory.Directory
	Hub      *hub.Hub
	Mail     *mailbox.Mailbox
	Relay    *signaling.Relay
	Calls    *signaling.Calls
	Groups   *group.Registry
	Channels *channel.Registry
	Blobs    *blobstore.Store
	Metrics  *metrics.Metrics
}

type Server struct {
	addr        string
	externalURL string
	bootstrapID string

	activeWindow time.Duration
	deps         Deps
	commands     map[string]command

	srv *http.Server
	ln  net.Listener
}

func New(cfg config.Config, deps Deps) *Server {
	s := &Server{
		addr:         cfg.Server.ListenAddr,
		externalURL:  cfg.Server.ExternalURL,
		bootstrapID:  cfg.Server.BootstrapID,
		activeWindow: time.Duration(cfg.Retention.PeerTTLSec) * time.Second,
		deps:         deps,
	}
	s.commands = s.buildCommands()
	return s
}

// Start binds the listener and serves until ctx ends. Non-blocking; the
// listener is up when Start returns nil.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api", s.handleAPI)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		mux.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		<-ctx.Done()
		shctx, cancel := context.WithTimeout(context.Background(), util.ShutdownTimeout)
		defer cancel()
		_ = s.srv.Shutdown(shctx)
	}()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("gateway server error: %v", err)
		}
	}()

	log.Infof("gateway listening on %s", ln.Addr())
	return nil
}

// URL returns the externally reachable base URL.
func (s *Server) URL() string {
	if s.externalURL != "" {
		return s.externalURL
	}
	if s.ln != nil {
		return "http://" + s.ln.Addr().String()
	}
	return "http://" + s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var uptime float64
	if s.deps.Metrics != nil {
		uptime = s.deps.Metrics.Uptime().Seconds()
	}

	w.Header().Set("content-type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":            true,
		"uptimeSeconds": int64(uptime),
		"activePeers":   len(s.deps.Dir.ListActive(s.activeWindow)),
	})
}
