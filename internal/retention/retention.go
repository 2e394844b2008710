// Package retention runs the periodic sweep that keeps the broker's
// in-memory state bounded: stale peers are evicted, queued signaling and
// call events past their windows are dropped even if never polled.
package retention

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/config"
	"github.com/courier-p2p/courier/internal/directory"
	"github.com/courier-p2p/courier/internal/mailbox"
	"github.com/courier-p2p/courier/internal/metrics"
	"github.com/courier-p2p/courier/internal/signaling"
)

var log = logging.Logger("courier/retention")

// Policy is the set of live-reloadable eviction windows.
type Policy struct {
	PeerTTL       time.Duration
	SweepInterval time.Duration
	Signal        time.Duration
	Call          time.Duration
	Mailbox       time.Duration
}

// PolicyFromConfig converts the config section into durations.
func PolicyFromConfig(r config.Retention) Policy {
	return Policy{
		PeerTTL:       time.Duration(r.PeerTTLSec) * time.Second,
		SweepInterval: time.Duration(r.SweepIntervalSec) * time.Second,
		Signal:        time.Duration(r.SignalSec) * time.Second,
		Call:          time.Duration(r.CallSec) * time.Second,
		Mailbox:       time.Duration(r.MailboxSec) * time.Second,
	}
}

// Scheduler sweeps the stores on a fixed interval. It runs on its own
// goroutine, holds no store locks between passes, and its only lifecycle
// hook is context cancellation at shutdown.
type Scheduler struct {
	clk   clock.Clock
	dir   *directory.Directory
	mail  *mailbox.Mailbox
	relay *signaling.Relay
	calls *signaling.Calls
	met   *metrics.Metrics

	mu     sync.Mutex
	policy Policy
}

func New(clk clock.Clock, dir *directory.Directory, mail *mailbox.Mailbox,
	relay *signaling.Relay, calls *signaling.Calls, met *metrics.Metrics, p Policy) *Scheduler {
	return &Scheduler{clk: clk, dir: dir, mail: mail, relay: relay, calls: calls, met: met, policy: p}
}

// SetPolicy swaps the eviction windows; the next pass uses them. The sweep
// interval itself is fixed at startup.
func (s *Scheduler) SetPolicy(p Policy) {
	s.mu.Lock()
	p.SweepInterval = s.policy.SweepInterval
	s.policy = p
	s.mu.Unlock()
}

// Run blocks until ctx is done, sweeping every policy interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	interval := s.policy.SweepInterval
	s.mu.Unlock()

	ticker := s.clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep runs one pass. O(total tracked entities); each store is locked only
// for its own portion, so request handling is never blocked across stores.
func (s *Scheduler) Sweep() {
	s.mu.Lock()
	p := s.policy
	s.mu.Unlock()

	now := s.clk.Now()

	evicted := s.dir.Evict(p.PeerTTL)
	for _, id := range evicted {
		log.Debugf("evicted stale peer %s", id)
	}

	dropped := s.mail.PruneOlderThan(now.Add(-p.Mailbox))
	dropped += s.relay.PruneOlderThan(now.Add(-p.Signal))
	dropped += s.calls.PruneOlderThan(now.Add(-p.Call))

	if s.met != nil {
		s.met.EvictedPeers.Add(float64(len(evicted)))
		s.met.SweepDrops.Add(float64(dropped))
	}
	if len(evicted) > 0 || dropped > 0 {
		log.Infof("sweep: evicted %d peers, dropped %d queued entries", len(evicted), dropped)
	}
}
