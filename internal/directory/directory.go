package directory

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/courier-p2p/courier/internal/util"
)

// ErrNotFound is returned for peers that were never registered or have
// already been evicted.
var ErrNotFound = errors.New("peer not found")

// DefaultOnlineWindow is how recently a peer must have been seen to count
// as online in presence queries.
const DefaultOnlineWindow = 30 * time.Second

// Peer is a registered peer. Ids are caller-supplied and opaque; the broker
// never verifies them (authentication is an explicit non-goal). LastSeen is
// monotonic non-decreasing.
type Peer struct {
	ID        string
	Role      string
	Name      string
	Fields    map[string]any // free-form registration metadata, stored verbatim
	LastSeen  time.Time
	Presence  Presence
	CreatedAt time.Time
}

// Presence is the best-effort typing/recording overlay on a peer.
type Presence struct {
	Typing       bool
	Recording    bool
	ActiveChatID string
}

// PresenceInfo is the per-peer result of a presence query.
type PresenceInfo struct {
	Online          bool   `json:"online"`
	LastSeenSeconds int64  `json:"lastSeenSeconds"`
	Typing          bool   `json:"typing"`
	Recording       bool   `json:"recording"`
	ChatID          string `json:"chatId,omitempty"`
}

// Directory is the peer registry: id -> peer record, mutex-guarded. All
// methods are safe for concurrent use.
type Directory struct {
	clk          clock.Clock
	onlineWindow time.Duration

	mu    sync.Mutex
	peers map[string]*Peer
}

func New(clk clock.Clock, onlineWindow time.Duration) *Directory {
	if onlineWindow <= 0 {
		onlineWindow = DefaultOnlineWindow
	}
	return &Directory{
		clk:          clk,
		onlineWindow: onlineWindow,
		peers:        map[string]*Peer{},
	}
}

// Register upserts a peer. Idempotent: a duplicate id overwrites metadata
// (last write wins) and resets lastSeen, never fails.
func (d *Directory) Register(id string, info map[string]any) {
	now := d.clk.Now()

	role, _ := info["role"].(string)
	name, _ := info["name"].(string)
	if name == "" {
		name, _ = info["displayName"].(string)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[id]
	if !ok {
		p = &Peer{ID: id, CreatedAt: now}
		d.peers[id] = p
	}
	if role != "" || !ok {
		p.Role = role
	}
	if name != "" || !ok {
		p.Name = name
	}
	if info != nil {
		p.Fields = info
	}
	p.touch(now)
}

// Heartbeat refreshes lastSeen. Returns ErrNotFound if the id was never
// registered or was already evicted.
func (d *Directory) Heartbeat(id string) error {
	now := d.clk.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[id]
	if !ok {
		return ErrNotFound
	}
	p.touch(now)
	return nil
}

// Touch refreshes lastSeen if the peer exists; unknown ids are ignored.
// Used by request paths that imply activity without being heartbeats.
func (d *Directory) Touch(id string) {
	now := d.clk.Now()
	d.mu.Lock()
	if p, ok := d.peers[id]; ok {
		p.touch(now)
	}
	d.mu.Unlock()
}

// Get returns a copy of the peer record.
func (d *Directory) Get(id string) (Peer, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.peers[id]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// ListActive returns peers seen within threshold, most recent first.
func (d *Directory) ListActive(threshold time.Duration) []Peer {
	cutoff := d.clk.Now().Add(-threshold)

	d.mu.Lock()
	out := make([]Peer, 0, len(d.peers))
	for _, p := range d.peers {
		if p.LastSeen.After(cutoff) {
			out = append(out, *p)
		}
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

// Evict removes peers not seen within threshold. Returns the removed ids.
func (d *Directory) Evict(threshold time.Duration) []string {
	cutoff := d.clk.Now().Add(-threshold)

	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []string
	for id, p := range d.peers {
		if !p.LastSeen.After(cutoff) {
			delete(d.peers, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Search returns peers whose id or display name contains query,
// case-insensitively.
func (d *Directory) Search(query string) []Peer {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []Peer
	for _, p := range d.peers {
		if util.ContainsFold(p.ID, query) || util.ContainsFold(p.Name, query) {
			out = append(out, *p)
		}
	}
	return out
}

// Len returns the number of tracked peers.
func (d *Directory) Len() int {
	d.mu.Lock()
	n := len(d.peers)
	d.mu.Unlock()
	return n
}

// touch advances lastSeen, never moves it backwards. Caller holds d.mu.
func (p *Peer) touch(now time.Time) {
	if now.After(p.LastSeen) {
		p.LastSeen = now
	}
}
