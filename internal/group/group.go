// Package group holds the broker-side group fan-out state: membership sets,
// the opaque group-key blob, and a capped per-group message log polled by
// members. Groups live until process restart; there is no durability.
package group

import (
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/util"
)

var log = logging.Logger("courier/group")

var (
	ErrNotFound      = errors.New("group not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// Message is one log entry. Content is ciphertext produced client-side under
// the group key; the broker stores and serves it verbatim.
type Message struct {
	ID      string `json:"id"`
	GroupID string `json:"groupId"`
	From    string `json:"fromPeerId"`
	Content any    `json:"content"`
	Kind    string `json:"kind,omitempty"`
	TS      int64  `json:"timestamp"`
}

// Info is the wire-facing view of a group. KeyBlob is only populated on
// join responses; listing and search never leak it.
type Info struct {
	ID          string `json:"groupId"`
	Name        string `json:"name"`
	Username    string `json:"username,omitempty"`
	OwnerID     string `json:"ownerId"`
	MemberCount int    `json:"memberCount"`
	CreatedAt   int64  `json:"createdAt"`
	KeyBlob     any    `json:"groupKey,omitempty"`
}

type groupState struct {
	mu       sync.Mutex
	id       string
	name     string
	username string
	ownerID  string
	// keyBlob is stored exactly as the creating client supplied it. Whether
	// it is pre-encrypted per member is the clients' contract; the broker
	// cannot and does not check.
	keyBlob   any
	createdAt int64
	members   map[string]struct{}
	msgs      *util.RingBuffer[Message]
}

// Registry is the group directory. The registry mutex guards the id and
// username maps; each group's own mutex serializes its membership, so two
// groups never contend and no cross-group lock ordering exists.
type Registry struct {
	clk    clock.Clock
	logCap int

	mu        sync.Mutex
	groups    map[string]*groupState
	usernames map[string]string // username -> groupId, case-sensitive
}

func NewRegistry(clk clock.Clock, logCap int) *Registry {
	return &Registry{
		clk:       clk,
		logCap:    logCap,
		groups:    map[string]*groupState{},
		usernames: map[string]string{},
	}
}

// Create registers a new group and returns its id. The owner is an implicit
// member. A username already held by another group is rejected (exact,
// case-sensitive match). Ids are UUIDs, collision-free under concurrent
// creates.
func (r *Registry) Create(name, ownerID, username string, keyBlob any) (string, error) {
	g := &groupState{
		id:        uuid.NewString(),
		name:      name,
		username:  username,
		ownerID:   ownerID,
		keyBlob:   keyBlob,
		createdAt: r.clk.Now().UnixMilli(),
		members:   map[string]struct{}{ownerID: {}},
		msgs:      util.NewRingBuffer[Message](r.logCap),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if username != "" {
		if _, taken := r.usernames[username]; taken {
			return "", ErrUsernameTaken
		}
		r.usernames[username] = g.id
	}
	r.groups[g.id] = g

	log.Infof("group created: %s (%q) by %s", g.id, name, ownerID)
	return g.id, nil
}

// Join adds the member (idempotent) and returns the group info including the
// key blob, which the joining client needs to decrypt the log.
func (r *Registry) Join(groupID, memberID string) (Info, error) {
	g, err := r.get(groupID)
	if err != nil {
		return Info{}, err
	}

	g.mu.Lock()
	g.members[memberID] = struct{}{}
	info := g.info()
	g.mu.Unlock()

	info.KeyBlob = g.keyBlob
	return info, nil
}

// Leave removes the member. Idempotent; leaving a group you are not in is
// a no-op.
func (r *Registry) Leave(groupID, memberID string) error {
	g, err := r.get(groupID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.members, memberID)
	g.mu.Unlock()
	return nil
}

// Send appends a message to the group log and returns its id. When the log
// is at capacity the oldest entry is evicted.
func (r *Registry) Send(groupID, from string, content any, kind string) (string, error) {
	g, err := r.get(groupID)
	if err != nil {
		return "", err
	}
	msg := Message{
		ID:      uuid.NewString(),
		GroupID: groupID,
		From:    from,
		Content: content,
		Kind:    kind,
		TS:      r.clk.Now().UnixMilli(),
	}
	g.msgs.Push(msg)
	return msg.ID, nil
}

// Poll returns log entries with timestamp strictly greater than since.
// Entries sharing a timestamp have no defined order among themselves.
func (r *Registry) Poll(groupID string, since int64) ([]Message, error) {
	g, err := r.get(groupID)
	if err != nil {
		return nil, err
	}
	all := g.msgs.Snapshot()
	out := make([]Message, 0, len(all))
	for _, m := range all {
		if m.TS > since {
			out = append(out, m)
		}
	}
	return out, nil
}

// Search matches query case-insensitively against group names and usernames.
func (r *Registry) Search(query string) []Info {
	r.mu.Lock()
	states := make([]*groupState, 0, len(r.groups))
	for _, g := range r.groups {
		states = append(states, g)
	}
	r.mu.Unlock()

	var out []Info
	for _, g := range states {
		g.mu.Lock()
		if util.ContainsFold(g.name, query) || util.ContainsFold(g.username, query) {
			out = append(out, g.info())
		}
		g.mu.Unlock()
	}
	return out
}

// Info returns the group's public view.
func (r *Registry) Info(groupID string) (Info, error) {
	g, err := r.get(groupID)
	if err != nil {
		return Info{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.info(), nil
}

// Len returns the number of groups.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

func (r *Registry) get(groupID string) (*groupState, error) {
	r.mu.Lock()
	g, ok := r.groups[groupID]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return g, nil
}

// info builds the public view. Caller holds g.mu.
func (g *groupState) info() Info {
	return Info{
		ID:          g.id,
		Name:        g.name,
		Username:    g.username,
		OwnerID:     g.ownerID,
		MemberCount: len(g.members),
		CreatedAt:   g.createdAt,
	}
}
