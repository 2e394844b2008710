// Package channel is the one-to-many counterpart of package group: a single
// owner posts, subscribers poll. Posts carry reaction sets and a best-effort
// view counter.
package channel

import (
	"errors"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/util"
)

var log = logging.Logger("courier/channel")

var (
	ErrNotFound      = errors.New("channel not found")
	ErrNotOwner      = errors.New("not owner")
	ErrUsernameTaken = errors.New("username already taken")
)

// Post is one channel entry. Views is a monotonic counter with no per-user
// deduplication: a client reporting the same view twice inflates the count,
// and that is the documented behavior, not corrected here.
type Post struct {
	ID        string              `json:"id"`
	ChannelID string              `json:"channelId"`
	Content   any                 `json:"content"`
	Media     any                 `json:"media,omitempty"`
	TS        int64               `json:"timestamp"`
	Views     int64               `json:"views"`
	Reactions map[string][]string `json:"reactions,omitempty"`
}

// Info is the wire-facing view of a channel.
type Info struct {
	ID              string `json:"channelId"`
	Name            string `json:"name"`
	Username        string `json:"username,omitempty"`
	OwnerID         string `json:"ownerId"`
	SubscriberCount int    `json:"subscriberCount"`
	CreatedAt       int64  `json:"createdAt"`
}

type post struct {
	id      string
	content any
	media   any
	ts      int64
	views   int64
	// emoji -> set of user ids; set semantics make React idempotent
	reactions map[string]map[string]struct{}
}

type channelState struct {
	mu          sync.Mutex
	id          string
	name        string
	username    string
	ownerID     string
	createdAt   int64
	subscribers map[string]struct{}
	posts       *util.RingBuffer[*post]
}

// Registry is the channel directory. Same locking shape as the group
// registry: registry mutex for the maps, per-channel mutex for everything
// inside one channel (including post mutation: reactions and view counts
// change posts in place).
type Registry struct {
	clk    clock.Clock
	logCap int

	mu        sync.Mutex
	channels  map[string]*channelState
	usernames map[string]string
}

func NewRegistry(clk clock.Clock, logCap int) *Registry {
	return &Registry{
		clk:       clk,
		logCap:    logCap,
		channels:  map[string]*channelState{},
		usernames: map[string]string{},
	}
}

// Create registers a channel and returns its id. The owner is an implicit
// subscriber.
func (r *Registry) Create(name, ownerID, username string) (string, error) {
	c := &channelState{
		id:          uuid.NewString(),
		name:        name,
		username:    username,
		ownerID:     ownerID,
		createdAt:   r.clk.Now().UnixMilli(),
		subscribers: map[string]struct{}{ownerID: {}},
		posts:       util.NewRingBuffer[*post](r.logCap),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if username != "" {
		if _, taken := r.usernames[username]; taken {
			return "", ErrUsernameTaken
		}
		r.usernames[username] = c.id
	}
	r.channels[c.id] = c

	log.Infof("channel created: %s (%q) by %s", c.id, name, ownerID)
	return c.id, nil
}

// Subscribe adds the peer to the subscriber set. Idempotent.
func (r *Registry) Subscribe(channelID, peerID string) (Info, error) {
	c, err := r.get(channelID)
	if err != nil {
		return Info{}, err
	}
	c.mu.Lock()
	c.subscribers[peerID] = struct{}{}
	info := c.info()
	c.mu.Unlock()
	return info, nil
}

// Unsubscribe removes the peer. Idempotent.
func (r *Registry) Unsubscribe(channelID, peerID string) error {
	c, err := r.get(channelID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.subscribers, peerID)
	c.mu.Unlock()
	return nil
}

// Post appends a post. Only the channel owner may post; anyone else gets
// ErrNotOwner.
func (r *Registry) Post(channelID, from string, content, media any) (string, error) {
	c, err := r.get(channelID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if from != c.ownerID {
		return "", ErrNotOwner
	}
	p := &post{
		id:        uuid.NewString(),
		content:   content,
		media:     media,
		ts:        r.clk.Now().UnixMilli(),
		reactions: map[string]map[string]struct{}{},
	}
	c.posts.Push(p)
	return p.id, nil
}

// Poll returns posts with timestamp strictly greater than since.
func (r *Registry) Poll(channelID string, since int64) ([]Post, error) {
	c, err := r.get(channelID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	all := c.posts.Snapshot()
	out := make([]Post, 0, len(all))
	for _, p := range all {
		if p.ts > since {
			out = append(out, p.view(channelID))
		}
	}
	return out, nil
}

// React adds userID to the post's reaction set for emoji. Idempotent: the
// same user reacting twice with the same emoji changes nothing.
func (r *Registry) React(channelID, postID, emoji, userID string) error {
	c, err := r.get(channelID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.find(postID)
	if p == nil {
		return ErrNotFound
	}
	set, ok := p.reactions[emoji]
	if !ok {
		set = map[string]struct{}{}
		p.reactions[emoji] = set
	}
	set[userID] = struct{}{}
	return nil
}

// View increments the post's view counter unconditionally.
func (r *Registry) View(channelID, postID string) (int64, error) {
	c, err := r.get(channelID)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.find(postID)
	if p == nil {
		return 0, ErrNotFound
	}
	p.views++
	return p.views, nil
}

// Search matches query case-insensitively against channel names and
// usernames.
func (r *Registry) Search(query string) []Info {
	r.mu.Lock()
	states := make([]*channelState, 0, len(r.channels))
	for _, c := range r.channels {
		states = append(states, c)
	}
	r.mu.Unlock()

	var out []Info
	for _, c := range states {
		c.mu.Lock()
		if util.ContainsFold(c.name, query) || util.ContainsFold(c.username, query) {
			out = append(out, c.info())
		}
		c.mu.Unlock()
	}
	return out
}

// Info returns the channel's public view.
func (r *Registry) Info(channelID string) (Info, error) {
	c, err := r.get(channelID)
	if err != nil {
		return Info{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info(), nil
}

// Len returns the number of channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func (r *Registry) get(channelID string) (*channelState, error) {
	r.mu.Lock()
	c, ok := r.channels[channelID]
	r.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// find scans the post log for id. Logs are capped at a few hundred entries,
// a linear scan is fine. Caller holds c.mu.
func (c *channelState) find(postID string) *post {
	for _, p := range c.posts.Snapshot() {
		if p.id == postID {
			return p
		}
	}
	return nil
}

// info builds the public view. Caller holds c.mu.
func (c *channelState) info() Info {
	return Info{
		ID:              c.id,
		Name:            c.name,
		Username:        c.username,
		OwnerID:         c.ownerID,
		SubscriberCount: len(c.subscribers),
		CreatedAt:       c.createdAt,
	}
}

// view builds the wire copy of a post. Caller holds the channel mutex.
func (p *post) view(channelID string) Post {
	var reactions map[string][]string
	if len(p.reactions) > 0 {
		reactions = make(map[string][]string, len(p.reactions))
		for emoji, set := range p.reactions {
			users := make([]string, 0, len(set))
			for u := range set {
				users = append(users, u)
			}
			reactions[emoji] = users
		}
	}
	return Post{
		ID:        p.id,
		ChannelID: channelID,
		Content:   p.content,
		Media:     p.media,
		TS:        p.ts,
		Views:     p.views,
		Reactions: reactions,
	}
}
