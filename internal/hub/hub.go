package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"

	"github.com/courier-p2p/courier/internal/util"
)

var log = logging.Logger("courier/hub")

const sessionSendBuf = 64

// Hub tracks live per-peer connections and offers best-effort push. It holds
// only a weak view of connection state: dropping a session never touches the
// peer directory, since stateless registrations are connection-independent.
type Hub struct {
	pingInterval time.Duration
	pongTimeout  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func New(pingInterval, pongTimeout time.Duration) *Hub {
	return &Hub{
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		sessions:     map[string]*Session{},
	}
}

// Attach binds a session to a peer id. A newer connection for the same peer
// replaces the old one, which is closed.
func (h *Hub) Attach(peerID string, s *Session) {
	h.mu.Lock()
	old := h.sessions[peerID]
	h.sessions[peerID] = s
	h.mu.Unlock()

	if old != nil && old != s {
		old.Close()
		log.Debugf("replaced live connection for %s", peerID)
	}
}

// Detach clears the live-connection reference, but only if s is still the
// current session; a replacement connection must not be knocked out by the
// teardown of the one it replaced.
func (h *Hub) Detach(peerID string, s *Session) {
	h.mu.Lock()
	if h.sessions[peerID] == s {
		delete(h.sessions, peerID)
	}
	h.mu.Unlock()
}

// Send pushes a frame to the peer's live connection. Best-effort,
// at-most-once: returns false when there is no live connection or its
// outbound buffer is full. Never blocks.
func (h *Hub) Send(peerID string, frame any) bool {
	h.mu.Lock()
	s := h.sessions[peerID]
	h.mu.Unlock()

	if s == nil {
		return false
	}
	return s.send(frame)
}

// IsConnected reports whether the peer has a live connection.
func (h *Hub) IsConnected(peerID string) bool {
	h.mu.Lock()
	_, ok := h.sessions[peerID]
	h.mu.Unlock()
	return ok
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	n := len(h.sessions)
	h.mu.Unlock()
	return n
}

// Session wraps one WebSocket connection. Writes go through a buffered
// channel and a single writer goroutine, so concurrent pushes never race on
// the socket. Liveness is ping/pong: a missed pong trips the read deadline
// and the connection is torn down.
type Session struct {
	conn *websocket.Conn
	out  chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession starts the writer goroutine for conn and returns the session.
// The caller owns the read loop and must call Close when it ends.
func (h *Hub) NewSession(conn *websocket.Conn) *Session {
	s := &Session{
		conn: conn,
		out:  make(chan []byte, sessionSendBuf),
		done: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	go s.writePump(h.pingInterval)
	return s
}

func (s *Session) send(frame any) bool {
	b, err := json.Marshal(frame)
	if err != nil {
		log.Warnf("frame marshal: %v", err)
		return false
	}
	select {
	case s.out <- b:
		return true
	case <-s.done:
		return false
	default:
		// slow client; drop rather than block the sender
		return false
	}
}

// Send queues a frame on this session directly, bypassing the peer lookup.
// Used for replies on the connection a request arrived on.
func (s *Session) Send(frame any) bool { return s.send(frame) }

// Close tears the session down. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case b := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(util.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(util.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
