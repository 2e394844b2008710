package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/courier-p2p/courier/internal/hub"
	"github.com/courier-p2p/courier/internal/proto"
	"github.com/courier-p2p/courier/internal/util"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Peers dial from native apps and arbitrary origins; auth beyond the
	// caller-supplied peer id is out of scope.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWS runs the persistent-connection protocol: JSON frames tagged with
// "type" over one WebSocket. Domain errors are answered with an error frame
// and never drop the connection; only transport failures end the loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("ws upgrade: %v", err)
		return
	}

	sess := s.deps.Hub.NewSession(conn)
	peerID := ""

	defer func() {
		if peerID != "" {
			s.deps.Hub.Detach(peerID, sess)
		}
		sess.Close()
		log.Debugf("connection closed (peer %q)", peerID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var f proto.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "malformed frame"})
			continue
		}

		s.countFrame(f.Type)
		s.handleFrame(sess, &peerID, f)
	}
}

// handleFrame processes one inbound frame. A fault while handling it is
// converted to an error frame on this connection; other peers are unaffected.
func (s *Server) handleFrame(sess *hub.Session, peerID *string, f proto.Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("panic in frame %q: %v", f.Type, rec)
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "internal error"})
		}
	}()

	switch f.Type {
	case proto.FrameRegister:
		id, err := util.ValidateID(f.PeerID)
		if err != nil {
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "peerId required"})
			return
		}
		f.PeerID = id
		*peerID = f.PeerID
		s.deps.Dir.Register(f.PeerID, f.Info)
		s.deps.Hub.Attach(f.PeerID, sess)
		sess.Send(proto.Frame{
			Type:        proto.FrameRegistered,
			PeerID:      f.PeerID,
			BootstrapID: s.bootstrapID,
			TS:          proto.NowMillis(),
		})

	case proto.FrameSubscribe:
		// Alternate registration flavor: bind the connection and flush any
		// mail that queued up while the peer was offline.
		id, err := util.ValidateID(f.PeerID)
		if err != nil {
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "peerId required"})
			return
		}
		f.PeerID = id
		*peerID = f.PeerID
		s.deps.Dir.Register(f.PeerID, f.Info)
		s.deps.Hub.Attach(f.PeerID, sess)
		for _, msg := range s.deps.Mail.Fetch(f.PeerID) {
			sess.Send(proto.Frame{
				Type:       proto.FrameMessage,
				FromPeerID: msg.From,
				Payload:    msg.Payload,
				TS:         msg.TS,
			})
		}

	case proto.FrameHeartbeat:
		if *peerID == "" {
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "register first"})
			return
		}
		if err := s.deps.Dir.Heartbeat(*peerID); err != nil {
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "not found"})
			return
		}
		sess.Send(proto.Frame{Type: proto.FrameHeartbeatAck, TS: proto.NowMillis()})

	case proto.FrameFindPeer:
		if *peerID == "" {
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "register first"})
			return
		}
		if f.TargetPeerID == "" {
			sess.Send(proto.Frame{Type: proto.FrameError, Error: "targetPeerId required"})
			return
		}
		if _, known := s.deps.Dir.Get(f.TargetPeerID); !known {
			sess.Send(proto.Frame{Type: proto.FramePeerNotFound, TargetPeerID: f.TargetPeerID})
			return
		}
		// Push to the target when it is live, queue for it otherwise. The
		// sender gets no acknowledgement either way.
		s.deps.Relay.Send(*peerID, f.TargetPeerID, f.Signal)

	case proto.FrameGetPeers:
		peers := s.deps.Dir.ListActive(s.activeWindow)
		out := make([]proto.PeerSummary, 0, len(peers))
		for _, p := range peers {
			out = append(out, proto.PeerSummary{
				PeerID:   p.ID,
				Role:     p.Role,
				LastSeen: p.LastSeen.UnixMilli(),
				Online:   s.deps.Hub.IsConnected(p.ID),
			})
		}
		sess.Send(proto.Frame{Type: proto.FramePeersList, Peers: out})

	default:
		sess.Send(proto.Frame{Type: proto.FrameError, Error: "unknown frame type"})
	}
}

func (s *Server) countFrame(frameType string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Frames.WithLabelValues(frameType).Inc()
	}
}
