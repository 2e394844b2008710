package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courier-p2p/courier/internal/channel"
	"github.com/courier-p2p/courier/internal/directory"
	"github.com/courier-p2p/courier/internal/group"
)

// Request is the decoded body of a stateless call. One struct covers the
// whole closed action set; each command names the fields it requires and
// validation runs before its handler is entered, so a typo in the action
// name can only ever produce "unknown action", never a half-dispatch.
type Request struct {
	Action string `json:"action"`

	PeerID  string         `json:"peerId"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	Info    map[string]any `json:"info"`
	Message any            `json:"message"`
	Signal  any            `json:"signal"`
	Payload any            `json:"payload"`

	Key  string `json:"key"`
	Data any    `json:"data"`

	Query   string   `json:"query"`
	PeerIDs []string `json:"peerIds"`

	Typing    *bool   `json:"typing"`
	Recording *bool   `json:"recording"`
	ChatID    *string `json:"chatId"`

	CallID    string `json:"callId"`
	Event     string `json:"event"`
	MediaKind string `json:"mediaKind"`

	Name     string `json:"name"`
	OwnerID  string `json:"ownerId"`
	Username string `json:"username"`
	GroupKey any    `json:"groupKey"`
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
	Content  any    `json:"content"`
	Kind     string `json:"kind"`
	Since    int64  `json:"since"`

	ChannelID string `json:"channelId"`
	PostID    string `json:"postId"`
	Emoji     string `json:"emoji"`
	UserID    string `json:"userId"`
	Media     any    `json:"media"`
}

type response map[string]any

type command struct {
	required []string
	handle   func(*Request) response
}

// resOK builds a success response. Both success and ok are set: the two
// transports grew from sources that disagreed on the field name, and
// clients check one or the other.
func resOK(fields response) response {
	if fields == nil {
		fields = response{}
	}
	fields["success"] = true
	fields["ok"] = true
	return fields
}

func resMissing(field string) response {
	return response{"success": false, "error": field + " required"}
}

func resNotFound() response {
	return response{"ok": false, "error": "not found"}
}

func resError(msg string) response {
	return response{"success": false, "error": msg}
}

// resFromErr maps store sentinel errors onto the wire taxonomy.
func resFromErr(err error) response {
	switch {
	case errors.Is(err, directory.ErrNotFound),
		errors.Is(err, group.ErrNotFound),
		errors.Is(err, channel.ErrNotFound):
		return resNotFound()
	case errors.Is(err, channel.ErrNotOwner):
		return response{"ok": false, "error": "not owner"}
	case errors.Is(err, group.ErrUsernameTaken),
		errors.Is(err, channel.ErrUsernameTaken):
		return resError("username taken")
	default:
		return resError("internal error")
	}
}

// handleAPI is the single dispatch point for the stateless transport.
// Domain failures ride an HTTP 200; only transport-level problems (bad
// method, unreadable JSON) surface as HTTP errors.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	res := s.dispatch(&req)

	w.Header().Set("content-type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(res)
}

func (s *Server) dispatch(req *Request) (res response) {
	// A fault in one request must never take down the shared process or
	// leak into another peer's state. Convert to a generic failure.
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("panic in action %q: %v", req.Action, rec)
			res = resError("internal error")
		}
	}()

	cmd, ok := s.commands[req.Action]
	if !ok {
		s.countAction(req.Action, "unknown")
		return resError("unknown action")
	}

	for _, field := range cmd.required {
		if !req.has(field) {
			s.countAction(req.Action, "invalid")
			return resMissing(field)
		}
	}

	res = cmd.handle(req)
	if ok, _ := res["success"].(bool); ok {
		s.countAction(req.Action, "ok")
	} else if ok, _ := res["ok"].(bool); ok {
		s.countAction(req.Action, "ok")
	} else {
		s.countAction(req.Action, "error")
	}
	return res
}

func (s *Server) countAction(action, outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.Actions.WithLabelValues(action, outcome).Inc()
	}
}

// has reports whether a required field is present and non-empty.
func (r *Request) has(field string) bool {
	switch field {
	case "peerId":
		return r.PeerID != ""
	case "from":
		return r.From != ""
	case "to":
		return r.To != ""
	case "key":
		return r.Key != ""
	case "query":
		return r.Query != ""
	case "peerIds":
		return len(r.PeerIDs) > 0
	case "callId":
		return r.CallID != ""
	case "event":
		return r.Event != ""
	case "name":
		return r.Name != ""
	case "ownerId":
		return r.OwnerID != ""
	case "groupId":
		return r.GroupID != ""
	case "memberId":
		return r.MemberID != ""
	case "channelId":
		return r.ChannelID != ""
	case "postId":
		return r.PostID != ""
	case "emoji":
		return r.Emoji != ""
	case "userId":
		return r.UserID != ""
	default:
		return false
	}
}
