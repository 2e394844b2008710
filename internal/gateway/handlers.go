package gateway

import (
	"github.com/courier-p2p/courier/internal/proto"
	"github.com/courier-p2p/courier/internal/signaling"
	"github.com/courier-p2p/courier/internal/util"
)

func (s *Server) buildCommands() map[string]command {
	return map[string]command{
		proto.ActRegister:       {required: []string{"peerId"}, handle: s.actRegister},
		proto.ActHeartbeat:      {required: []string{"peerId"}, handle: s.actHeartbeat},
		proto.ActSendMessage:    {required: []string{"from", "to"}, handle: s.actSendMessage},
		proto.ActGetMessages:    {required: []string{"peerId"}, handle: s.actGetMessages},
		proto.ActStoreUserData:  {required: []string{"key"}, handle: s.actStoreUserData},
		proto.ActGetUserData:    {required: []string{"key"}, handle: s.actGetUserData},
		proto.ActGetActivePeers: {handle: s.actGetActivePeers},
		proto.ActSearchUser:     {required: []string{"query"}, handle: s.actSearchUser},
		proto.ActPresenceUpdate: {required: []string{"peerId"}, handle: s.actPresenceUpdate},
		proto.ActPresenceGet:    {required: []string{"peerIds"}, handle: s.actPresenceGet},
		proto.ActSaveProfile:    {required: []string{"peerId"}, handle: s.actSaveProfile},
		proto.ActGetProfile:     {required: []string{"peerId"}, handle: s.actGetProfile},
		proto.ActSaveChats:      {required: []string{"peerId"}, handle: s.actSaveChats},
		proto.ActGetChats:       {required: []string{"peerId"}, handle: s.actGetChats},
		proto.ActSendSignaling:  {required: []string{"from", "to"}, handle: s.actSendSignaling},
		proto.ActGetSignaling:   {required: []string{"peerId"}, handle: s.actGetSignaling},
		proto.ActCallSend:       {required: []string{"from", "to", "event"}, handle: s.actCallSend},
		proto.ActCallPoll:       {required: []string{"peerId"}, handle: s.actCallPoll},
		proto.ActCallHangup:     {required: []string{"from", "to", "callId"}, handle: s.actCallHangup},
		proto.ActStatus:         {handle: s.actStatus},

		proto.ActGroupCreate: {required: []string{"name", "ownerId"}, handle: s.actGroupCreate},
		proto.ActGroupJoin:   {required: []string{"groupId", "memberId"}, handle: s.actGroupJoin},
		proto.ActGroupLeave:  {required: []string{"groupId", "memberId"}, handle: s.actGroupLeave},
		proto.ActGroupSearch: {required: []string{"query"}, handle: s.actGroupSearch},
		proto.ActGroupInfo:   {required: []string{"groupId"}, handle: s.actGroupInfo},
		proto.ActGroupSend:   {required: []string{"groupId", "from"}, handle: s.actGroupSend},
		proto.ActGroupPoll:   {required: []string{"groupId"}, handle: s.actGroupPoll},

		proto.ActChannelCreate:      {required: []string{"name", "ownerId"}, handle: s.actChannelCreate},
		proto.ActChannelSubscribe:   {required: []string{"channelId", "peerId"}, handle: s.actChannelSubscribe},
		proto.ActChannelUnsubscribe: {required: []string{"channelId", "peerId"}, handle: s.actChannelUnsubscribe},
		proto.ActChannelSearch:      {required: []string{"query"}, handle: s.actChannelSearch},
		proto.ActChannelInfo:        {required: []string{"channelId"}, handle: s.actChannelInfo},
		proto.ActChannelPost:        {required: []string{"channelId", "from"}, handle: s.actChannelPost},
		proto.ActChannelPoll:        {required: []string{"channelId"}, handle: s.actChannelPoll},
		proto.ActChannelReact:       {required: []string{"channelId", "postId", "emoji", "userId"}, handle: s.actChannelReact},
		proto.ActChannelView:        {required: []string{"channelId", "postId"}, handle: s.actChannelView},
	}
}

// ─── Peer directory ──────────────────────────────────────────────────────────

func (s *Server) actRegister(r *Request) response {
	id, err := util.ValidateID(r.PeerID)
	if err != nil {
		return resError("peerId invalid")
	}
	r.PeerID = id
	s.deps.Dir.Register(r.PeerID, r.Info)
	return resOK(response{"peerId": r.PeerID, "bootstrapId": s.bootstrapID})
}

func (s *Server) actHeartbeat(r *Request) response {
	if err := s.deps.Dir.Heartbeat(r.PeerID); err != nil {
		return resFromErr(err)
	}
	return resOK(nil)
}

func (s *Server) actGetActivePeers(r *Request) response {
	peers := s.deps.Dir.ListActive(s.activeWindow)
	out := make([]proto.PeerSummary, 0, len(peers))
	for _, p := range peers {
		out = append(out, proto.PeerSummary{
			PeerID:   p.ID,
			Role:     p.Role,
			Name:     p.Name,
			LastSeen: p.LastSeen.UnixMilli(),
			Online:   s.deps.Hub.IsConnected(p.ID),
		})
	}
	return resOK(response{"peers": out, "count": len(out)})
}

func (s *Server) actSearchUser(r *Request) response {
	peers := s.deps.Dir.Search(r.Query)
	out := make([]proto.PeerSummary, 0, len(peers))
	for _, p := range peers {
		out = append(out, proto.PeerSummary{
			PeerID:   p.ID,
			Role:     p.Role,
			Name:     p.Name,
			LastSeen: p.LastSeen.UnixMilli(),
			Online:   s.deps.Hub.IsConnected(p.ID),
		})
	}
	return resOK(response{"peers": out, "count": len(out)})
}

// ─── Presence ────────────────────────────────────────────────────────────────

func (s *Server) actPresenceUpdate(r *Request) response {
	s.deps.Dir.UpdatePresence(r.PeerID, r.Typing, r.Recording, r.ChatID)
	return resOK(nil)
}

func (s *Server) actPresenceGet(r *Request) response {
	return resOK(response{"presence": s.deps.Dir.QueryPresence(r.PeerIDs)})
}

// ─── Mailbox ─────────────────────────────────────────────────────────────────

func (s *Server) actSendMessage(r *Request) response {
	payload := r.Message
	if payload == nil {
		payload = r.Payload
	}
	delivered, queued := s.deps.Mail.Send(r.From, r.To, payload)
	s.deps.Dir.Touch(r.From)
	return resOK(response{"delivered": delivered, "queued": queued})
}

func (s *Server) actGetMessages(r *Request) response {
	s.deps.Dir.Touch(r.PeerID)
	msgs := s.deps.Mail.Fetch(r.PeerID)
	return resOK(response{"messages": msgs, "count": len(msgs)})
}

// ─── Signaling ───────────────────────────────────────────────────────────────

func (s *Server) actSendSignaling(r *Request) response {
	payload := r.Signal
	if payload == nil {
		payload = r.Payload
	}
	// Queuing on a missed push is silent: the sender cannot distinguish a
	// live relay from a queued one, and must not try.
	s.deps.Relay.Send(r.From, r.To, payload)
	s.deps.Dir.Touch(r.From)
	return resOK(nil)
}

func (s *Server) actGetSignaling(r *Request) response {
	s.deps.Dir.Touch(r.PeerID)
	packets := s.deps.Relay.Drain(r.PeerID)
	return resOK(response{"signals": packets, "count": len(packets)})
}

// ─── Calls ───────────────────────────────────────────────────────────────────

func (s *Server) actCallSend(r *Request) response {
	s.deps.Calls.Send(signaling.Event{
		From:      r.From,
		To:        r.To,
		CallID:    r.CallID,
		Kind:      r.Event,
		MediaKind: r.MediaKind,
		Payload:   r.Payload,
	})
	s.deps.Dir.Touch(r.From)
	return resOK(nil)
}

func (s *Server) actCallPoll(r *Request) response {
	s.deps.Dir.Touch(r.PeerID)
	events := s.deps.Calls.Poll(r.PeerID)
	return resOK(response{"events": events, "count": len(events)})
}

func (s *Server) actCallHangup(r *Request) response {
	// Hangup is just a call event; both ends sending one for the same
	// callId is normal, and the recipient deduplicates if it cares.
	s.deps.Calls.Send(signaling.Event{
		From:   r.From,
		To:     r.To,
		CallID: r.CallID,
		Kind:   proto.CallHangup,
	})
	return resOK(nil)
}

// ─── Blob stores ─────────────────────────────────────────────────────────────

func (s *Server) actStoreUserData(r *Request) response {
	s.deps.Blobs.StoreUserData(r.Key, r.Data)
	return resOK(nil)
}

func (s *Server) actGetUserData(r *Request) response {
	data, found := s.deps.Blobs.GetUserData(r.Key)
	if !found {
		return resNotFound()
	}
	return resOK(response{"data": data})
}

func (s *Server) actSaveProfile(r *Request) response {
	s.deps.Blobs.SaveProfile(r.PeerID, r.Data)
	return resOK(nil)
}

func (s *Server) actGetProfile(r *Request) response {
	data, found := s.deps.Blobs.GetProfile(r.PeerID)
	if !found {
		return resNotFound()
	}
	return resOK(response{"profile": data})
}

func (s *Server) actSaveChats(r *Request) response {
	s.deps.Blobs.SaveChats(r.PeerID, r.Data)
	return resOK(nil)
}

func (s *Server) actGetChats(r *Request) response {
	data, found := s.deps.Blobs.GetChats(r.PeerID)
	if !found {
		return resNotFound()
	}
	return resOK(response{"chats": data})
}

// ─── Status ──────────────────────────────────────────────────────────────────

func (s *Server) actStatus(r *Request) response {
	var uptime int64
	if s.deps.Metrics != nil {
		uptime = int64(s.deps.Metrics.Uptime().Seconds())
	}
	return resOK(response{
		"activePeers":    len(s.deps.Dir.ListActive(s.activeWindow)),
		"connections":    s.deps.Hub.Count(),
		"queuedMessages": s.deps.Mail.Depth(),
		"groups":         s.deps.Groups.Len(),
		"channels":       s.deps.Channels.Len(),
		"uptimeSeconds":  uptime,
	})
}
