package gateway

import "github.com/courier-p2p/courier/internal/util"

// Group and channel fan-out actions.

func (s *Server) actGroupCreate(r *Request) response {
	if len(r.Name) > util.MaxNameLen {
		return resError("name too long")
	}
	id, err := s.deps.Groups.Create(r.Name, r.OwnerID, r.Username, r.GroupKey)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{"groupId": id})
}

func (s *Server) actGroupJoin(r *Request) response {
	info, err := s.deps.Groups.Join(r.GroupID, r.MemberID)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{
		"group":       info,
		"groupKey":    info.KeyBlob,
		"memberCount": info.MemberCount,
	})
}

func (s *Server) actGroupLeave(r *Request) response {
	if err := s.deps.Groups.Leave(r.GroupID, r.MemberID); err != nil {
		return resFromErr(err)
	}
	return resOK(nil)
}

func (s *Server) actGroupSearch(r *Request) response {
	groups := s.deps.Groups.Search(r.Query)
	return resOK(response{"groups": groups, "count": len(groups)})
}

func (s *Server) actGroupInfo(r *Request) response {
	info, err := s.deps.Groups.Info(r.GroupID)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{
		"groupId":     info.ID,
		"name":        info.Name,
		"username":    info.Username,
		"ownerId":     info.OwnerID,
		"memberCount": info.MemberCount,
		"createdAt":   info.CreatedAt,
	})
}

func (s *Server) actGroupSend(r *Request) response {
	msgID, err := s.deps.Groups.Send(r.GroupID, r.From, r.Content, r.Kind)
	if err != nil {
		return resFromErr(err)
	}
	s.deps.Dir.Touch(r.From)
	return resOK(response{"messageId": msgID})
}

func (s *Server) actGroupPoll(r *Request) response {
	msgs, err := s.deps.Groups.Poll(r.GroupID, r.Since)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{"messages": msgs, "count": len(msgs)})
}

func (s *Server) actChannelCreate(r *Request) response {
	if len(r.Name) > util.MaxNameLen {
		return resError("name too long")
	}
	id, err := s.deps.Channels.Create(r.Name, r.OwnerID, r.Username)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{"channelId": id})
}

func (s *Server) actChannelSubscribe(r *Request) response {
	info, err := s.deps.Channels.Subscribe(r.ChannelID, r.PeerID)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{"channel": info, "subscriberCount": info.SubscriberCount})
}

func (s *Server) actChannelUnsubscribe(r *Request) response {
	if err := s.deps.Channels.Unsubscribe(r.ChannelID, r.PeerID); err != nil {
		return resFromErr(err)
	}
	return resOK(nil)
}

func (s *Server) actChannelSearch(r *Request) response {
	channels := s.deps.Channels.Search(r.Query)
	return resOK(response{"channels": channels, "count": len(channels)})
}

func (s *Server) actChannelInfo(r *Request) response {
	info, err := s.deps.Channels.Info(r.ChannelID)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{
		"channelId":       info.ID,
		"name":            info.Name,
		"username":        info.Username,
		"ownerId":         info.OwnerID,
		"subscriberCount": info.SubscriberCount,
		"createdAt":       info.CreatedAt,
	})
}

func (s *Server) actChannelPost(r *Request) response {
	postID, err := s.deps.Channels.Post(r.ChannelID, r.From, r.Content, r.Media)
	if err != nil {
		return resFromErr(err)
	}
	s.deps.Dir.Touch(r.From)
	return resOK(response{"postId": postID})
}

func (s *Server) actChannelPoll(r *Request) response {
	posts, err := s.deps.Channels.Poll(r.ChannelID, r.Since)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{"posts": posts, "count": len(posts)})
}

func (s *Server) actChannelReact(r *Request) response {
	if err := s.deps.Channels.React(r.ChannelID, r.PostID, r.Emoji, r.UserID); err != nil {
		return resFromErr(err)
	}
	return resOK(nil)
}

func (s *Server) actChannelView(r *Request) response {
	views, err := s.deps.Channels.View(r.ChannelID, r.PostID)
	if err != nil {
		return resFromErr(err)
	}
	return resOK(response{"views": views})
}
