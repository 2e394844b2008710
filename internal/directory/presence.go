package directory

// UpdatePresence merges typing/recording/chat fields into the peer's presence
// overlay and refreshes lastSeen. Nil fields are left untouched. An unknown
// peer is created on the fly, since presence updates arrive over the stateless
// transport and may precede an explicit register.
func (d *Directory) UpdatePresence(id string, typing, recording *bool, chatID *string) {
	now := d.clk.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.peers[id]
	if !ok {
		p = &Peer{ID: id, CreatedAt: now}
		d.peers[id] = p
	}
	if typing != nil {
		p.Presence.Typing = *typing
	}
	if recording != nil {
		p.Presence.Recording = *recording
	}
	if chatID != nil {
		p.Presence.ActiveChatID = *chatID
	}
	p.touch(now)
}

// QueryPresence returns a snapshot per requested id. Unknown ids map to
// {online:false, lastSeenSeconds:0} rather than an error.
func (d *Directory) QueryPresence(ids []string) map[string]PresenceInfo {
	now := d.clk.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]PresenceInfo, len(ids))
	for _, id := range ids {
		p, ok := d.peers[id]
		if !ok {
			out[id] = PresenceInfo{}
			continue
		}
		out[id] = PresenceInfo{
			Online:          now.Sub(p.LastSeen) < d.onlineWindow,
			LastSeenSeconds: int64(now.Sub(p.LastSeen).Seconds()),
			Typing:          p.Presence.Typing,
			Recording:       p.Presence.Recording,
			ChatID:          p.Presence.ActiveChatID,
		}
	}
	return out
}
