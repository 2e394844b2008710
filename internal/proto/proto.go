package proto

import "time"

// Frame types for the persistent-connection protocol. Every frame is a JSON
// object tagged with a "type" field.
const (
	FrameRegister     = "register"
	FrameRegistered   = "registered"
	FrameHeartbeat    = "heartbeat"
	FrameHeartbeatAck = "heartbeatAck"
	FrameFindPeer     = "findPeer"
	FramePeerSignal   = "peerSignal"
	FramePeerNotFound = "peerNotFound"
	FrameGetPeers     = "getPeers"
	FramePeersList    = "peersList"
	FrameSubscribe    = "subscribe"
	FrameMessage      = "message"
	FrameError        = "error"
)

// Call event kinds. The payload attached to any of these is opaque to the
// broker; offers, answers and candidates are encrypted client-side.
const (
	CallOffer  = "offer"
	CallAnswer = "answer"
	CallICE    = "ice"
	CallHangup = "hangup"
)

// Actions accepted by the stateless request/response endpoint.
const (
	ActRegister           = "register"
	ActHeartbeat          = "heartbeat"
	ActSendMessage        = "sendMessage"
	ActGetMessages        = "getMessages"
	ActStoreUserData      = "storeUserData"
	ActGetUserData        = "getUserData"
	ActGetActivePeers     = "getActivePeers"
	ActSearchUser         = "searchUser"
	ActPresenceUpdate     = "presenceUpdate"
	ActPresenceGet        = "presenceGet"
	ActSaveProfile        = "saveProfile"
	ActGetProfile         = "getProfile"
	ActSaveChats          = "saveChats"
	ActGetChats           = "getChats"
	ActSendSignaling      = "sendSignaling"
	ActGetSignaling       = "getSignaling"
	ActCallSend           = "callSend"
	ActCallPoll           = "callPoll"
	ActCallHangup         = "callHangup"
	ActGroupCreate        = "groupCreate"
	ActGroupJoin          = "groupJoin"
	ActGroupLeave         = "groupLeave"
	ActGroupSearch        = "groupSearch"
	ActGroupInfo          = "groupInfo"
	ActGroupSend          = "groupSend"
	ActGroupPoll          = "groupPoll"
	ActChannelCreate      = "channelCreate"
	ActChannelSubscribe   = "channelSubscribe"
	ActChannelUnsubscribe = "channelUnsubscribe"
	ActChannelSearch      = "channelSearch"
	ActChannelInfo        = "channelInfo"
	ActChannelPost        = "channelPost"
	ActChannelPoll        = "channelPoll"
	ActChannelReact       = "channelReact"
	ActChannelView        = "channelView"
	ActStatus             = "status"
)

// Frame is a persistent-protocol message. Unused fields are omitted on the
// wire; Signal and Payload are opaque to the broker.
type Frame struct {
	Type         string         `json:"type"`
	PeerID       string         `json:"peerId,omitempty"`
	BootstrapID  string         `json:"bootstrapId,omitempty"`
	TargetPeerID string         `json:"targetPeerId,omitempty"`
	FromPeerID   string         `json:"fromPeerId,omitempty"`
	Signal       any            `json:"signal,omitempty"`
	Info         map[string]any `json:"info,omitempty"`
	Peers        []PeerSummary  `json:"peers,omitempty"`
	Payload      any            `json:"payload,omitempty"`
	Error        string         `json:"error,omitempty"`
	TS           int64          `json:"ts,omitempty"`
}

// PeerSummary is the per-peer entry of a peersList frame and of the
// getActivePeers response.
type PeerSummary struct {
	PeerID   string `json:"peerId"`
	Role     string `json:"role,omitempty"`
	Name     string `json:"name,omitempty"`
	LastSeen int64  `json:"lastSeen"`
	Online   bool   `json:"online"`
}

func NowMillis() int64 { return time.Now().UnixMilli() }
