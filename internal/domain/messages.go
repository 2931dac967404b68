package domain

import "encoding/json"

// MessageKind is the "type" tag carried by every WebSocket frame.
type MessageKind string

// Client -> server kinds.
const (
	KindJoinRoom     MessageKind = "join-room"
	KindLeaveRoom    MessageKind = "leave-room"
	KindOffer        MessageKind = "offer"
	KindAnswer       MessageKind = "answer"
	KindICECandidate MessageKind = "ice-candidate"
	KindSendMessage  MessageKind = "send-message"
	KindRaiseHand    MessageKind = "raise-hand"
	KindToggleMute   MessageKind = "toggle-mute"
	KindDraw         MessageKind = "draw"
	KindMuteAll      MessageKind = "mute-all"
	KindStealthJoin  MessageKind = "stealth-join"
	KindPing         MessageKind = "ping"
)

// Server -> client kinds. offer, answer, ice-candidate, toggle-mute, draw
// and mute-all are echoed under their inbound names.
const (
	KindSession          MessageKind = "session"
	KindUserConnected    MessageKind = "user-connected"
	KindExistingUsers    MessageKind = "existing-users"
	KindReceiveMessage   MessageKind = "receive-message"
	KindHandRaised       MessageKind = "hand-raised"
	KindUserDisconnected MessageKind = "user-disconnected"
	KindPong             MessageKind = "pong"
	KindError            MessageKind = "error"
)

var inboundKinds = []MessageKind{
	KindJoinRoom,
	KindLeaveRoom,
	KindOffer,
	KindAnswer,
	KindICECandidate,
	KindSendMessage,
	KindRaiseHand,
	KindToggleMute,
	KindDraw,
	KindMuteAll,
	KindStealthJoin,
	KindPing,
}

// InboundKinds returns every kind a client may send.
func InboundKinds() []MessageKind {
	out := make([]MessageKind, len(inboundKinds))
	copy(out, inboundKinds)
	return out
}

// IsSignaling reports whether k is a peer negotiation message.
func (k MessageKind) IsSignaling() bool {
	return k == KindOffer || k == KindAnswer || k == KindICECandidate
}

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type MessageKind `json:"type"`
}

// Client -> Server messages

// JoinRoomMessage registers the sender as a visible participant.
type JoinRoomMessage struct {
	Type        MessageKind `json:"type"`
	RoomID      string      `json:"room_id"`
	UserID      string      `json:"user_id"`
	DisplayName string      `json:"display_name"`
	IsHost      bool        `json:"is_host,omitempty"`
}

// SignalMessage is an offer, answer or ice-candidate addressed to one session.
// Offers and answers carry sdp, candidates carry candidate.
type SignalMessage struct {
	Type        MessageKind     `json:"type"`
	Target      string          `json:"target"`
	SDP         json.RawMessage `json:"sdp,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
}

// Payload returns the opaque negotiation body for the message kind.
func (m *SignalMessage) Payload() json.RawMessage {
	if m.Type == KindICECandidate {
		return m.Candidate
	}
	return m.SDP
}

// SendChatMessage is a chat line for the rest of the room.
type SendChatMessage struct {
	Type    MessageKind `json:"type"`
	RoomID  string      `json:"room_id"`
	User    string      `json:"user"`
	Message string      `json:"message"`
}

// RaiseHandMessage notifies the room that a participant raised a hand.
type RaiseHandMessage struct {
	Type          MessageKind `json:"type"`
	RoomID        string      `json:"room_id"`
	ParticipantID string      `json:"participant_id"`
	DisplayName   string      `json:"display_name"`
}

// ToggleMuteMessage asks one session to change its microphone state.
type ToggleMuteMessage struct {
	Type   MessageKind `json:"type"`
	Target string      `json:"target"`
	Muted  bool        `json:"muted"`
}

// DrawMessage carries one opaque whiteboard stroke.
type DrawMessage struct {
	Type   MessageKind     `json:"type"`
	RoomID string          `json:"room_id"`
	Stroke json.RawMessage `json:"stroke"`
}

// RoomMessage is used by mute-all and stealth-join, which only name a room.
type RoomMessage struct {
	Type   MessageKind `json:"type"`
	RoomID string      `json:"room_id"`
}

// Server -> Client messages

// SessionMessage tells a freshly connected client its own session handle.
type SessionMessage struct {
	Type      MessageKind `json:"type"`
	SessionID string      `json:"session_id"`
}

// ParticipantInfo is the public view of a Participant.
type ParticipantInfo struct {
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsHost      bool   `json:"is_host"`
}

// ExistingUsersMessage answers a join with everyone already present.
type ExistingUsersMessage struct {
	Type   MessageKind       `json:"type"`
	RoomID string            `json:"room_id"`
	Users  []ParticipantInfo `json:"users"`
}

// UserConnectedMessage announces a new participant to the room.
type UserConnectedMessage struct {
	Type   MessageKind     `json:"type"`
	RoomID string          `json:"room_id"`
	User   ParticipantInfo `json:"user"`
}

// UserDisconnectedMessage announces a departure to the room.
type UserDisconnectedMessage struct {
	Type      MessageKind `json:"type"`
	RoomID    string      `json:"room_id"`
	SessionID string      `json:"session_id"`
}

// SignalRelay is a negotiation message as delivered to its target.
type SignalRelay struct {
	Type        MessageKind     `json:"type"`
	From        string          `json:"from"`
	DisplayName string          `json:"display_name,omitempty"`
	SDP         json.RawMessage `json:"sdp,omitempty"`
	Candidate   json.RawMessage `json:"candidate,omitempty"`
}

// NewSignalRelay builds the delivered form of a negotiation message; payload
// is placed under the field matching kind and is never inspected.
func NewSignalRelay(kind MessageKind, from, displayName string, payload json.RawMessage) *SignalRelay {
	r := &SignalRelay{Type: kind, From: from, DisplayName: displayName}
	if kind == KindICECandidate {
		r.Candidate = payload
	} else {
		r.SDP = payload
	}
	return r
}

// ReceiveChatMessage is a relayed chat line.
type ReceiveChatMessage struct {
	Type    MessageKind `json:"type"`
	RoomID  string      `json:"room_id"`
	From    string      `json:"from"`
	User    string      `json:"user"`
	Message string      `json:"message"`
}

// HandRaisedMessage is a relayed raise-hand notice.
type HandRaisedMessage struct {
	Type          MessageKind `json:"type"`
	RoomID        string      `json:"room_id"`
	From          string      `json:"from"`
	ParticipantID string      `json:"participant_id"`
	DisplayName   string      `json:"display_name"`
}

// ToggleMuteDirective is a relayed mute instruction for one session.
type ToggleMuteDirective struct {
	Type  MessageKind `json:"type"`
	From  string      `json:"from"`
	Muted bool        `json:"muted"`
}

// DrawRelay is a relayed whiteboard stroke.
type DrawRelay struct {
	Type   MessageKind     `json:"type"`
	RoomID string          `json:"room_id"`
	From   string          `json:"from"`
	Stroke json.RawMessage `json:"stroke"`
}

// MuteAllDirective tells every receiver to mute itself.
type MuteAllDirective struct {
	Type   MessageKind `json:"type"`
	RoomID string      `json:"room_id"`
	From   string      `json:"from"`
}

// ErrorMessage is sent when a frame cannot be processed.
type ErrorMessage struct {
	Type    MessageKind `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest = "BAD_REQUEST"
	ErrCodeForbidden  = "FORBIDDEN"
)

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    KindError,
		Code:    code,
		Message: message,
	}
}
