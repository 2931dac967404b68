package pubsub

import "fmt"

// ChannelRoomEvents carries lifecycle events of one classroom room.
const ChannelRoomEvents = "classroom:room:%s:events"

// Lifecycle event types.
const (
	EventRoomOpened        = "room_opened"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventRoomClosed        = "room_closed"
)

// RoomEventsChannel returns the channel name for a room's lifecycle events.
func RoomEventsChannel(roomID string) string {
	return fmt.Sprintf(ChannelRoomEvents, roomID)
}

// RoomPayload accompanies room_opened and room_closed.
type RoomPayload struct {
	RoomID string `json:"room_id"`
}

// ParticipantPayload accompanies participant_joined and participant_left.
type ParticipantPayload struct {
	RoomID      string `json:"room_id"`
	SessionID   string `json:"session_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	IsHost      bool   `json:"is_host"`
	Reason      string `json:"reason,omitempty"` // "leave" | "disconnect" | "rejoin"
	Remaining   int    `json:"remaining"`
}
