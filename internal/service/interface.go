package service

import (
	"context"

	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/hub"
)

// SignalService handles classroom signaling operations. It also observes the
// hub, so it must be installed as the hub's listener before the hub runs.
type SignalService interface {
	hub.Listener

	// HandleJoinRoom registers the client as a visible participant.
	HandleJoinRoom(ctx context.Context, client *hub.Client, msg *domain.JoinRoomMessage) error

	// HandleLeaveRoom removes the client from its room and any observed rooms.
	HandleLeaveRoom(ctx context.Context, client *hub.Client) error

	// HandleSignal relays an offer, answer or ice-candidate to its target.
	HandleSignal(ctx context.Context, client *hub.Client, msg *domain.SignalMessage) error

	// HandleChat relays a chat line to the room.
	HandleChat(ctx context.Context, client *hub.Client, msg *domain.SendChatMessage) error

	// HandleRaiseHand relays a raised hand to the room.
	HandleRaiseHand(ctx context.Context, client *hub.Client, msg *domain.RaiseHandMessage) error

	// HandleToggleMute sends a mute directive to one session.
	HandleToggleMute(ctx context.Context, client *hub.Client, msg *domain.ToggleMuteMessage) error

	// HandleDraw relays a whiteboard stroke to the room.
	HandleDraw(ctx context.Context, client *hub.Client, msg *domain.DrawMessage) error

	// HandleMuteAll tells everyone else in the room to mute.
	HandleMuteAll(ctx context.Context, client *hub.Client, msg *domain.RoomMessage) error

	// HandleStealthJoin lets the client observe a room without being listed.
	HandleStealthJoin(ctx context.Context, client *hub.Client, msg *domain.RoomMessage) error

	// Start starts background goroutines (lifecycle event publishing).
	Start(ctx context.Context) error

	// Stop flushes and stops background goroutines.
	Stop() error
}
