package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiawesome/classroom-signal/internal/audit"
	"github.com/weiawesome/classroom-signal/internal/config"
	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/events"
	"github.com/weiawesome/classroom-signal/internal/hub"
	"github.com/weiawesome/classroom-signal/internal/metrics"
	"github.com/weiawesome/classroom-signal/internal/registry"
	pkglog "github.com/weiawesome/classroom-signal/pkg/log"
)

type signalService struct {
	hub      *hub.Hub
	metrics  metrics.Collector
	notifier *events.Notifier
	config   config.ClassroomConfig
}

// NewSignalService creates a new SignalService instance and installs it as
// the listener of h. notifier may be nil when lifecycle events are disabled.
func NewSignalService(
	h *hub.Hub,
	collector metrics.Collector,
	notifier *events.Notifier,
	cfg config.ClassroomConfig,
) SignalService {
	s := &signalService{
		hub:      h,
		metrics:  collector,
		notifier: notifier,
		config:   cfg,
	}
	h.SetListener(s)
	return s
}

func (s *signalService) HandleJoinRoom(ctx context.Context, c *hub.Client, msg *domain.JoinRoomMessage) error {
	if msg.RoomID == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "room_id is required")
	}

	_, ok := s.hub.Join(c, msg.RoomID, domain.Participant{
		UserID:      msg.UserID,
		DisplayName: msg.DisplayName,
		IsHost:      msg.IsHost,
	})
	if !ok {
		return fmt.Errorf("join room %s: %w", msg.RoomID, ErrClosed)
	}
	return nil
}

func (s *signalService) HandleLeaveRoom(ctx context.Context, c *hub.Client) error {
	s.hub.Leave(c)
	return nil
}

func (s *signalService) HandleSignal(ctx context.Context, c *hub.Client, msg *domain.SignalMessage) error {
	if !msg.Type.IsSignaling() {
		return s.reject(c, msg.Type, ErrBadRequest, "not a signaling message")
	}
	if msg.Target == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "target is required")
	}

	relay := domain.NewSignalRelay(msg.Type, c.ID, msg.DisplayName, msg.Payload())
	s.unicast(ctx, c, msg.Type, msg.Target, relay)
	return nil
}

func (s *signalService) HandleChat(ctx context.Context, c *hub.Client, msg *domain.SendChatMessage) error {
	if msg.RoomID == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "room_id is required")
	}

	s.broadcast(domain.KindReceiveMessage, msg.RoomID, c.ID, &domain.ReceiveChatMessage{
		Type:    domain.KindReceiveMessage,
		RoomID:  msg.RoomID,
		From:    c.ID,
		User:    msg.User,
		Message: msg.Message,
	})
	return nil
}

func (s *signalService) HandleRaiseHand(ctx context.Context, c *hub.Client, msg *domain.RaiseHandMessage) error {
	if msg.RoomID == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "room_id is required")
	}

	participantID := msg.ParticipantID
	if participantID == "" {
		participantID = c.ID
	}

	s.broadcast(domain.KindHandRaised, msg.RoomID, c.ID, &domain.HandRaisedMessage{
		Type:          domain.KindHandRaised,
		RoomID:        msg.RoomID,
		From:          c.ID,
		ParticipantID: participantID,
		DisplayName:   msg.DisplayName,
	})
	return nil
}

func (s *signalService) HandleToggleMute(ctx context.Context, c *hub.Client, msg *domain.ToggleMuteMessage) error {
	if msg.Target == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "target is required")
	}
	if err := s.requireHost(ctx, c, msg.Type, s.roomOf(msg.Target)); err != nil {
		return err
	}

	s.unicast(ctx, c, msg.Type, msg.Target, &domain.ToggleMuteDirective{
		Type:  domain.KindToggleMute,
		From:  c.ID,
		Muted: msg.Muted,
	})
	audit.LogWithDetail(ctx, audit.ActionToggleMute, c.ID, "", msg.Target, "mute toggled")
	return nil
}

func (s *signalService) HandleDraw(ctx context.Context, c *hub.Client, msg *domain.DrawMessage) error {
	if msg.RoomID == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "room_id is required")
	}

	s.broadcast(domain.KindDraw, msg.RoomID, c.ID, &domain.DrawRelay{
		Type:   domain.KindDraw,
		RoomID: msg.RoomID,
		From:   c.ID,
		Stroke: msg.Stroke,
	})
	return nil
}

func (s *signalService) HandleMuteAll(ctx context.Context, c *hub.Client, msg *domain.RoomMessage) error {
	if msg.RoomID == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "room_id is required")
	}
	if err := s.requireHost(ctx, c, msg.Type, msg.RoomID); err != nil {
		return err
	}

	s.broadcast(domain.KindMuteAll, msg.RoomID, c.ID, &domain.MuteAllDirective{
		Type:   domain.KindMuteAll,
		RoomID: msg.RoomID,
		From:   c.ID,
	})
	audit.Log(ctx, audit.ActionMuteAll, c.ID, msg.RoomID, "room muted")
	return nil
}

func (s *signalService) HandleStealthJoin(ctx context.Context, c *hub.Client, msg *domain.RoomMessage) error {
	if msg.RoomID == "" {
		return s.reject(c, msg.Type, ErrBadRequest, "room_id is required")
	}

	if _, ok := s.hub.StealthJoin(c, msg.RoomID); !ok {
		return fmt.Errorf("stealth join %s: %w", msg.RoomID, ErrClosed)
	}
	s.metrics.ObserverJoined()
	audit.Log(ctx, audit.ActionStealthJoin, c.ID, msg.RoomID, "observer joined room")
	return nil
}

func (s *signalService) Start(ctx context.Context) error {
	s.notifier.Start()
	return nil
}

func (s *signalService) Stop() error {
	return s.notifier.Close()
}

// Listener callbacks. They run on the hub goroutine; the notifier only
// enqueues, so none of them block.

func (s *signalService) ClientConnected(c *hub.Client) {
	s.metrics.ClientConnected()
	audit.LogWithDetail(context.Background(), audit.ActionConnect, c.ID, "", c.Session.RemoteAddr, "client connected")
}

func (s *signalService) ClientDisconnected(c *hub.Client) {
	s.metrics.ClientDisconnected()
	audit.LogWithDetail(context.Background(), audit.ActionDisconnect, c.ID, "", c.Session.Duration().String(), "client disconnected")
}

func (s *signalService) ParticipantJoined(p domain.Participant, roomCreated bool) {
	s.metrics.ParticipantJoined(roomCreated)
	if roomCreated {
		s.notifier.RoomOpened(p.RoomID)
	}
	s.notifier.ParticipantJoined(p)
	audit.LogWithDetail(context.Background(), audit.ActionJoinRoom, p.SessionID, p.RoomID, p.DisplayName, "participant joined room")
}

func (s *signalService) ParticipantLeft(d registry.Departure, reason string) {
	s.metrics.ParticipantLeft(reason, d.Closed)
	s.notifier.ParticipantLeft(d, reason)
	if d.Closed {
		s.notifier.RoomClosed(d.RoomID)
	}
	audit.LogWithDetail(context.Background(), audit.ActionLeaveRoom, d.Participant.SessionID, d.RoomID, reason, "participant left room")
}

func (s *signalService) unicast(ctx context.Context, c *hub.Client, kind domain.MessageKind, target string, message interface{}) {
	if s.hub.Relay(target, message) {
		s.metrics.SignalRelayed(string(kind))
		return
	}

	s.metrics.SignalDropped(string(kind))
	l := pkglog.Ctx(ctx)
	l.Debug().
		Str(pkglog.FieldClientID, c.ID).
		Str(pkglog.FieldTargetID, target).
		Str(pkglog.FieldMessageType, string(kind)).
		Msg("target not connected, message dropped")
}

func (s *signalService) broadcast(kind domain.MessageKind, roomID, from string, message interface{}) {
	n := s.hub.Broadcast(roomID, message, from)
	s.metrics.Broadcast(string(kind), n)
}

// requireHost passes when enforcement is off or when c is the host of roomID.
// Host status is scoped to the room the host joined.
func (s *signalService) requireHost(ctx context.Context, c *hub.Client, kind domain.MessageKind, roomID string) error {
	if !s.config.EnforceHostControls {
		return nil
	}
	if p, ok := s.hub.Participant(c.ID); ok && p.IsHost && roomID != "" && p.RoomID == roomID {
		return nil
	}

	audit.LogWithDetail(ctx, audit.ActionForbidden, c.ID, roomID, string(kind), "host control rejected")
	return s.reject(c, kind, ErrForbidden, "only the host may use "+string(kind))
}

// roomOf returns the room sessionID has joined, or "" when it has none. It is
// only consulted while host controls are enforced.
func (s *signalService) roomOf(sessionID string) string {
	if !s.config.EnforceHostControls {
		return ""
	}
	if p, ok := s.hub.Participant(sessionID); ok {
		return p.RoomID
	}
	return ""
}

// reject answers the sender with an error frame and returns err wrapped with
// detail.
func (s *signalService) reject(c *hub.Client, kind domain.MessageKind, err error, detail string) error {
	code := domain.ErrCodeBadRequest
	if errors.Is(err, ErrForbidden) {
		code = domain.ErrCodeForbidden
	}

	s.metrics.MessageRejected(string(kind), code)
	if sendErr := c.SendMessage(domain.NewErrorMessage(code, detail)); sendErr != nil {
		return fmt.Errorf("%s: %w", detail, errors.Join(err, sendErr))
	}
	return fmt.Errorf("%s: %w", detail, err)
}
