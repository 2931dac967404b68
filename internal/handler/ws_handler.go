package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/classroom-signal/internal/config"
	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/hub"
	"github.com/weiawesome/classroom-signal/internal/metrics"
	"github.com/weiawesome/classroom-signal/internal/service"
	pkglog "github.com/weiawesome/classroom-signal/pkg/log"
)

var errMalformed = errors.New("malformed message")

type messageHandler func(ctx context.Context, c *hub.Client, raw []byte) error

// decodeInto adapts a typed service method to a raw frame handler.
func decodeInto[T any](fn func(context.Context, *hub.Client, *T) error) messageHandler {
	return func(ctx context.Context, c *hub.Client, raw []byte) error {
		var msg T
		if err := json.Unmarshal(raw, &msg); err != nil {
			return errMalformed
		}
		return fn(ctx, c, &msg)
	}
}

// WSHandler handles WebSocket connections.
type WSHandler struct {
	hub      *hub.Hub
	service  service.SignalService
	metrics  metrics.Collector
	config   config.WebSocketConfig
	upgrader websocket.Upgrader
	handlers map[domain.MessageKind]messageHandler
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(h *hub.Hub, svc service.SignalService, collector metrics.Collector, cfg config.WebSocketConfig) *WSHandler {
	ws := &WSHandler{
		hub:     h,
		service: svc,
		metrics: collector,
		config:  cfg,
	}
	ws.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     ws.checkOrigin,
	}
	ws.handlers = map[domain.MessageKind]messageHandler{
		domain.KindJoinRoom:     decodeInto(svc.HandleJoinRoom),
		domain.KindLeaveRoom:    ws.leaveRoom,
		domain.KindOffer:        decodeInto(svc.HandleSignal),
		domain.KindAnswer:       decodeInto(svc.HandleSignal),
		domain.KindICECandidate: decodeInto(svc.HandleSignal),
		domain.KindSendMessage:  decodeInto(svc.HandleChat),
		domain.KindRaiseHand:    decodeInto(svc.HandleRaiseHand),
		domain.KindToggleMute:   decodeInto(svc.HandleToggleMute),
		domain.KindDraw:         decodeInto(svc.HandleDraw),
		domain.KindMuteAll:      decodeInto(svc.HandleMuteAll),
		domain.KindStealthJoin:  decodeInto(svc.HandleStealthJoin),
		domain.KindPing:         ws.ping,
	}
	return ws
}

// HandleWebSocket handles WebSocket upgrade and message routing.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	session := domain.NewSession(clientID, r.RemoteAddr, r.UserAgent())
	client := hub.NewClient(clientID, h.hub, conn, session, h.config)

	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	client.SendMessage(&domain.SessionMessage{Type: domain.KindSession, SessionID: clientID})

	ctx := pkglog.WithClient(r.Context(), clientID)

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.handleMessage(ctx, c, message)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := pkglog.Ctx(ctx)

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		h.reject(client, "invalid", "Invalid message format")
		return
	}

	fn, ok := h.handlers[base.Type]
	if !ok {
		h.reject(client, "unknown", "Unknown message type")
		return
	}
	h.metrics.MessageReceived(string(base.Type), len(message))

	err := fn(ctx, client, message)
	switch {
	case err == nil:
	case errors.Is(err, errMalformed):
		h.reject(client, string(base.Type), "Invalid "+string(base.Type)+" message")
	case errors.Is(err, service.ErrBadRequest), errors.Is(err, service.ErrForbidden):
		l.Warn().Err(err).Str(pkglog.FieldMessageType, string(base.Type)).Msg("message rejected")
	case errors.Is(err, service.ErrClosed):
		l.Debug().Err(err).Str(pkglog.FieldMessageType, string(base.Type)).Msg("client gone")
	default:
		l.Error().Err(err).Str(pkglog.FieldMessageType, string(base.Type)).Msg("message handling failed")
	}
}

func (h *WSHandler) leaveRoom(ctx context.Context, c *hub.Client, _ []byte) error {
	return h.service.HandleLeaveRoom(ctx, c)
}

func (h *WSHandler) ping(_ context.Context, c *hub.Client, _ []byte) error {
	return c.SendMessage(&domain.BaseMessage{Type: domain.KindPong})
}

func (h *WSHandler) reject(c *hub.Client, messageType, detail string) {
	h.metrics.MessageRejected(messageType, domain.ErrCodeBadRequest)
	c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, detail))
}

// checkOrigin allows every origin when none are configured.
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(h.config.Path, h.HandleWebSocket)
}
