package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/weiawesome/classroom-signal/internal/config"
	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/registry"
	pkglog "github.com/weiawesome/classroom-signal/pkg/log"
)

// Departure reasons reported to the Listener.
const (
	ReasonLeave      = "leave"
	ReasonDisconnect = "disconnect"
	ReasonRejoin     = "rejoin" // the session joined another room or became an observer
)

// Listener observes connection and presence changes. Its methods run on the
// hub's run loop and must not block.
type Listener interface {
	ClientConnected(c *Client)
	ClientDisconnected(c *Client)
	ParticipantJoined(p domain.Participant, roomCreated bool)
	ParticipantLeft(d registry.Departure, reason string)
}

type nopListener struct{}

func (nopListener) ClientConnected(*Client)                    {}
func (nopListener) ClientDisconnected(*Client)                 {}
func (nopListener) ParticipantJoined(domain.Participant, bool) {}
func (nopListener) ParticipantLeft(registry.Departure, string) {}

// JoinResult is the outcome of a join.
type JoinResult struct {
	Participant domain.Participant
	Present     []domain.Participant // already in the room, caller excluded
	Created     bool
	Left        []registry.Departure // rooms the session had to leave first
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Clients      int `json:"clients"`
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
	Observers    int `json:"observers"`
}

// Hub owns every connection, every room broadcast group and the room
// registry. All of that state is touched only by Run, which applies one
// request at a time; the exported methods submit requests and, where they
// return something, wait for the answer.
type Hub struct {
	clients   map[string]*Client
	groups    map[string]map[string]*Client  // roomID -> clientID -> client (participants and observers)
	observing map[string]map[string]struct{} // clientID -> rooms joined in stealth
	registry  *registry.Registry
	requests  chan request
	evict     []*Client
	listener  Listener
	config    config.WebSocketConfig
	done      chan struct{}
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		groups:    make(map[string]map[string]*Client),
		observing: make(map[string]map[string]struct{}),
		registry:  registry.New(),
		requests:  make(chan request, 256),
		listener:  nopListener{},
		config:    cfg,
		done:      make(chan struct{}),
	}
}

// SetListener installs l. It must be called before Run.
func (h *Hub) SetListener(l Listener) {
	if l == nil {
		l = nopListener{}
	}
	h.listener = l
}

// Run starts the hub's main loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case req := <-h.requests:
			req.apply(h)
			h.flushEvictions()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) bool {
	return h.submit(&registerRequest{client: client})
}

// Unregister removes a client from the hub, leaving every room it was in.
// Unregistering an unknown or already removed client does nothing.
func (h *Hub) Unregister(client *Client) {
	h.submit(&unregisterRequest{client: client})
}

// Join registers client as a visible participant of roomID. The joiner is
// sent existing-users and everyone else in the room user-connected. A client
// that was already in a room, or observing, leaves first. ok is false if the
// client is no longer connected.
func (h *Hub) Join(client *Client, roomID string, p domain.Participant) (JoinResult, bool) {
	reply, sent := call(h, func(reply chan joinReply) request {
		return &joinRequest{client: client, roomID: roomID, participant: p, reply: reply}
	})
	return reply.result, sent && reply.ok
}

// Leave removes client from the registry and from every broadcast group.
func (h *Hub) Leave(client *Client) []registry.Departure {
	d, _ := call(h, func(reply chan []registry.Departure) request {
		return &leaveRequest{client: client, reply: reply}
	})
	return d
}

// StealthJoin adds client to the broadcast group of roomID without creating
// a participant. A client that was a participant leaves its room first.
func (h *Hub) StealthJoin(client *Client, roomID string) ([]registry.Departure, bool) {
	reply, sent := call(h, func(reply chan joinReply) request {
		return &stealthJoinRequest{client: client, roomID: roomID, reply: reply}
	})
	return reply.result.Left, sent && reply.ok
}

// Relay delivers message to the single session target. It reports whether
// the target was connected; an unreachable target is not an error.
func (h *Hub) Relay(target string, message interface{}) bool {
	data, err := json.Marshal(message)
	if err != nil {
		return false
	}
	ok, _ := call(h, func(reply chan bool) request {
		return &relayRequest{target: target, data: data, reply: reply}
	})
	return ok
}

// Broadcast sends message to every member of roomID's broadcast group except
// exclude, and returns how many sessions it was queued for.
func (h *Hub) Broadcast(roomID string, message interface{}, exclude string) int {
	data, err := json.Marshal(message)
	if err != nil {
		return 0
	}
	n, _ := call(h, func(reply chan int) request {
		return &broadcastRequest{roomID: roomID, exclude: exclude, data: data, reply: reply}
	})
	return n
}

// Participant looks up the registry record of a session.
func (h *Hub) Participant(sessionID string) (domain.Participant, bool) {
	r, _ := call(h, func(reply chan participantReply) request {
		return &participantRequest{sessionID: sessionID, reply: reply}
	})
	return r.participant, r.ok
}

// Members returns the visible participants of roomID in join order.
func (h *Hub) Members(roomID string) ([]domain.Participant, bool) {
	r, _ := call(h, func(reply chan membersReply) request {
		return &membersRequest{roomID: roomID, reply: reply}
	})
	return r.members, r.ok
}

// Rooms summarizes every registry room.
func (h *Hub) Rooms() []registry.RoomSummary {
	r, _ := call(h, func(reply chan []registry.RoomSummary) request {
		return &roomsRequest{reply: reply}
	})
	return r
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	s, _ := call(h, func(reply chan Stats) request {
		return &statsRequest{reply: reply}
	})
	return s
}

func (h *Hub) submit(req request) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.requests <- req:
		return true
	case <-h.done:
		return false
	}
}

func call[T any](h *Hub, build func(reply chan T) request) (T, bool) {
	var zero T
	reply := make(chan T, 1)
	if !h.submit(build(reply)) {
		return zero, false
	}
	select {
	case v := <-reply:
		return v, true
	case <-h.done:
		return zero, false
	}
}

// Everything below runs on the Run goroutine only.

func (h *Hub) addClient(c *Client) {
	h.clients[c.ID] = c
	l := pkglog.L()
	l.Info().Str(pkglog.FieldClientID, c.ID).Msg("client registered")
	h.listener.ClientConnected(c)
}

func (h *Hub) removeClient(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}

	h.leaveRooms(c, ReasonDisconnect)
	h.stopObserving(c)
	delete(h.clients, c.ID)
	close(c.Send)

	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldClientID, c.ID).
		Dur("connected_for", c.Session.Duration()).
		Time("last_active", c.Session.LastActiveAt()).
		Msg("client unregistered")
	h.listener.ClientDisconnected(c)
}

func (h *Hub) join(c *Client, roomID string, p domain.Participant) (JoinResult, bool) {
	if _, ok := h.clients[c.ID]; !ok {
		return JoinResult{}, false
	}

	left := h.leaveRooms(c, ReasonRejoin)
	h.stopObserving(c)

	p.SessionID = c.ID
	p.RoomID = roomID
	p.JoinedAt = time.Now()

	present, created := h.registry.Join(roomID, p)
	h.addToGroup(roomID, c)

	users := make([]domain.ParticipantInfo, 0, len(present))
	for _, other := range present {
		users = append(users, other.Info())
	}
	h.deliver(c, encode(&domain.ExistingUsersMessage{
		Type:   domain.KindExistingUsers,
		RoomID: roomID,
		Users:  users,
	}))
	h.broadcast(roomID, c.ID, encode(&domain.UserConnectedMessage{
		Type:   domain.KindUserConnected,
		RoomID: roomID,
		User:   p.Info(),
	}))

	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldClientID, c.ID).
		Str(pkglog.FieldRoomID, roomID).
		Int("present", len(present)).
		Bool("created", created).
		Msg("participant joined room")
	h.listener.ParticipantJoined(p, created)

	return JoinResult{Participant: p, Present: present, Created: created, Left: left}, true
}

// leaveRooms mutates the registry first and announces afterwards, so the
// user-disconnected frames never reach the departed session itself.
func (h *Hub) leaveRooms(c *Client, reason string) []registry.Departure {
	departures := h.registry.Leave(c.ID)

	for _, d := range departures {
		h.removeFromGroup(d.RoomID, c.ID)
		h.broadcast(d.RoomID, c.ID, encode(&domain.UserDisconnectedMessage{
			Type:      domain.KindUserDisconnected,
			RoomID:    d.RoomID,
			SessionID: c.ID,
		}))

		l := pkglog.L()
		l.Info().
			Str(pkglog.FieldClientID, c.ID).
			Str(pkglog.FieldRoomID, d.RoomID).
			Str("reason", reason).
			Int("remaining", d.Remaining).
			Msg("participant left room")
		h.listener.ParticipantLeft(d, reason)
	}

	return departures
}

func (h *Hub) stealthJoin(c *Client, roomID string) ([]registry.Departure, bool) {
	if _, ok := h.clients[c.ID]; !ok {
		return nil, false
	}

	left := h.leaveRooms(c, ReasonRejoin)
	h.addToGroup(roomID, c)

	rooms, ok := h.observing[c.ID]
	if !ok {
		rooms = make(map[string]struct{})
		h.observing[c.ID] = rooms
	}
	rooms[roomID] = struct{}{}

	l := pkglog.L()
	l.Info().Str(pkglog.FieldClientID, c.ID).Str(pkglog.FieldRoomID, roomID).Msg("observer joined room")
	return left, true
}

func (h *Hub) stopObserving(c *Client) {
	for roomID := range h.observing[c.ID] {
		h.removeFromGroup(roomID, c.ID)
	}
	delete(h.observing, c.ID)
}

func (h *Hub) addToGroup(roomID string, c *Client) {
	group, ok := h.groups[roomID]
	if !ok {
		group = make(map[string]*Client)
		h.groups[roomID] = group
	}
	group[c.ID] = c
}

func (h *Hub) removeFromGroup(roomID, clientID string) {
	if group, ok := h.groups[roomID]; ok {
		delete(group, clientID)
		if len(group) == 0 {
			delete(h.groups, roomID)
		}
	}
}

func (h *Hub) broadcast(roomID, exclude string, data []byte) int {
	if data == nil {
		return 0
	}
	n := 0
	for clientID, client := range h.groups[roomID] {
		if clientID == exclude {
			continue
		}
		if h.deliver(client, data) {
			n++
		}
	}
	return n
}

// deliver never blocks. A client whose send buffer is full is evicted once
// the current request has been applied.
func (h *Hub) deliver(c *Client, data []byte) bool {
	if data == nil {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		h.evict = append(h.evict, c)
		return false
	}
}

func (h *Hub) flushEvictions() {
	for len(h.evict) > 0 {
		c := h.evict[0]
		h.evict = h.evict[1:]
		if _, ok := h.clients[c.ID]; !ok {
			continue
		}
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldClientID, c.ID).Msg("send buffer full, evicting client")
		h.removeClient(c)
	}
}

func (h *Hub) stats() Stats {
	s := Stats{
		Clients: len(h.clients),
		Rooms:   h.registry.Len(),
	}
	for _, room := range h.registry.Rooms() {
		s.Participants += room.Participants
	}
	for _, rooms := range h.observing {
		s.Observers += len(rooms)
	}
	return s
}

// shutdown disconnects every client with the usual cleanup, so listeners
// see each room close.
func (h *Hub) shutdown() {
	for _, c := range h.clients {
		h.removeClient(c)
	}
	h.evict = nil

	l := pkglog.L()
	l.Info().Msg("hub stopped")
}

func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Msg("failed to encode outbound message")
		return nil
	}
	return data
}
