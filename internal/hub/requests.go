package hub

import (
	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/registry"
)

// request is one unit of work for the run loop.
type request interface {
	apply(h *Hub)
}

type registerRequest struct {
	client *Client
}

func (r *registerRequest) apply(h *Hub) {
	h.addClient(r.client)
}

type unregisterRequest struct {
	client *Client
}

func (r *unregisterRequest) apply(h *Hub) {
	h.removeClient(r.client)
}

type joinReply struct {
	result JoinResult
	ok     bool
}

type joinRequest struct {
	client      *Client
	roomID      string
	participant domain.Participant
	reply       chan joinReply
}

func (r *joinRequest) apply(h *Hub) {
	res, ok := h.join(r.client, r.roomID, r.participant)
	r.reply <- joinReply{result: res, ok: ok}
}

type leaveRequest struct {
	client *Client
	reply  chan []registry.Departure
}

func (r *leaveRequest) apply(h *Hub) {
	var departures []registry.Departure
	if _, ok := h.clients[r.client.ID]; ok {
		departures = h.leaveRooms(r.client, ReasonLeave)
		h.stopObserving(r.client)
	}
	r.reply <- departures
}

type stealthJoinRequest struct {
	client *Client
	roomID string
	reply  chan joinReply
}

func (r *stealthJoinRequest) apply(h *Hub) {
	left, ok := h.stealthJoin(r.client, r.roomID)
	r.reply <- joinReply{result: JoinResult{Left: left}, ok: ok}
}

type relayRequest struct {
	target string
	data   []byte
	reply  chan bool
}

func (r *relayRequest) apply(h *Hub) {
	c, ok := h.clients[r.target]
	if !ok {
		r.reply <- false
		return
	}
	r.reply <- h.deliver(c, r.data)
}

type broadcastRequest struct {
	roomID  string
	exclude string
	data    []byte
	reply   chan int
}

func (r *broadcastRequest) apply(h *Hub) {
	r.reply <- h.broadcast(r.roomID, r.exclude, r.data)
}

type replyRequest struct {
	client *Client
	data   []byte
}

func (r *replyRequest) apply(h *Hub) {
	if _, ok := h.clients[r.client.ID]; ok {
		h.deliver(r.client, r.data)
	}
}

type participantReply struct {
	participant domain.Participant
	ok          bool
}

type participantRequest struct {
	sessionID string
	reply     chan participantReply
}

func (r *participantRequest) apply(h *Hub) {
	p, ok := h.registry.Participant(r.sessionID)
	r.reply <- participantReply{participant: p, ok: ok}
}

type membersReply struct {
	members []domain.Participant
	ok      bool
}

type membersRequest struct {
	roomID string
	reply  chan membersReply
}

func (r *membersRequest) apply(h *Hub) {
	members, ok := h.registry.Members(r.roomID)
	r.reply <- membersReply{members: members, ok: ok}
}

type roomsRequest struct {
	reply chan []registry.RoomSummary
}

func (r *roomsRequest) apply(h *Hub) {
	r.reply <- h.registry.Rooms()
}

type statsRequest struct {
	reply chan Stats
}

func (r *statsRequest) apply(h *Hub) {
	r.reply <- h.stats()
}
