// Package registry tracks which sessions are visibly present in which room.
//
// A Registry is not safe for concurrent use. It is owned by the hub's run
// loop, which serializes every call.
package registry

import (
	"sort"
	"time"

	"github.com/weiawesome/classroom-signal/internal/domain"
)

// Room is the set of participants registered under one room id.
type Room struct {
	ID           string
	OpenedAt     time.Time
	participants []domain.Participant // join order
}

// Departure describes one session leaving one room.
type Departure struct {
	RoomID      string
	Participant domain.Participant
	Remaining   int
	Closed      bool // the room became empty and was deleted
}

// RoomSummary is a read-only view of one room.
type RoomSummary struct {
	RoomID       string    `json:"room_id"`
	Participants int       `json:"participants"`
	OpenedAt     time.Time `json:"opened_at"`
}

// Registry maps room ids to their participants.
type Registry struct {
	rooms map[string]*Room
	now   func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// Join registers p under roomID, creating the room if needed, and returns
// the participants that were already present, in join order. A session
// already registered in that room has its record replaced in place.
func (r *Registry) Join(roomID string, p domain.Participant) (present []domain.Participant, created bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, OpenedAt: r.now()}
		r.rooms[roomID] = room
		created = true
	}

	p.RoomID = roomID
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.now()
	}

	present = make([]domain.Participant, 0, len(room.participants))
	replaced := false
	for i, existing := range room.participants {
		if existing.SessionID == p.SessionID {
			room.participants[i] = p
			replaced = true
			continue
		}
		present = append(present, existing)
	}
	if !replaced {
		room.participants = append(room.participants, p)
	}

	return present, created
}

// Leave removes sessionID from every room it is registered in and deletes
// rooms left empty. Calling it for an unknown session returns nil.
func (r *Registry) Leave(sessionID string) []Departure {
	var departures []Departure

	for roomID, room := range r.rooms {
		idx := room.indexOf(sessionID)
		if idx < 0 {
			continue
		}

		p := room.participants[idx]
		room.participants = append(room.participants[:idx], room.participants[idx+1:]...)

		d := Departure{
			RoomID:      roomID,
			Participant: p,
			Remaining:   len(room.participants),
		}
		if len(room.participants) == 0 {
			delete(r.rooms, roomID)
			d.Closed = true
		}
		departures = append(departures, d)
	}

	sort.Slice(departures, func(i, j int) bool { return departures[i].RoomID < departures[j].RoomID })
	return departures
}

// Participant returns the record of sessionID, if it is registered anywhere.
func (r *Registry) Participant(sessionID string) (domain.Participant, bool) {
	for _, room := range r.rooms {
		if idx := room.indexOf(sessionID); idx >= 0 {
			return room.participants[idx], true
		}
	}
	return domain.Participant{}, false
}

// Members returns the participants of roomID in join order.
func (r *Registry) Members(roomID string) ([]domain.Participant, bool) {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	out := make([]domain.Participant, len(room.participants))
	copy(out, room.participants)
	return out, true
}

// Has reports whether roomID currently has a registry entry.
func (r *Registry) Has(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// Rooms returns a summary of every room, ordered by id.
func (r *Registry) Rooms() []RoomSummary {
	out := make([]RoomSummary, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, RoomSummary{
			RoomID:       room.ID,
			Participants: len(room.participants),
			OpenedAt:     room.OpenedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Len returns the number of rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}

func (room *Room) indexOf(sessionID string) int {
	for i, p := range room.participants {
		if p.SessionID == sessionID {
			return i
		}
	}
	return -1
}
