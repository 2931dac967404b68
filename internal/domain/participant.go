package domain

import (
	"sync"
	"time"
)

// Participant is one visible occupant of one room.
type Participant struct {
	SessionID   string
	RoomID      string
	UserID      string
	DisplayName string
	IsHost      bool
	JoinedAt    time.Time
}

// Info returns the public view sent to other clients.
func (p Participant) Info() ParticipantInfo {
	return ParticipantInfo{
		SessionID:   p.SessionID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		IsHost:      p.IsHost,
	}
}

// Session holds transport-level facts about one connection. Room membership
// is not tracked here; the hub owns it.
type Session struct {
	ID          string
	RemoteAddr  string
	UserAgent   string
	ConnectedAt time.Time

	mu           sync.RWMutex
	lastActiveAt time.Time
}

// NewSession creates a new session with the given handle.
func NewSession(id, remoteAddr, userAgent string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		RemoteAddr:   remoteAddr,
		UserAgent:    userAgent,
		ConnectedAt:  now,
		lastActiveAt: now,
	}
}

// UpdateActivity updates the last active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

// LastActiveAt returns when the client last sent a frame.
func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}

// Duration returns how long the session has been connected.
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}
