// Package events publishes room lifecycle events to the configured event bus
// without ever blocking the caller.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/registry"
	pkglog "github.com/weiawesome/classroom-signal/pkg/log"
	"github.com/weiawesome/classroom-signal/pkg/pubsub"
)

// Config controls the notifier queue.
type Config struct {
	BufferSize int
	Timeout    time.Duration // per publish
}

type job struct {
	channel string
	event   *pubsub.Event
}

// Notifier queues events and publishes them from a single worker, so events
// of one room reach the bus in the order they happened. A nil *Notifier is
// valid and discards everything.
type Notifier struct {
	publisher pubsub.Publisher
	queue     chan job
	timeout   time.Duration
	onDrop    func(eventType string)

	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New creates a Notifier. onDrop, if set, is called for every event that
// could not be queued or published.
func New(publisher pubsub.Publisher, cfg Config, onDrop func(eventType string)) *Notifier {
	if publisher == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if onDrop == nil {
		onDrop = func(string) {}
	}
	return &Notifier{
		publisher: publisher,
		queue:     make(chan job, cfg.BufferSize),
		timeout:   cfg.Timeout,
		onDrop:    onDrop,
	}
}

// Start launches the publishing worker.
func (n *Notifier) Start() {
	if n == nil {
		return
	}
	n.wg.Add(1)
	go n.run()
}

// RoomOpened announces that roomID got its first participant.
func (n *Notifier) RoomOpened(roomID string) {
	n.enqueue(roomID, pubsub.EventRoomOpened, pubsub.RoomPayload{RoomID: roomID})
}

// RoomClosed announces that the last participant of roomID left.
func (n *Notifier) RoomClosed(roomID string) {
	n.enqueue(roomID, pubsub.EventRoomClosed, pubsub.RoomPayload{RoomID: roomID})
}

// ParticipantJoined announces a visible join.
func (n *Notifier) ParticipantJoined(p domain.Participant) {
	n.enqueue(p.RoomID, pubsub.EventParticipantJoined, pubsub.ParticipantPayload{
		RoomID:      p.RoomID,
		SessionID:   p.SessionID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		IsHost:      p.IsHost,
	})
}

// ParticipantLeft announces a departure.
func (n *Notifier) ParticipantLeft(d registry.Departure, reason string) {
	p := d.Participant
	n.enqueue(d.RoomID, pubsub.EventParticipantLeft, pubsub.ParticipantPayload{
		RoomID:      d.RoomID,
		SessionID:   p.SessionID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		IsHost:      p.IsHost,
		Reason:      reason,
		Remaining:   d.Remaining,
	})
}

func (n *Notifier) enqueue(roomID, eventType string, payload interface{}) {
	if n == nil {
		return
	}

	event, err := pubsub.NewEvent(eventType, roomID, payload)
	if err != nil {
		l := pkglog.L()
		l.Error().Err(err).Str("event_type", eventType).Msg("failed to build lifecycle event")
		n.onDrop(eventType)
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.onDrop(eventType)
		return
	}

	select {
	case n.queue <- job{channel: pubsub.RoomEventsChannel(roomID), event: event}:
	default:
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldRoomID, roomID).Str("event_type", eventType).Msg("event queue full, dropping lifecycle event")
		n.onDrop(eventType)
	}
}

func (n *Notifier) run() {
	defer n.wg.Done()

	for j := range n.queue {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		err := n.publisher.Publish(ctx, j.channel, j.event)
		cancel()

		if err != nil {
			l := pkglog.L()
			l.Error().Err(err).
				Str(pkglog.FieldRoomID, j.event.RoomID).
				Str("event_type", j.event.Type).
				Msg("failed to publish lifecycle event")
			n.onDrop(j.event.Type)
		}
	}
}

// Close stops accepting events, publishes what is already queued and closes
// the publisher.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}

	var err error
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()

		n.wg.Wait()
		err = n.publisher.Close()
	})
	return err
}
