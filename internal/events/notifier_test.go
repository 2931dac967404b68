package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/registry"
	"github.com/weiawesome/classroom-signal/pkg/pubsub"
)

type published struct {
	channel string
	event   *pubsub.Event
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	block  chan struct{}
	closed bool
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, event *pubsub.Event) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{channel: channel, event: event})
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func TestNotifierPublishesInOrder(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, Config{}, nil)
	n.Start()

	p := domain.Participant{SessionID: "s1", RoomID: "math", UserID: "u1", DisplayName: "Ann", IsHost: true}
	n.RoomOpened("math")
	n.ParticipantJoined(p)
	n.ParticipantLeft(registry.Departure{RoomID: "math", Participant: p, Closed: true}, "disconnect")
	n.RoomClosed("math")
	require.NoError(t, n.Close())

	events := pub.snapshot()
	require.Len(t, events, 4)
	types := make([]string, 0, len(events))
	for _, e := range events {
		assert.Equal(t, "classroom:room:math:events", e.channel)
		types = append(types, e.event.Type)
	}
	assert.Equal(t, []string{
		pubsub.EventRoomOpened,
		pubsub.EventParticipantJoined,
		pubsub.EventParticipantLeft,
		pubsub.EventRoomClosed,
	}, types)

	var left pubsub.ParticipantPayload
	require.NoError(t, events[2].event.UnmarshalPayload(&left))
	assert.Equal(t, "s1", left.SessionID)
	assert.Equal(t, "disconnect", left.Reason)
	assert.True(t, left.IsHost)
	assert.True(t, pub.closed)
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	pub := &fakePublisher{block: make(chan struct{})}
	var mu sync.Mutex
	var dropped []string
	n := New(pub, Config{BufferSize: 1}, func(eventType string) {
		mu.Lock()
		defer mu.Unlock()
		dropped = append(dropped, eventType)
	})
	n.Start()

	// the worker takes the first event and blocks on it
	n.RoomOpened("a")
	require.Eventually(t, func() bool { return len(n.queue) == 0 }, time.Second, time.Millisecond)

	n.RoomOpened("b") // queued
	n.RoomClosed("c") // dropped

	mu.Lock()
	assert.Equal(t, []string{pubsub.EventRoomClosed}, dropped)
	mu.Unlock()

	close(pub.block)
	require.NoError(t, n.Close())
	assert.Len(t, pub.snapshot(), 2)
}

func TestNotifierReportsPublishFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("bus down")}
	dropped := make(chan string, 1)
	n := New(pub, Config{}, func(eventType string) { dropped <- eventType })
	n.Start()

	n.RoomOpened("math")
	select {
	case e := <-dropped:
		assert.Equal(t, pubsub.EventRoomOpened, e)
	case <-time.After(time.Second):
		t.Fatal("publish failure not reported")
	}
	require.NoError(t, n.Close())
}

func TestNilNotifierIsNoop(t *testing.T) {
	n := New(nil, Config{}, nil)
	assert.Nil(t, n)

	n.Start()
	n.RoomOpened("math")
	n.ParticipantJoined(domain.Participant{RoomID: "math"})
	assert.NoError(t, n.Close())
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	pub := &fakePublisher{}
	var count int
	n := New(pub, Config{}, func(string) { count++ })
	n.Start()
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	n.RoomOpened("math")
	assert.Equal(t, 1, count)
	assert.Empty(t, pub.snapshot())
}
