package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/classroom-signal/internal/config"
	"github.com/weiawesome/classroom-signal/internal/domain"
	"github.com/weiawesome/classroom-signal/internal/registry"
)

type frame map[string]interface{}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(config.DefaultWebSocket())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h
}

func connect(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := NewClient(id, h, nil, nil, config.DefaultWebSocket())
	require.True(t, h.Register(c))
	return c
}

func join(t *testing.T, h *Hub, c *Client, roomID string) JoinResult {
	t.Helper()
	res, ok := h.Join(c, roomID, domain.Participant{UserID: "user-" + c.ID, DisplayName: "name-" + c.ID})
	require.True(t, ok)
	return res
}

// next returns the oldest queued frame of c.
func next(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel of %s closed", c.ID)
		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(time.Second):
		t.Fatalf("no frame for %s", c.ID)
		return nil
	}
}

// settle waits until every request submitted so far has been applied.
func settle(h *Hub) {
	h.Stats()
}

func assertQuiet(t *testing.T, h *Hub, clients ...*Client) {
	t.Helper()
	settle(h)
	for _, c := range clients {
		assert.Len(t, c.Send, 0, "unexpected frame for %s", c.ID)
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.Send:
		default:
			return
		}
	}
}

func TestJoinSendsExistingUsersAndAnnounces(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	res := join(t, h, a, "math")
	assert.True(t, res.Created)
	f := next(t, a)
	assert.Equal(t, "existing-users", f["type"])
	assert.Empty(t, f["users"])

	res = join(t, h, b, "math")
	assert.False(t, res.Created)
	require.Len(t, res.Present, 1)
	assert.Equal(t, "a", res.Present[0].SessionID)

	f = next(t, b)
	assert.Equal(t, "existing-users", f["type"])
	users := f["users"].([]interface{})
	require.Len(t, users, 1)
	assert.Equal(t, "a", users[0].(map[string]interface{})["session_id"])

	f = next(t, a)
	assert.Equal(t, "user-connected", f["type"])
	user := f["user"].(map[string]interface{})
	assert.Equal(t, "b", user["session_id"])
	assert.Equal(t, "name-b", user["display_name"])

	// the joiner never hears about itself
	assertQuiet(t, h, a, b)
}

func TestRoomLivesUntilLastParticipantLeaves(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	c := connect(t, h, "c")
	for _, cl := range []*Client{a, b, c} {
		join(t, h, cl, "math")
	}

	d := h.Leave(a)
	require.Len(t, d, 1)
	assert.False(t, d[0].Closed)
	h.Unregister(b)
	settle(h)

	rooms := h.Rooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "math", rooms[0].RoomID)
	assert.Equal(t, 1, rooms[0].Participants)

	d = h.Leave(c)
	require.Len(t, d, 1)
	assert.True(t, d[0].Closed)
	assert.Empty(t, h.Rooms())

	_, ok := h.Members("math")
	assert.False(t, ok)
}

func TestDisconnectAnnouncesAndIsIdempotent(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	join(t, h, a, "math")
	join(t, h, b, "math")
	drain(a)
	drain(b)

	h.Unregister(b)
	h.Unregister(b)
	settle(h)

	f := next(t, a)
	assert.Equal(t, "user-disconnected", f["type"])
	assert.Equal(t, "b", f["session_id"])
	assert.Equal(t, "math", f["room_id"])
	assertQuiet(t, h, a)

	_, open := <-b.Send
	assert.False(t, open)

	assert.Equal(t, Stats{Clients: 1, Rooms: 1, Participants: 1}, h.Stats())
}

func TestLeaveOfUnknownSessionIsNoop(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	assert.Empty(t, h.Leave(a))
	assert.Empty(t, h.Leave(a))
	assertQuiet(t, h, a)
}

func TestRelayDeliversPayloadUnchanged(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1"}`)
	require.True(t, h.Relay("b", domain.NewSignalRelay(domain.KindOffer, "a", "Alice", sdp)))

	data := <-b.Send
	var relayed domain.SignalRelay
	require.NoError(t, json.Unmarshal(data, &relayed))
	assert.Equal(t, domain.KindOffer, relayed.Type)
	assert.Equal(t, "a", relayed.From)
	assert.Equal(t, "Alice", relayed.DisplayName)
	assert.JSONEq(t, string(sdp), string(relayed.SDP))

	// no shared room is needed, and nobody else sees it
	assertQuiet(t, h, a)
}

func TestRelayToUnknownTargetIsDropped(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	join(t, h, a, "math")
	drain(a)

	assert.False(t, h.Relay("ghost", domain.NewSignalRelay(domain.KindAnswer, "a", "", json.RawMessage(`{}`))))
	assertQuiet(t, h, a)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	c := connect(t, h, "c")
	outsider := connect(t, h, "d")
	for _, cl := range []*Client{a, b, c} {
		join(t, h, cl, "math")
	}
	join(t, h, outsider, "art")
	for _, cl := range []*Client{a, b, c, outsider} {
		drain(cl)
	}

	n := h.Broadcast("math", &domain.MuteAllDirective{Type: domain.KindMuteAll, RoomID: "math", From: "a"}, "a")
	assert.Equal(t, 2, n)

	assert.Equal(t, "mute-all", next(t, b)["type"])
	assert.Equal(t, "mute-all", next(t, c)["type"])
	assertQuiet(t, h, a, outsider)
}

func TestStealthObserverIsInvisible(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	s := connect(t, h, "s")
	join(t, h, a, "math")
	drain(a)

	left, ok := h.StealthJoin(s, "math")
	require.True(t, ok)
	assert.Empty(t, left)

	b := connect(t, h, "b")
	join(t, h, b, "math")

	f := next(t, b)
	assert.Equal(t, "existing-users", f["type"])
	assert.Len(t, f["users"], 1)

	// observers receive room fan-out, including presence announcements
	f = next(t, s)
	assert.Equal(t, "user-connected", f["type"])
	assert.Equal(t, "user-connected", next(t, a)["type"])

	h.Broadcast("math", &domain.ReceiveChatMessage{Type: domain.KindReceiveMessage, RoomID: "math", From: "a", Message: "hi"}, "a")
	assert.Equal(t, "receive-message", next(t, s)["type"])
	assert.Equal(t, "receive-message", next(t, b)["type"])

	members, ok := h.Members("math")
	require.True(t, ok)
	assert.Len(t, members, 2)
	_, ok = h.Participant("s")
	assert.False(t, ok)

	h.Unregister(s)
	assertQuiet(t, h, a, b)
}

func TestStealthOnlyRoomIsNotRegistered(t *testing.T) {
	h := startHub(t)
	s := connect(t, h, "s")
	_, ok := h.StealthJoin(s, "empty")
	require.True(t, ok)

	assert.Empty(t, h.Rooms())
	_, ok = h.Members("empty")
	assert.False(t, ok)
	assert.Equal(t, Stats{Clients: 1, Observers: 1}, h.Stats())

	// the observer does not keep a room alive once its last participant goes
	a := connect(t, h, "a")
	join(t, h, a, "empty")
	h.Leave(a)
	assert.Empty(t, h.Rooms())
}

func TestStealthJoinLeavesVisibleRoom(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	join(t, h, a, "math")
	join(t, h, b, "math")
	drain(a)
	drain(b)

	left, ok := h.StealthJoin(b, "math")
	require.True(t, ok)
	require.Len(t, left, 1)
	assert.Equal(t, "math", left[0].RoomID)

	f := next(t, a)
	assert.Equal(t, "user-disconnected", f["type"])
	assert.Equal(t, "b", f["session_id"])

	// still hears the room as an observer
	h.Broadcast("math", &domain.DrawRelay{Type: domain.KindDraw, RoomID: "math", From: "a", Stroke: json.RawMessage(`[1,2]`)}, "a")
	assert.Equal(t, "draw", next(t, b)["type"])
}

func TestJoinClearsObserverMemberships(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	s := connect(t, h, "s")
	join(t, h, a, "math")
	h.StealthJoin(s, "math")
	h.StealthJoin(s, "art")
	drain(a)

	join(t, h, s, "science")
	drain(s)

	h.Broadcast("math", &domain.MuteAllDirective{Type: domain.KindMuteAll, RoomID: "math", From: "a"}, "a")
	assertQuiet(t, h, s)
	assert.Equal(t, 0, h.Stats().Observers)
}

func TestRejoinLeavesPreviousRoom(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	b := connect(t, h, "b")
	join(t, h, a, "math")
	join(t, h, b, "math")
	drain(a)
	drain(b)

	res := join(t, h, b, "art")
	require.Len(t, res.Left, 1)
	assert.Equal(t, "math", res.Left[0].RoomID)

	f := next(t, a)
	assert.Equal(t, "user-disconnected", f["type"])
	assert.Equal(t, "b", f["session_id"])

	p, ok := h.Participant("b")
	require.True(t, ok)
	assert.Equal(t, "art", p.RoomID)

	members, _ := h.Members("math")
	assert.Len(t, members, 1)
}

func TestJoinAfterUnregisterFails(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")
	h.Unregister(a)

	_, ok := h.Join(a, "math", domain.Participant{})
	assert.False(t, ok)
	assert.Empty(t, h.Rooms())
}

func TestRepliesFollowSubmissionOrder(t *testing.T) {
	h := startHub(t)
	a := connect(t, h, "a")

	require.NoError(t, a.SendMessage(&domain.SessionMessage{Type: domain.KindSession, SessionID: "a"}))
	join(t, h, a, "math")
	require.NoError(t, a.SendMessage(&domain.BaseMessage{Type: domain.KindPong}))

	assert.Equal(t, "session", next(t, a)["type"])
	assert.Equal(t, "existing-users", next(t, a)["type"])
	assert.Equal(t, "pong", next(t, a)["type"])
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	h := startHub(t)
	cfg := config.DefaultWebSocket()
	cfg.SendBufferSize = 1

	a := connect(t, h, "a")
	slow := NewClient("slow", h, nil, nil, cfg)
	require.True(t, h.Register(slow))
	join(t, h, slow, "math") // fills the buffer with existing-users
	join(t, h, a, "math")    // user-connected does not fit
	drain(a)

	settle(h)
	_, ok := h.Participant("slow")
	assert.False(t, ok)
	assert.Equal(t, 1, h.Stats().Clients)

	// queued frame is still readable, then the channel is closed
	<-slow.Send
	_, open := <-slow.Send
	assert.False(t, open)
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *recordingListener) record(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *recordingListener) ClientConnected(c *Client)    { l.record("connected:" + c.ID) }
func (l *recordingListener) ClientDisconnected(c *Client) { l.record("disconnected:" + c.ID) }

func (l *recordingListener) ParticipantJoined(p domain.Participant, created bool) {
	if created {
		l.record("opened:" + p.RoomID)
	}
	l.record("joined:" + p.RoomID + ":" + p.SessionID)
}

func (l *recordingListener) ParticipantLeft(d registry.Departure, reason string) {
	l.record("left:" + d.RoomID + ":" + d.Participant.SessionID + ":" + reason)
	if d.Closed {
		l.record("closed:" + d.RoomID)
	}
}

func (l *recordingListener) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func TestListenerSeesLifecycle(t *testing.T) {
	h := NewHub(config.DefaultWebSocket())
	l := &recordingListener{}
	h.SetListener(l)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer func() {
		cancel()
		<-h.Done()
	}()

	a := connect(t, h, "a")
	b := connect(t, h, "b")
	s := connect(t, h, "s")
	join(t, h, a, "math")
	join(t, h, b, "math")
	h.StealthJoin(s, "math")
	join(t, h, a, "art")
	h.Leave(b)
	h.Unregister(a)
	settle(h)

	assert.Equal(t, []string{
		"connected:a",
		"connected:b",
		"connected:s",
		"opened:math",
		"joined:math:a",
		"joined:math:b",
		"left:math:a:rejoin",
		"opened:art",
		"joined:art:a",
		"left:math:b:leave",
		"closed:math",
		"left:art:a:disconnect",
		"closed:art",
		"disconnected:a",
	}, l.snapshot())
}

func TestShutdownClosesClients(t *testing.T) {
	h := NewHub(config.DefaultWebSocket())
	l := &recordingListener{}
	h.SetListener(l)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	a := connect(t, h, "a")
	join(t, h, a, "math")
	drain(a)

	cancel()
	<-h.Done()

	_, open := <-a.Send
	assert.False(t, open)
	assert.Contains(t, l.snapshot(), "closed:math")
	assert.Contains(t, l.snapshot(), "disconnected:a")

	_, ok := h.Join(a, "math", domain.Participant{})
	assert.False(t, ok)
	assert.False(t, h.Register(NewClient("late", h, nil, nil, config.DefaultWebSocket())))
}
