package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/classroom-signal/internal/domain"
)

func participant(id string) domain.Participant {
	return domain.Participant{SessionID: id, UserID: "user-" + id, DisplayName: "name-" + id}
}

func sessionIDs(ps []domain.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.SessionID)
	}
	return out
}

func TestJoinReturnsPresentExcludingCaller(t *testing.T) {
	r := New()

	present, created := r.Join("math", participant("a"))
	assert.Empty(t, present)
	assert.True(t, created)

	present, created = r.Join("math", participant("b"))
	assert.Equal(t, []string{"a"}, sessionIDs(present))
	assert.False(t, created)

	present, _ = r.Join("math", participant("c"))
	assert.Equal(t, []string{"a", "b"}, sessionIDs(present))

	members, ok := r.Members("math")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, sessionIDs(members))
	for _, m := range members {
		assert.Equal(t, "math", m.RoomID)
		assert.False(t, m.JoinedAt.IsZero())
	}
}

func TestJoinSameSessionTwiceReplacesRecord(t *testing.T) {
	r := New()
	r.Join("math", participant("a"))
	r.Join("math", participant("b"))

	renamed := participant("a")
	renamed.DisplayName = "Teacher"
	present, _ := r.Join("math", renamed)
	assert.Equal(t, []string{"b"}, sessionIDs(present))

	members, _ := r.Members("math")
	require.Len(t, members, 2)
	assert.Equal(t, "Teacher", members[0].DisplayName)
}

func TestRoomDeletedExactlyWhenEmpty(t *testing.T) {
	r := New()
	r.Join("math", participant("a"))
	r.Join("math", participant("b"))
	r.Join("math", participant("c"))

	d := r.Leave("a")
	require.Len(t, d, 1)
	assert.False(t, d[0].Closed)
	assert.Equal(t, 2, d[0].Remaining)

	d = r.Leave("b")
	require.Len(t, d, 1)
	assert.True(t, r.Has("math"))

	d = r.Leave("c")
	require.Len(t, d, 1)
	assert.True(t, d[0].Closed)
	assert.Equal(t, 0, d[0].Remaining)
	assert.False(t, r.Has("math"))
	assert.Equal(t, 0, r.Len())
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := New()
	r.Join("math", participant("a"))
	r.Join("math", participant("b"))

	require.Len(t, r.Leave("a"), 1)
	assert.Empty(t, r.Leave("a"))
	assert.Empty(t, r.Leave("never-joined"))

	members, _ := r.Members("math")
	assert.Equal(t, []string{"b"}, sessionIDs(members))
}

func TestLeaveScansEveryRoom(t *testing.T) {
	r := New()
	// The registry itself does not forbid multi-room membership.
	r.Join("math", participant("a"))
	r.Join("art", participant("a"))
	r.Join("art", participant("b"))

	d := r.Leave("a")
	require.Len(t, d, 2)
	assert.Equal(t, "art", d[0].RoomID)
	assert.False(t, d[0].Closed)
	assert.Equal(t, "math", d[1].RoomID)
	assert.True(t, d[1].Closed)

	_, ok := r.Participant("a")
	assert.False(t, ok)
}

func TestParticipantLookupAndRooms(t *testing.T) {
	r := New()
	host := participant("h")
	host.IsHost = true
	r.Join("physics", host)
	r.Join("art", participant("x"))
	r.Join("art", participant("y"))

	p, ok := r.Participant("h")
	require.True(t, ok)
	assert.True(t, p.IsHost)
	assert.Equal(t, "physics", p.RoomID)

	rooms := r.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, "art", rooms[0].RoomID)
	assert.Equal(t, 2, rooms[0].Participants)
	assert.Equal(t, "physics", rooms[1].RoomID)
	assert.Equal(t, 1, rooms[1].Participants)

	_, ok = r.Members("nope")
	assert.False(t, ok)
}

func TestMembersReturnsCopy(t *testing.T) {
	r := New()
	r.Join("math", participant("a"))

	members, _ := r.Members("math")
	members[0].DisplayName = "changed"

	again, _ := r.Members("math")
	assert.Equal(t, "name-a", again[0].DisplayName)
}
