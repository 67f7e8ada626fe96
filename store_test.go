package main

import (
	"regexp"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetRoom(t *testing.T) {
	store := newRoomStore(clockwork.NewFakeClock(), 0)

	rm := store.create(testConfig())
	require.NotNil(t, rm)

	got, ok := store.get(rm.id)
	require.True(t, ok)
	assert.Same(t, rm, got)

	_, ok = store.get("00000")
	assert.False(t, ok)
}

func TestRoomIDsAreFiveDigits(t *testing.T) {
	store := newRoomStore(clockwork.NewFakeClock(), 0)
	pattern := regexp.MustCompile(`^[1-9][0-9]{4}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		rm := store.create(testConfig())
		assert.Regexp(t, pattern, rm.id)
		assert.False(t, seen[rm.id], "duplicate room id %s", rm.id)
		seen[rm.id] = true
	}
}

func TestDispatchToUnknownRoom(t *testing.T) {
	store := newRoomStore(clockwork.NewFakeClock(), 0)
	c := newTestClient()

	c.dispatch(store, ClientMessage{Type: "joinRoom", RoomID: "99999", Nickname: "alice"})
	em := recvMessage(t, c).(ErrorMessage)
	assert.Equal(t, "room not found", em.Message)

	c.dispatch(store, ClientMessage{Type: "hostJoinRoom", RoomID: "99999"})
	em = recvMessage(t, c).(ErrorMessage)
	assert.Equal(t, "room not found", em.Message)

	// In-round traffic for missing rooms is dropped without a reply.
	c.dispatch(store, ClientMessage{Type: "startGame", RoomID: "99999"})
	c.dispatch(store, ClientMessage{Type: "shake", RoomID: "99999", Count: 5})
	expectNoMessage(t, c)
}

func TestDispatchRequiresNickname(t *testing.T) {
	store := newRoomStore(clockwork.NewFakeClock(), 0)
	rm := store.create(testConfig())

	c := newTestClient()
	c.dispatch(store, ClientMessage{Type: "joinRoom", RoomID: roomID(rm.id)})

	em := recvMessage(t, c).(ErrorMessage)
	assert.Equal(t, "nickname is required", em.Message)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	assert.Empty(t, rm.participants)
}

func TestReaperEndsIdleRooms(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := newRoomStore(clock, time.Minute)
	clock.BlockUntil(1) // reaper ticker armed

	rm := store.create(testConfig())

	clock.Advance(2 * time.Minute)

	assert.Eventually(t, func() bool {
		_, ok := store.get(rm.id)
		return !ok
	}, time.Second, 10*time.Millisecond)
}
