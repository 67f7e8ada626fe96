package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		roundDuration: 30 * time.Second,
	}
}

func newTestClient() *Client {
	return &Client{
		id:    uuid.NewString(),
		send:  make(chan any, 64),
		done:  make(chan struct{}),
		rooms: make(map[string]*Room),
	}
}

func recvMessage(t *testing.T, c *Client) any {
	t.Helper()

	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func expectNoMessage(t *testing.T, c *Client) {
	t.Helper()

	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message: %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// joinPlayer pushes a join through the room's event loop and consumes the
// joinedRoom confirmation plus the participant-list broadcast the joiner
// receives.
func joinPlayer(t *testing.T, rm *Room, c *Client, nickname string) {
	t.Helper()

	rm.joins <- joinRequest{client: c, nickname: nickname}

	require.IsType(t, JoinedMessage{}, recvMessage(t, c))
	require.IsType(t, ParticipantsMessage{}, recvMessage(t, c))
}

func TestHostJoinReceivesCurrentParticipants(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	host := newTestClient()
	rm.hostJoins <- host

	msg := recvMessage(t, host)
	pm, ok := msg.(ParticipantsMessage)
	require.True(t, ok)
	require.Len(t, pm.Participants, 1)
	assert.Equal(t, "alice", pm.Participants[0].Nickname)
	assert.Equal(t, 0, pm.Participants[0].Score)
}

func TestJoinBroadcastsParticipantsInJoinOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	host := newTestClient()
	rm.hostJoins <- host
	recvMessage(t, host) // initial empty list

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	pm := recvMessage(t, host).(ParticipantsMessage)
	require.Len(t, pm.Participants, 1)

	bob := newTestClient()
	joinPlayer(t, rm, bob, "bob")

	pm = recvMessage(t, host).(ParticipantsMessage)
	require.Len(t, pm.Participants, 2)
	assert.Equal(t, "alice", pm.Participants[0].Nickname)
	assert.Equal(t, "bob", pm.Participants[1].Nickname)

	// alice sees bob's join too
	pm = recvMessage(t, alice).(ParticipantsMessage)
	assert.Len(t, pm.Participants, 2)
}

func TestStartResetsScoresAndBroadcasts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cfg := testConfig()
	rm := newRoom("12345", clock)
	go rm.run(cfg)

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	rm.starts <- alice
	gs := recvMessage(t, alice).(GameStartMessage)
	assert.Equal(t, 30, gs.Duration)

	// Run up a score, finish the round, then start again.
	rm.scores <- scoreUpdate{client: alice, count: 42}
	recvMessage(t, alice) // personal rank
	recvMessage(t, alice) // live rankings

	clock.BlockUntil(1)
	for i := 29; i >= 0; i-- {
		clock.Advance(time.Second)
		recvMessage(t, alice) // countdown
	}
	end := recvMessage(t, alice).(GameEndMessage)
	require.Len(t, end.Rankings, 1)
	assert.Equal(t, 42, end.Rankings[0].Score)

	rm.starts <- alice
	recvMessage(t, alice) // gameStart

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	assert.Equal(t, phaseInRound, rm.phase)
	assert.Equal(t, 0, rm.participants[0].Score)
}

func TestCountdownEmitsEverySecondThenEnds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	rm.starts <- alice
	require.IsType(t, GameStartMessage{}, recvMessage(t, alice))

	clock.BlockUntil(1)

	for want := 29; want >= 0; want-- {
		clock.Advance(time.Second)
		cd := recvMessage(t, alice).(CountdownMessage)
		assert.Equal(t, want, cd.Seconds)
	}

	require.IsType(t, GameEndMessage{}, recvMessage(t, alice))

	// No further ticks once the round is over.
	clock.Advance(time.Second)
	expectNoMessage(t, alice)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	assert.Equal(t, phaseEnded, rm.phase)
	assert.Nil(t, rm.timerStop)
}

func TestJoinDuringRoundRejected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	rm.starts <- alice
	recvMessage(t, alice) // gameStart

	late := newTestClient()
	rm.joins <- joinRequest{client: late, nickname: "late"}

	em := recvMessage(t, late).(ErrorMessage)
	assert.Equal(t, "round already in progress", em.Message)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	require.Len(t, rm.participants, 1)
	assert.Equal(t, "alice", rm.participants[0].Nickname)
}

func TestStartWhileInRoundIgnored(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	rm.starts <- alice
	recvMessage(t, alice) // gameStart

	rm.starts <- alice
	expectNoMessage(t, alice)
}

func TestShakeSendsPersonalAndGroupRankings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")
	bob := newTestClient()
	joinPlayer(t, rm, bob, "bob")
	recvMessage(t, alice) // bob's join broadcast

	host := newTestClient()
	rm.hostJoins <- host
	recvMessage(t, host) // participant list

	rm.starts <- alice
	recvMessage(t, alice)
	recvMessage(t, bob)
	recvMessage(t, host)

	rm.scores <- scoreUpdate{client: bob, count: 10}

	personal := recvMessage(t, bob).(PersonalRankMessage)
	assert.Equal(t, 1, personal.Rank)
	assert.Equal(t, 2, personal.Total)
	assert.Equal(t, 10, personal.Count)
	assert.Equal(t, 0, personal.DiffToFirst)
	require.Len(t, personal.TopPlayers, 2)
	assert.Equal(t, "bob", personal.TopPlayers[0].Nickname)

	rankings := recvMessage(t, host).(RankingsMessage)
	require.Len(t, rankings.Rankings, 2)
	assert.Equal(t, "bob", rankings.Rankings[0].Nickname)
	assert.Equal(t, "alice", rankings.Rankings[1].Nickname)

	// bob also receives the group broadcast; alice both the group
	// broadcast and, once she shakes, her own personal update.
	require.IsType(t, RankingsMessage{}, recvMessage(t, bob))
	require.IsType(t, RankingsMessage{}, recvMessage(t, alice))

	rm.scores <- scoreUpdate{client: alice, count: 4}
	personal = recvMessage(t, alice).(PersonalRankMessage)
	assert.Equal(t, 2, personal.Rank)
	assert.Equal(t, 6, personal.DiffToFirst)
}

func TestShakeOutsideRoundDropped(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	rm.scores <- scoreUpdate{client: alice, count: 99}
	expectNoMessage(t, alice)

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	assert.Equal(t, 0, rm.participants[0].Score)
}

func TestDisconnectMidRoundRemovesFromRankings(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")
	bob := newTestClient()
	joinPlayer(t, rm, bob, "bob")
	recvMessage(t, alice) // bob's join broadcast

	rm.starts <- alice
	recvMessage(t, alice)
	recvMessage(t, bob)

	rm.leave(bob)

	pm := recvMessage(t, alice).(ParticipantsMessage)
	require.Len(t, pm.Participants, 1)
	assert.Equal(t, "alice", pm.Participants[0].Nickname)

	// Round keeps running for the remaining player.
	clock.BlockUntil(1)
	for want := 29; want >= 0; want-- {
		clock.Advance(time.Second)
		cd := recvMessage(t, alice).(CountdownMessage)
		assert.Equal(t, want, cd.Seconds)
	}

	end := recvMessage(t, alice).(GameEndMessage)
	require.Len(t, end.Rankings, 1)
	assert.Equal(t, "alice", end.Rankings[0].Nickname)
}

func TestLeaveIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rm := newRoom("12345", clock)
	go rm.run(testConfig())

	alice := newTestClient()
	joinPlayer(t, rm, alice, "alice")

	host := newTestClient()
	rm.hostJoins <- host
	recvMessage(t, host)

	// The host never joined as a player; its leave must not broadcast.
	rm.leave(host)
	expectNoMessage(t, alice)

	// Reconnects, then watches alice leave exactly once.
	rm.hostJoins <- host
	recvMessage(t, host)

	rm.leave(alice)
	pm := recvMessage(t, host).(ParticipantsMessage)
	assert.Empty(t, pm.Participants)

	// A second leave for the same connection is a no-op.
	rm.leave(alice)
	expectNoMessage(t, host)
}
