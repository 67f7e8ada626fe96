package main

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type roomPhase int

const (
	phaseLobby roomPhase = iota
	phaseInRound
	phaseEnded
)

// Participant is one joined player: the connection it lives on, the
// nickname it picked, and its latest reported shake count.
type Participant struct {
	ConnID   string
	Nickname string
	Score    int
}

type joinRequest struct {
	client   *Client
	nickname string
}

type scoreUpdate struct {
	client *Client
	count  int
}

// Room is one isolated game session. All state mutation happens on the
// run() goroutine, so joins, starts, shakes, timer ticks, and disconnects
// never interleave for the same room. The mutex only covers the pieces the
// store's reaper reads from outside: lastActive and the client set.
type Room struct {
	id string

	clients      map[*Client]bool
	participants []*Participant // join order, preserved for stable listing

	phase     roomPhase
	remaining int

	hostJoins chan *Client
	joins     chan joinRequest
	starts    chan *Client
	scores    chan scoreUpdate
	unreg     chan *Client
	ticks     chan struct{}
	done      chan struct{}

	timerStop chan struct{}
	clock     clockwork.Clock

	mu         sync.RWMutex
	lastActive time.Time
}

func newRoom(id string, clock clockwork.Clock) *Room {
	return &Room{
		id:         id,
		clients:    make(map[*Client]bool),
		phase:      phaseLobby,
		hostJoins:  make(chan *Client),
		joins:      make(chan joinRequest),
		starts:     make(chan *Client),
		scores:     make(chan scoreUpdate, 64),
		unreg:      make(chan *Client, 64),
		ticks:      make(chan struct{}),
		done:       make(chan struct{}),
		clock:      clock,
		lastActive: clock.Now(),
	}
}

func (rm *Room) run(cfg *Config) {
	for {
		select {
		case c := <-rm.hostJoins:
			rm.handleHostJoin(cfg, c)

		case jr := <-rm.joins:
			rm.handleJoin(cfg, jr)

		case c := <-rm.starts:
			rm.handleStart(cfg, c)

		case su := <-rm.scores:
			rm.handleScore(cfg, su)

		case c := <-rm.unreg:
			rm.handleLeave(cfg, c)

		case <-rm.ticks:
			rm.handleTick(cfg)

		case <-rm.done:
			return
		}
	}
}

// handleHostJoin attaches the host display (or any spectator) to the room's
// broadcast group and replies with the current participant list.
func (rm *Room) handleHostJoin(cfg *Config, c *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActive = rm.clock.Now()
	rm.clients[c] = true
	c.rememberRoom(rm)

	rm.sendLocked(c, ParticipantsMessage{
		Type:         "updateParticipants",
		Participants: rm.participantListLocked(),
	})

	logf(cfg, "ROOMS: Host joined room %s", rm.id)
}

// handleJoin admits a player while the room is not mid-round. The room is
// closed to new entrants once a round starts.
func (rm *Room) handleJoin(cfg *Config, jr joinRequest) {
	c := jr.client

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActive = rm.clock.Now()

	if rm.phase == phaseInRound {
		rm.sendLocked(c, errorMessage("round already in progress"))
		return
	}

	rm.clients[c] = true
	c.rememberRoom(rm)

	// Rejoining on the same connection replaces the previous entry, score
	// included, keeping the original slot in the listing order.
	existing := -1
	for i, p := range rm.participants {
		if p.ConnID == c.id {
			existing = i
			break
		}
	}
	if existing >= 0 {
		rm.participants[existing].Nickname = jr.nickname
		rm.participants[existing].Score = 0
	} else {
		rm.participants = append(rm.participants, &Participant{
			ConnID:   c.id,
			Nickname: jr.nickname,
		})
		logf(cfg, "ROOMS: Player %q joined room %s (%d total)", jr.nickname, rm.id, len(rm.participants))
	}

	rm.sendLocked(c, JoinedMessage{Type: "joinedRoom"})
	rm.broadcastParticipantsLocked()
}

// handleStart begins a round: scores reset, countdown armed, everyone told.
// A start while a round is running is ignored.
func (rm *Room) handleStart(cfg *Config, c *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActive = rm.clock.Now()

	// TODO: only honor starts from the connection that created the room
	if rm.phase == phaseInRound {
		return
	}

	rm.phase = phaseInRound
	rm.remaining = cfg.roundSeconds()
	for _, p := range rm.participants {
		p.Score = 0
	}

	rm.broadcastLocked(GameStartMessage{
		Type:     "gameStart",
		Duration: rm.remaining,
	})

	rm.startTimerLocked()

	logf(cfg, "ROOMS: Round started in room %s (%d players, %ds)", rm.id, len(rm.participants), rm.remaining)
}

// handleScore records a client's absolute shake count and pushes out both
// the personalized rank reply and the room-wide leaderboard. Shakes outside
// a round, or from connections that never joined, are dropped.
func (rm *Room) handleScore(cfg *Config, su scoreUpdate) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.phase != phaseInRound {
		return
	}

	rm.lastActive = rm.clock.Now()

	var self *Participant
	for _, p := range rm.participants {
		if p.ConnID == su.client.id {
			self = p
			break
		}
	}
	if self == nil {
		return
	}

	// The client's count is authoritative; the server does not validate
	// that it only ever increases.
	self.Score = su.count

	ranked := rankParticipants(rm.participants)

	for _, entry := range ranked {
		if entry.connID != self.ConnID {
			continue
		}
		rm.sendLocked(su.client, PersonalRankMessage{
			Type:        "updateRanking",
			Rank:        entry.Rank,
			Total:       len(ranked),
			Count:       entry.Score,
			DiffToFirst: entry.gapToLeader,
			TopPlayers:  topEntries(ranked, 3),
		})
		break
	}

	rm.broadcastLocked(RankingsMessage{
		Type:     "updateRankings",
		Rankings: ranked,
	})
}

// handleLeave detaches a connection. Removal is idempotent; disconnects of
// connections that never joined as players (the host, say) only leave the
// broadcast group.
func (rm *Room) handleLeave(cfg *Config, c *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.lastActive = rm.clock.Now()
	delete(rm.clients, c)

	dst := rm.participants[:0]
	removed := false
	for _, p := range rm.participants {
		if p.ConnID == c.id {
			removed = true
			continue
		}
		dst = append(dst, p)
	}
	rm.participants = dst

	if !removed {
		return
	}

	logf(cfg, "ROOMS: Player left room %s (%d remaining)", rm.id, len(rm.participants))
	rm.broadcastParticipantsLocked()
}

// handleTick advances the countdown by one second. The final tick carries
// zero; immediately after it the round ends and the final standings go out.
func (rm *Room) handleTick(cfg *Config) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.phase != phaseInRound {
		// Stale tick from a timer raced against its own cancellation.
		return
	}

	rm.remaining--
	rm.broadcastLocked(CountdownMessage{
		Type:    "countdown",
		Seconds: rm.remaining,
	})

	if rm.remaining > 0 {
		return
	}

	rm.stopTimerLocked()
	rm.phase = phaseEnded

	rm.broadcastLocked(GameEndMessage{
		Type:     "gameEnd",
		Rankings: rankParticipants(rm.participants),
	})

	logf(cfg, "ROOMS: Round ended in room %s", rm.id)
}

// startTimerLocked arms the once-per-second countdown driver. At most one
// timer runs per room; arming replaces any previous one.
func (rm *Room) startTimerLocked() {
	rm.stopTimerLocked()

	stop := make(chan struct{})
	rm.timerStop = stop

	ticker := rm.clock.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				select {
				case rm.ticks <- struct{}{}:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopTimerLocked cancels the countdown driver. Safe to call repeatedly.
func (rm *Room) stopTimerLocked() {
	if rm.timerStop != nil {
		close(rm.timerStop)
		rm.timerStop = nil
	}
}

func (rm *Room) participantListLocked() []PlayerScore {
	list := make([]PlayerScore, 0, len(rm.participants))
	for _, p := range rm.participants {
		list = append(list, PlayerScore{
			Nickname: p.Nickname,
			Score:    p.Score,
		})
	}
	return list
}

func (rm *Room) broadcastParticipantsLocked() {
	rm.broadcastLocked(ParticipantsMessage{
		Type:         "updateParticipants",
		Participants: rm.participantListLocked(),
	})
}

// broadcastLocked fans a message out to every connection in the room.
// Delivery is fire-and-forget; a client whose buffer is full is dropped
// from the group and cleaned up by its own disconnect path.
func (rm *Room) broadcastLocked(msg any) {
	for client := range rm.clients {
		select {
		case client.send <- msg:
		default:
			delete(rm.clients, client)
		}
	}
}

// sendLocked delivers a targeted reply to one connection.
func (rm *Room) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(rm.clients, c)
	}
}

// leave hands a disconnect to the room's event loop without blocking a
// caller racing against room teardown.
func (rm *Room) leave(c *Client) {
	select {
	case rm.unreg <- c:
	case <-rm.done:
	}
}

func (rm *Room) idle(cutoff time.Time) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.lastActive.Before(cutoff)
}

// close tears the room down: timer stopped, clients disconnected, event
// loop released. Used by the store's reaper.
func (rm *Room) close() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.stopTimerLocked()
	for c := range rm.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(rm.clients, c)
	}

	select {
	case <-rm.done:
	default:
		close(rm.done)
	}
}
