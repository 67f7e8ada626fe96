package main

import (
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RoomStore is the process-wide registry of active rooms, keyed by the
// short numeric id embedded in join links. Rooms live for the life of the
// process unless an idle timeout is configured, in which case a reaper
// ends rooms nobody has touched.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room

	clock       clockwork.Clock
	idleTimeout time.Duration
}

func newRoomStore(clock clockwork.Clock, idleTimeout time.Duration) *RoomStore {
	s := &RoomStore{
		rooms:       make(map[string]*Room),
		clock:       clock,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go s.reaperLoop()
	}
	return s
}

// create registers a room under a fresh id and starts its event loop.
func (s *RoomStore) create(cfg *Config) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newRoomIDLocked()
	rm := newRoom(id, s.clock)
	s.rooms[id] = rm
	go rm.run(cfg)

	return rm
}

func (s *RoomStore) get(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[id]
	return rm, ok
}

// newRoomIDLocked generates a crypto-random five-digit room id, retrying
// until it doesn't collide with a live room. Five digits keeps the code
// typeable for guests whose camera won't scan.
func (s *RoomStore) newRoomIDLocked() string {
	for {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}

		n := 10000 + binary.BigEndian.Uint32(buf[:])%90000
		id := strconv.Itoa(int(n))

		if _, exists := s.rooms[id]; !exists {
			return id
		}
	}
}

// reaperLoop periodically ends rooms that have been idle longer than the
// configured timeout.
func (s *RoomStore) reaperLoop() {
	ticker := s.clock.NewTicker(s.idleTimeout / 2)
	defer ticker.Stop()

	for range ticker.Chan() {
		cutoff := s.clock.Now().Add(-s.idleTimeout)

		s.mu.Lock()
		for id, rm := range s.rooms {
			if rm.idle(cutoff) {
				delete(s.rooms, id)
				go rm.close()
			}
		}
		s.mu.Unlock()
	}
}
