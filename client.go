package main

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection: the host display or a phone.
// Its id doubles as the participant key in any room it joins. A single
// connection can be attached to more than one room, so it keeps a
// back-reference of joined rooms for disconnect cleanup.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any
	done chan struct{}

	mu    sync.Mutex
	rooms map[string]*Room
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  conn,
		send:  make(chan any, 16),
		done:  make(chan struct{}),
		rooms: make(map[string]*Room),
	}
}

// rememberRoom records that this connection is attached to rm, so the
// disconnect path can notify exactly the rooms that know about it.
func (c *Client) rememberRoom(rm *Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[rm.id] = rm
}

func (c *Client) joinedRooms() []*Room {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]*Room, 0, len(c.rooms))
	for _, rm := range c.rooms {
		rooms = append(rooms, rm)
	}
	return rooms
}

// serveWS upgrades the connection and runs the read loop until the client
// goes away, then walks the joined rooms to detach.
func serveWS(cfg *Config, store *RoomStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ROOMS: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := newClient(conn)
		logf(cfg, "ROOMS: Connection %s opened from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(cfg, store)
	}
}

func (c *Client) readPump(cfg *Config, store *RoomStore) {
	defer func() {
		for _, rm := range c.joinedRooms() {
			rm.leave(c)
		}
		close(c.done)
		_ = c.conn.Close()
		logf(cfg, "ROOMS: Connection %s closed", c.id)
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		c.dispatch(store, msg)
	}
}

// dispatch routes one client event into the owning room's serialized event
// loop. Missing rooms are an error for the join flavors and silently
// dropped for in-round traffic, matching the error taxonomy the clients
// expect.
func (c *Client) dispatch(store *RoomStore, msg ClientMessage) {
	rm, ok := store.get(msg.RoomID.String())

	switch msg.Type {
	case "hostJoinRoom":
		if !ok {
			c.reply(errorMessage("room not found"))
			return
		}
		select {
		case rm.hostJoins <- c:
		case <-rm.done:
		}

	case "joinRoom":
		if !ok {
			c.reply(errorMessage("room not found"))
			return
		}
		if msg.Nickname == "" {
			c.reply(errorMessage("nickname is required"))
			return
		}
		select {
		case rm.joins <- joinRequest{client: c, nickname: msg.Nickname}:
		case <-rm.done:
		}

	case "startGame":
		if !ok {
			return
		}
		select {
		case rm.starts <- c:
		case <-rm.done:
		}

	case "shake":
		if !ok {
			return
		}
		select {
		case rm.scores <- scoreUpdate{client: c, count: msg.Count}:
		case <-rm.done:
		}

	default:
		// ignore unknown types
	}
}

// reply queues a targeted message outside any room's event loop.
func (c *Client) reply(msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
