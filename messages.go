package main

import (
	"bytes"
)

// roomID tolerates both `"12345"` and `12345` on the wire; the original
// host client sent room ids as bare numbers while the mobile client sent
// strings lifted straight from the query parameter.
type roomID string

func (r *roomID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if string(data) == "null" {
		*r = ""
		return nil
	}
	*r = roomID(data)
	return nil
}

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`               // "hostJoinRoom", "joinRoom", "startGame", "shake"
	RoomID   roomID `json:"roomId,omitempty"`   // all types
	Nickname string `json:"nickname,omitempty"` // joinRoom
	Count    int    `json:"count,omitempty"`    // shake: absolute cumulative total, not a delta
}

// PlayerScore is the public view of one participant.
type PlayerScore struct {
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// ParticipantsMessage is broadcast on every join and leave.
type ParticipantsMessage struct {
	Type         string        `json:"type"` // "updateParticipants"
	Participants []PlayerScore `json:"participants"`
}

// JoinedMessage confirms a successful join to the joining client only.
type JoinedMessage struct {
	Type string `json:"type"` // "joinedRoom"
}

// GameStartMessage is broadcast when a round begins.
type GameStartMessage struct {
	Type     string `json:"type"`     // "gameStart"
	Duration int    `json:"duration"` // round length in seconds
}

// CountdownMessage is broadcast once per second during a round.
type CountdownMessage struct {
	Type    string `json:"type"` // "countdown"
	Seconds int    `json:"seconds"`
}

// PersonalRankMessage goes only to the client whose shake produced it.
type PersonalRankMessage struct {
	Type        string        `json:"type"` // "updateRanking"
	Rank        int           `json:"rank"`
	Total       int           `json:"total"`
	Count       int           `json:"count"`
	DiffToFirst int           `json:"diffToFirst"`
	TopPlayers  []RankedEntry `json:"topPlayers"`
}

// RankingsMessage carries the live leaderboard to the whole room.
type RankingsMessage struct {
	Type     string        `json:"type"` // "updateRankings"
	Rankings []RankedEntry `json:"rankings"`
}

// GameEndMessage carries the final standings when the countdown hits zero.
type GameEndMessage struct {
	Type     string        `json:"type"` // "gameEnd"
	Rankings []RankedEntry `json:"rankings"`
}

// ErrorMessage is sent to a single client when a request cannot be honored.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func errorMessage(text string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: text}
}

// CreateRoomResponse answers POST /api/rooms.
type CreateRoomResponse struct {
	RoomID string `json:"roomId"`
	QRCode string `json:"qrCode"` // base64 PNG data url of the mobile join link
}

func (r roomID) String() string {
	return string(r)
}
