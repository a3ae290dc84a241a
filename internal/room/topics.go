package room

import (
	"math/rand"
	"strings"
)

// Topic namespace per room. The prefix is shared with the original browser
// clients so mixed fleets converge on the same retained snapshots.
const topicRoot = "game/rooms"

func topicPrefix(roomID string) string  { return topicRoot + "/" + roomID }
func topicAll(roomID string) string     { return topicPrefix(roomID) + "/#" }
func topicPlayers(roomID string) string { return topicPrefix(roomID) + "/players" }
func topicUpdate(roomID string) string  { return topicPrefix(roomID) + "/players/update" }
func topicPing(roomID string) string    { return topicPrefix(roomID) + "/ping" }
func topicStart(roomID string) string   { return topicPrefix(roomID) + "/start" }
func topicState(roomID string) string   { return topicPrefix(roomID) + "/state" }
func topicHands(roomID, playerID string) string {
	return topicPrefix(roomID) + "/hands/" + playerID
}

const roomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRoomID generates a room code like "room-X7K2QD".
func NewRoomID() string {
	var b strings.Builder
	b.WriteString("room-")
	for i := 0; i < 6; i++ {
		b.WriteByte(roomCodeChars[rand.Intn(len(roomCodeChars))])
	}
	return b.String()
}

// messageKind classifies an inbound topic under a room prefix. Unknown
// topics map to kindUnknown and are dropped by the dispatcher.
type messageKind int

const (
	kindUnknown messageKind = iota
	kindSnapshot
	kindDelta
	kindPing
	kindStart
	kindState
	kindPose
)

// classifyTopic resolves topic to a message kind within roomID's namespace.
// Topics outside the room return kindUnknown, which is how messages still in
// flight for a previously left room get ignored.
func classifyTopic(roomID, topic string) messageKind {
	prefix := topicPrefix(roomID) + "/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return kindUnknown
	}
	switch rest {
	case "players":
		return kindSnapshot
	case "players/update":
		return kindDelta
	case "ping":
		return kindPing
	case "start":
		return kindStart
	case "state":
		return kindState
	}
	if strings.HasPrefix(rest, "hands/") {
		return kindPose
	}
	return kindUnknown
}
