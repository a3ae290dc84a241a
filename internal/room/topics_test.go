package room

import (
	"regexp"
	"testing"
)

func TestClassifyTopic(t *testing.T) {
	roomID := "room-ABC123"
	cases := []struct {
		topic string
		want  messageKind
	}{
		{topicPlayers(roomID), kindSnapshot},
		{topicUpdate(roomID), kindDelta},
		{topicPing(roomID), kindPing},
		{topicStart(roomID), kindStart},
		{topicState(roomID), kindState},
		{topicHands(roomID, "p_1_2"), kindPose},
		{topicPrefix(roomID) + "/unknown", kindUnknown},
		{topicPlayers("room-OTHER1"), kindUnknown},
		{"garbage", kindUnknown},
	}
	for _, c := range cases {
		if got := classifyTopic(roomID, c.topic); got != c.want {
			t.Fatalf("classifyTopic(%q) = %d, want %d", c.topic, got, c.want)
		}
	}
}

func TestNewRoomIDFormat(t *testing.T) {
	re := regexp.MustCompile(`^room-[A-Z0-9]{6}$`)
	for i := 0; i < 50; i++ {
		if id := NewRoomID(); !re.MatchString(id) {
			t.Fatalf("unexpected room id %q", id)
		}
	}
}
