package dev

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/entrhq/livecontrol/pkg/types"
)

var (
	nicknames = []string{"Xiaohong", "Dazhuang", "user123", "tester", "Ali"}
	comments  = []string{"Hello!", "Looks great", "Ordered", "Let's go", "Followed~", "How much is #3?"}
	msgTypes  = []types.LiveMessageType{
		types.LiveMessageComment,
		types.LiveMessageRoomEnter,
		types.LiveMessageRoomLike,
		types.LiveMessageOrder,
		types.LiveMessageBrandVIP,
		types.LiveMessageFollow,
		types.LiveMessageFansClub,
	}
)

func pick[T any](items []T) T {
	return items[rand.IntN(len(items))]
}

// mockMessage returns a random live room event.
func mockMessage() types.LiveMessage {
	msg := types.LiveMessage{
		ID:       strconv.FormatUint(rand.Uint64(), 36),
		Type:     pick(msgTypes),
		Nickname: pick(nicknames),
		UserID:   strconv.Itoa(rand.IntN(1000000)),
		Time:     time.Now(),
	}
	switch msg.Type {
	case types.LiveMessageComment:
		msg.Content = pick(comments)
		msg.UserID = ""
	case types.LiveMessageBrandVIP:
		msg.Content = "joined the brand membership!"
	case types.LiveMessageOrder:
		msg.Content = "placed an order"
	}
	return msg
}
