package services

import (
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 64

// ChatLocks serialises mutations per chat so topic events leave in commit order.
// Chats share one of a fixed set of mutexes; unrelated chats may contend.
type ChatLocks struct {
	stripes [lockStripes]sync.Mutex
}

func NewChatLocks() *ChatLocks {
	return &ChatLocks{}
}

// Lock acquires the stripe for chatID and returns its unlock func.
func (l *ChatLocks) Lock(chatID uuid.UUID) func() {
	m := &l.stripes[int(chatID[15])%lockStripes]
	m.Lock()
	return m.Unlock
}
