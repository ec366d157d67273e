package client

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"chat-server/internal/events"
	"chat-server/internal/models"
)

// State is the connection state of a Session.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateOpen         State = "OPEN"
	StateSubscribed   State = "SUBSCRIBED"
	StateClosed       State = "CLOSED"
)

const typingTTL = 3 * time.Second

// Snapshot is an immutable copy of the session's view state.
type Snapshot struct {
	State       State
	ChatID      *uuid.UUID
	Messages    []models.MessageView
	TypingUsers []string
	Err         error
	Version     uint64
}

type typist struct {
	username string
	at       time.Time
}

// view is owned by the apply loop; nothing else touches it.
type view struct {
	self     uuid.UUID
	state    State
	chatID   *uuid.UUID
	messages []models.MessageView
	index    map[uuid.UUID]int
	typing   map[uuid.UUID]typist
	err      error
	version  uint64
}

func newView(self uuid.UUID) *view {
	return &view{self: self, state: StateDisconnected, index: map[uuid.UUID]int{}, typing: map[uuid.UUID]typist{}}
}

func (v *view) setState(state State, chatID *uuid.UUID, err error) {
	if !sameChat(v.chatID, chatID) {
		v.reset()
	}
	v.state = state
	v.chatID = chatID
	v.err = err
}

func (v *view) reset() {
	v.messages = nil
	v.index = map[uuid.UUID]int{}
	v.typing = map[uuid.UUID]typist{}
}

func (v *view) subscribedTo(chatID *uuid.UUID) bool {
	return v.state == StateSubscribed && chatID != nil && sameChat(v.chatID, chatID)
}

// apply folds one pushed event into the view. It reports whether anything changed.
func (v *view) apply(ev events.Event, now time.Time) bool {
	switch ev.Type {
	case events.TypeMessage:
		if ev.Message == nil || !v.subscribedTo(ev.ChatID) {
			return false
		}
		if _, dup := v.index[ev.Message.MessageID]; dup {
			return false
		}
		v.messages = append([]models.MessageView{*ev.Message}, v.messages...)
		v.reindex()
		if ev.Message.Sender.ID != uuid.Nil {
			delete(v.typing, ev.Message.Sender.ID)
		}
		return true
	case events.TypeMessageUpdated, events.TypeMessageDeleted:
		if ev.Message == nil {
			return false
		}
		i, ok := v.index[ev.Message.MessageID]
		if !ok {
			return false
		}
		v.messages[i] = *ev.Message
		return true
	case events.TypeTyping:
		if ev.UserID == nil || *ev.UserID == v.self || !v.subscribedTo(ev.ChatID) {
			return false
		}
		v.typing[*ev.UserID] = typist{username: ev.Username, at: now}
		return true
	default:
		return false
	}
}

// load merges a fetched page: page 0 replaces the list, later pages append what is not already present.
func (v *view) load(chatID uuid.UUID, page int, content []models.MessageView) bool {
	if !v.subscribedTo(&chatID) {
		return false
	}
	if page == 0 {
		v.messages = append([]models.MessageView(nil), content...)
		v.reindex()
		return true
	}
	for _, m := range content {
		if _, dup := v.index[m.MessageID]; dup {
			continue
		}
		v.index[m.MessageID] = len(v.messages)
		v.messages = append(v.messages, m)
	}
	return true
}

func (v *view) reindex() {
	v.index = make(map[uuid.UUID]int, len(v.messages))
	for i, m := range v.messages {
		v.index[m.MessageID] = i
	}
}

func (v *view) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		State:    v.state,
		Messages: append([]models.MessageView(nil), v.messages...),
		Err:      v.err,
		Version:  v.version,
	}
	if v.chatID != nil {
		id := *v.chatID
		snap.ChatID = &id
	}
	for userID, t := range v.typing {
		if now.Sub(t.at) > typingTTL {
			delete(v.typing, userID)
			continue
		}
		snap.TypingUsers = append(snap.TypingUsers, t.username)
	}
	sort.Strings(snap.TypingUsers)
	return snap
}

func sameChat(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
