package ws

import (
	"encoding/json"

	"github.com/google/uuid"
)

const (
	ActionSubscribe   = "SUBSCRIBE"
	ActionUnsubscribe = "UNSUBSCRIBE"
	ActionTyping      = "TYPING"
)

// ControlFrame is what clients send over the socket.
type ControlFrame struct {
	Action string    `json:"action"`
	ChatID uuid.UUID `json:"chatId"`
}

func newConnID() string {
	return uuid.NewString()
}

func decodeControlFrame(data []byte) (ControlFrame, error) {
	var frame ControlFrame
	err := json.Unmarshal(data, &frame)
	return frame, err
}
