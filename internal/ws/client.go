package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one websocket connection. Only writePump writes to conn.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	info   ConnInfo
	topics map[uuid.UUID]struct{}
}

func newClient(conn *websocket.Conn, info ConnInfo, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 1
	}
	return &Client{conn: conn, send: make(chan []byte, sendBuffer), info: info}
}

func (c *Client) Info() ConnInfo {
	return c.info
}

// readPump feeds inbound frames to handle until the connection fails, then unregisters.
func (c *Client) readPump(hub *Hub, readLimit int64, handle func(*Client, []byte)) string {
	defer func() {
		hub.Unregister(c)
		_ = c.conn.Close()
	}()

	if readLimit > 0 {
		c.conn.SetReadLimit(readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return err.Error()
		}
		handle(c, data)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
