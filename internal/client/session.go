package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-server/internal/apperr"
	"chat-server/internal/events"
	"chat-server/internal/models"
	"chat-server/internal/ws"
)

type Config struct {
	// BaseURL is the server's http(s) root; the socket lives at /ws under it.
	BaseURL    string
	Token      string
	UserID     uuid.UUID
	InboxSize  int
	Dialer     *websocket.Dialer
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

type op func(v *view) bool

// Session is the client side of the real-time protocol. One read loop feeds a bounded
// inbox; a single apply loop owns the view and publishes snapshots on Updates.
type Session struct {
	cfg     Config
	inbox   chan op
	updates chan Snapshot
	done    chan struct{}
	stop    sync.Once

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	state   State
	chatID  *uuid.UUID

	// dialSeq identifies the newest Connect; cancelDial aborts it.
	dialSeq    uint64
	cancelDial context.CancelFunc
}

var errDisconnected = errors.New("disconnected while connecting")

func New(cfg Config) *Session {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Session{
		cfg:     cfg,
		inbox:   make(chan op, cfg.InboxSize),
		updates: make(chan Snapshot, 1),
		done:    make(chan struct{}),
		state:   StateDisconnected,
	}
	go s.applyLoop(newView(cfg.UserID))
	return s
}

// Updates delivers the latest snapshot. A slow reader only ever sees the newest one.
func (s *Session) Updates() <-chan Snapshot {
	return s.updates
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the server. Valid from DISCONNECTED or CLOSED. The lock is not held
// while dialing, so Disconnect can abort a pending handshake.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected && s.state != StateClosed {
		state := s.state
		s.mu.Unlock()
		return apperr.Validation("cannot connect while %s", state)
	}
	s.transition(StateConnecting, nil, nil)

	wsURL, err := socketURL(s.cfg.BaseURL)
	if err != nil {
		connErr := apperr.Connection("connect", err)
		s.transition(StateClosed, nil, connErr)
		s.mu.Unlock()
		return connErr
	}
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.dialSeq++
	seq := s.dialSeq
	s.cancelDial = cancel
	s.mu.Unlock()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.Token)
	conn, _, err := s.cfg.Dialer.DialContext(dialCtx, wsURL, header)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.dialSeq || s.state != StateConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return apperr.Connection("connect", errDisconnected)
	}
	s.cancelDial = nil
	if err != nil {
		connErr := apperr.Connection("connect", err)
		s.transition(StateClosed, nil, connErr)
		return connErr
	}

	s.conn = conn
	s.transition(StateOpen, nil, nil)
	go s.readLoop(conn)
	return nil
}

// SubscribeToChat switches the active chat. Valid from OPEN or SUBSCRIBED.
func (s *Session) SubscribeToChat(chatID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen && s.state != StateSubscribed {
		return apperr.Validation("cannot subscribe while %s", s.state)
	}
	if s.state == StateSubscribed && *s.chatID == chatID {
		return nil
	}
	if s.chatID != nil {
		if err := s.send(ws.ControlFrame{Action: ws.ActionUnsubscribe, ChatID: *s.chatID}); err != nil {
			return err
		}
	}
	if err := s.send(ws.ControlFrame{Action: ws.ActionSubscribe, ChatID: chatID}); err != nil {
		return err
	}
	s.transition(StateSubscribed, &chatID, nil)
	return nil
}

// Unsubscribe leaves the active chat and returns to OPEN.
func (s *Session) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubscribed {
		return nil
	}
	if err := s.send(ws.ControlFrame{Action: ws.ActionUnsubscribe, ChatID: *s.chatID}); err != nil {
		return err
	}
	s.transition(StateOpen, nil, nil)
	return nil
}

// SendTyping tells the other members of the active chat that the user is typing.
func (s *Session) SendTyping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubscribed {
		return apperr.Validation("not subscribed to a chat")
	}
	return s.send(ws.ControlFrame{Action: ws.ActionTyping, ChatID: *s.chatID})
}

// Disconnect closes the connection. Valid from any state; repeating it is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Reconnect is Disconnect followed by Connect.
func (s *Session) Reconnect(ctx context.Context) error {
	s.Disconnect()
	return s.Connect(ctx)
}

// Close disconnects and stops the apply loop. The session is unusable afterwards.
func (s *Session) Close() {
	s.Disconnect()
	s.stop.Do(func() { close(s.done) })
}

// LoadMessages fetches a page of the active chat over REST and merges it into the view.
func (s *Session) LoadMessages(ctx context.Context, page, size int) (models.Page[models.MessageView], error) {
	s.mu.Lock()
	chatID := s.chatID
	s.mu.Unlock()
	if chatID == nil {
		return models.Page[models.MessageView]{}, apperr.Validation("not subscribed to a chat")
	}

	endpoint := fmt.Sprintf("%s/api/messages/%s?page=%d&size=%d", strings.TrimRight(s.cfg.BaseURL, "/"), chatID, page, size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Page[models.MessageView]{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)

	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return models.Page[models.MessageView]{}, apperr.Connection("load messages", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.Page[models.MessageView]{}, decodeError(resp)
	}

	var result models.Page[models.MessageView]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.Page[models.MessageView]{}, apperr.Connection("decode messages", err)
	}
	id := *chatID
	s.enqueue(func(v *view) bool { return v.load(id, page, result.Content) })
	return result, nil
}

// transition records the new state and queues it for the view. Callers hold s.mu.
func (s *Session) transition(state State, chatID *uuid.UUID, err error) {
	s.state = state
	s.chatID = chatID
	s.enqueue(func(v *view) bool {
		v.setState(state, chatID, err)
		return true
	})
}

func (s *Session) closeLocked() {
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	if s.conn != nil {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.state != StateClosed {
		s.transition(StateClosed, nil, nil)
	}
}

func (s *Session) send(frame ws.ControlFrame) error {
	if s.conn == nil {
		return apperr.Connection("send", fmt.Errorf("not connected"))
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(frame); err != nil {
		return apperr.Connection("send "+strings.ToLower(frame.Action), err)
	}
	return nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				_ = conn.Close()
				s.transition(StateClosed, nil, apperr.Connection("read", err))
			}
			s.mu.Unlock()
			return
		}

		var ev events.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.cfg.Logger.Warn("ignoring undecodable frame", "error", err)
			continue
		}
		switch ev.Type {
		case events.TypeError:
			s.cfg.Logger.Warn("server rejected control frame", "error", ev.Error)
			continue
		case events.TypeChatRemoved:
			s.mu.Lock()
			if s.state == StateSubscribed && sameChat(s.chatID, ev.ChatID) {
				s.transition(StateOpen, nil, nil)
			}
			s.mu.Unlock()
			continue
		}
		s.enqueue(func(v *view) bool { return v.apply(ev, s.cfg.Now()) })
	}
}

// enqueue blocks while the inbox is full, so the read loop applies back-pressure instead of dropping.
func (s *Session) enqueue(o op) {
	select {
	case s.inbox <- o:
	case <-s.done:
	}
}

func (s *Session) applyLoop(v *view) {
	s.publish(v.snapshot(s.cfg.Now()))
	for {
		select {
		case o := <-s.inbox:
			if o(v) {
				v.version++
				s.publish(v.snapshot(s.cfg.Now()))
			}
		case <-s.done:
			return
		}
	}
}

// publish replaces any unread snapshot with snap. Only the apply loop sends on updates.
func (s *Session) publish(snap Snapshot) {
	select {
	case s.updates <- snap:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

func socketURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Message == "" {
		body.Message = resp.Status
	}
	kind := apperr.Kind(body.Error)
	if resp.StatusCode == http.StatusTooManyRequests {
		kind = apperr.KindRateLimited
	}
	if kind == "" {
		kind = apperr.KindConnection
	}
	return &apperr.Error{Kind: kind, Message: body.Message}
}
