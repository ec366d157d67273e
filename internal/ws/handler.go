package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-server/internal/apperr"
	"chat-server/internal/events"
	"chat-server/internal/middleware"
	"chat-server/internal/models"
	"chat-server/internal/observability"
	"chat-server/internal/services"
)

const lifecycleRoutingKey = "ws_events.connections"

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (services.Identity, error)
}

// MembershipChecker runs join only for current members, serialised with membership changes.
type MembershipChecker interface {
	JoinIfMember(ctx context.Context, chatID, userID uuid.UUID, join func()) (bool, error)
}

type ProfileLookup interface {
	Profile(ctx context.Context, userID uuid.UUID) (models.UserView, error)
}

// LifecyclePublisher receives connect and disconnect envelopes. Optional.
type LifecyclePublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

type Options struct {
	SendBuffer int
	ReadLimit  int64
}

// Handler upgrades GET /ws and serves the control protocol.
type Handler struct {
	hub       *Hub
	tokens    TokenValidator
	members   MembershipChecker
	profiles  ProfileLookup
	lifecycle LifecyclePublisher
	opts      Options
	logger    *slog.Logger
}

func NewHandler(hub *Hub, tokens TokenValidator, members MembershipChecker, profiles ProfileLookup, lifecycle LifecyclePublisher, opts Options, logger *slog.Logger) *Handler {
	return &Handler{
		hub:       hub,
		tokens:    tokens,
		members:   members,
		profiles:  profiles,
		lifecycle: lifecycle,
		opts:      opts,
		logger:    logger,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades and attaches the connection to the caller's personal queue.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-server/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	identity, err := h.tokens.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": string(apperr.KindOf(err)), "message": apperr.MessageOf(err)})
		return
	}
	profile, err := h.profiles.Profile(ctx, identity.UserID)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": string(apperr.KindOf(err)), "message": apperr.MessageOf(err)})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      identity.UserID,
		Username:    profile.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromContext(ctx),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info, h.opts.SendBuffer)
	h.hub.Register(client)
	h.publishLifecycle(info, "ws_connect", "")
	h.logger.Debug("websocket connected", "conn_id", info.ConnID, "user_id", info.UserID)

	go client.writePump()
	go func() {
		reason := client.readPump(h.hub, h.opts.ReadLimit, h.handleFrame)
		h.publishLifecycle(info, "ws_disconnect", reason)
		h.logger.Debug("websocket disconnected", "conn_id", info.ConnID, "reason", reason)
	}()
}

// handleFrame applies one control frame. Undecodable frames are logged and ignored.
func (h *Handler) handleFrame(c *Client, data []byte) {
	frame, err := decodeControlFrame(data)
	if err != nil {
		h.logger.Warn("ignoring malformed websocket frame", "conn_id", c.info.ConnID, "error", err)
		observability.IncWSEvent("ws_bad_frame")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	chatID := frame.ChatID

	switch frame.Action {
	case ActionSubscribe:
		member, err := h.members.JoinIfMember(ctx, chatID, c.info.UserID, func() { h.hub.Subscribe(c, chatID) })
		if err != nil {
			h.logger.Error("membership check failed", "chat_id", chatID, "error", err)
			h.hub.SendTo(c, events.ErrorFrame(&chatID, "could not verify membership"))
			return
		}
		if !member {
			h.hub.SendTo(c, events.ErrorFrame(&chatID, "not a member of this chat"))
			return
		}
		observability.IncWSEvent("ws_subscribe")
	case ActionUnsubscribe:
		h.hub.Unsubscribe(c, chatID)
		observability.IncWSEvent("ws_unsubscribe")
	case ActionTyping:
		if !h.hub.IsSubscribed(c, chatID) {
			h.hub.SendTo(c, events.ErrorFrame(&chatID, "subscribe to the chat before sending typing notices"))
			return
		}
		h.hub.PublishToTopic(ctx, chatID, events.Typing(chatID, c.info.UserID, c.info.Username))
	default:
		h.hub.SendTo(c, events.ErrorFrame(nil, "unknown action "+frame.Action))
	}
}

func (h *Handler) publishLifecycle(info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)
	if h.lifecycle == nil {
		return
	}
	envelope := observability.NewEnvelope("ws_events", event, info.payload(event, reason))
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := h.lifecycle.Publish(context.Background(), lifecycleRoutingKey, envelope, headers); err != nil {
		h.logger.Warn("websocket lifecycle publish failed", "event", event, "error", err)
	}
}
