package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-server/internal/handlers"
	"chat-server/internal/middleware"
	"chat-server/internal/observability"
	"chat-server/internal/ratelimit"
	"chat-server/internal/telemetry"
)

// Deps is everything the HTTP surface needs. All fields are required except Audit.
type Deps struct {
	ServiceName string
	Development bool

	Auth      *handlers.AuthHandler
	Chats     *handlers.ChatHandler
	Messages  *handlers.MessageHandler
	Contacts  *handlers.ContactHandler
	Health    *handlers.HealthHandler
	WebSocket gin.HandlerFunc

	Tokens  middleware.TokenValidator
	Limiter *ratelimit.Limiter
	Audit   *telemetry.AuditEmitter
	Logger  *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if !d.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if d.Development {
		r.Use(gin.Logger())
	}
	r.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RateLimit(d.Limiter, d.Logger),
		otelgin.Middleware(d.ServiceName),
		observability.HTTPMetricsMiddleware(),
	)

	r.GET("/health", d.Health.Health)
	r.GET("/ready", d.Health.Ready)
	r.GET("/live", d.Health.Live)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", d.WebSocket)

	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)

	secured := api.Group("", middleware.AuthMiddleware(d.Tokens))
	secured.POST("/auth/logout", d.Auth.Logout)
	secured.GET("/users/profile", d.Auth.Profile)

	chats := secured.Group("/chats")
	chats.POST("", d.Chats.CreateChat)
	chats.GET("", d.Chats.ListChats)
	chats.GET("/members/:chatId", d.Chats.ListMembers)
	chats.POST("/members", d.Chats.AddMembers)
	chats.DELETE("/members", d.Chats.RemoveMembers)
	chats.PATCH("/members/role", d.Chats.UpdateMemberRole)
	chats.PATCH("/group", d.Chats.UpdateGroup)

	messages := secured.Group("/messages")
	messages.POST("", d.Messages.SendMessage)
	messages.GET("/:chatId", d.Messages.ListMessages)
	messages.PATCH("", d.Messages.EditMessage)
	messages.DELETE("/:messageId", d.Messages.DeleteMessage)

	contacts := secured.Group("/contacts")
	contacts.GET("", d.Contacts.ListContacts)
	contacts.POST("/add", d.Contacts.AddContact)
	contacts.PATCH("", d.Contacts.UpdateContact)
	contacts.DELETE("/delete/:userId", d.Contacts.DeleteContact)
	contacts.GET("/phone", d.Contacts.FindByPhone)

	handlers.RegisterDebugRoutes(secured, d.Audit, d.Limiter, d.Development)
	return r
}
