package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis"
	"golang.org/x/crypto/bcrypt"

	"chat-server/internal/config"
	"chat-server/internal/db"
	"chat-server/internal/events"
	grpcserver "chat-server/internal/grpc"
	"chat-server/internal/handlers"
	"chat-server/internal/rabbitmq"
	"chat-server/internal/ratelimit"
	"chat-server/internal/repositories"
	"chat-server/internal/server"
	"chat-server/internal/services"
	"chat-server/internal/telemetry"
	"chat-server/internal/ws"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Environment)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(env config.EnvironmentConfig) *slog.Logger {
	if env.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}

	database, err := db.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping().Err(); err != nil {
		logger.Warn("redis unavailable at startup", "addr", cfg.Redis.Addr, "error", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	logger.Info("amqp publisher ready", "mode", rabbitmq.PublisherMode(publisher), "reason", rabbitmq.PublisherNoopReason(publisher))
	mirror := rabbitmq.NewEventMirror(publisher, cfg.AMQP.EventBuffer, logger)
	hub := ws.NewHub(logger)
	fanout := events.Fanout{hub, mirror}

	users := repositories.NewUserRepo(database)
	chats := repositories.NewChatRepo(database)
	members := repositories.NewMemberRepo(database)
	messages := repositories.NewMessageRepo(database)
	contacts := repositories.NewContactRepo(database)
	tokens := repositories.NewRedisTokenRepository(redisClient)

	locks := services.NewChatLocks()
	authSvc := services.NewAuthService(users, tokens, services.NewBcryptHasher(bcrypt.DefaultCost), []byte(cfg.JWT.Secret), cfg.JWT.TTL, logger)
	chatSvc := services.NewChatService(users, chats, members, contacts, fanout, locks, logger)
	messageSvc := services.NewMessageService(chats, members, messages, fanout, locks, logger)
	contactSvc := services.NewContactService(users, contacts, logger)

	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Tracing.ServiceName, cfg.Environment.Current, logger)

	pingDB := func(ctx context.Context) error { return database.PingContext(ctx) }
	pingRedis := func(context.Context) error { return redisClient.Ping().Err() }

	wsHandler := ws.NewHandler(hub, authSvc, chatSvc, authSvc, publisher, ws.Options{
		SendBuffer: cfg.WebSocket.SendBuffer,
		ReadLimit:  cfg.WebSocket.ReadLimit,
	}, logger)

	router := server.NewRouter(server.Deps{
		ServiceName: cfg.Tracing.ServiceName,
		Development: cfg.Environment.IsDevelopment(),
		Auth:        handlers.NewAuthHandler(authSvc),
		Chats:       handlers.NewChatHandler(chatSvc, audit),
		Messages:    handlers.NewMessageHandler(messageSvc),
		Contacts:    handlers.NewContactHandler(contactSvc),
		Health:      handlers.NewHealthHandler(map[string]handlers.Check{"database": pingDB, "redis": pingRedis}),
		WebSocket:   wsHandler.Handle,
		Tokens:      authSvc,
		Limiter: ratelimit.New(ratelimit.Options{
			MaxKeys:   cfg.RateLimit.MaxKeys,
			KeepAlive: cfg.RateLimit.KeepAlive,
		}),
		Audit:  audit,
		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := grpcserver.NewHealthServer(map[string]grpcserver.Check{"database": pingDB, "redis": pingRedis}, logger)
	grpcListener, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			errCh <- err
		}
	}()
	go healthServer.Watch(ctx, 15*time.Second)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	hub.Close()
	if err := mirror.Close(shutdownCtx); err != nil {
		logger.Warn("event mirror did not drain", "error", err, "dropped", mirror.Dropped())
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("amqp close", "error", err)
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis close", "error", err)
	}
	if err := database.Close(); err != nil {
		logger.Warn("db close", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown", "error", err)
	}
	return runErr
}
