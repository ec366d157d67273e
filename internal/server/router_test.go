package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-server/internal/handlers"
	"chat-server/internal/mocks"
	"chat-server/internal/models"
	"chat-server/internal/ratelimit"
	"chat-server/internal/repositories"
	"chat-server/internal/services"
	"chat-server/internal/telemetry"
	"chat-server/internal/ws"
)

type routerFixture struct {
	router    *gin.Engine
	users     *mocks.UserRepositoryMock
	tokens    *mocks.TokenRepositoryMock
	publisher *mocks.PublisherMock
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := &mocks.UserRepositoryMock{}
	users.On("GetUserByUsername", mock.Anything, "ghost").Return(models.User{}, repositories.ErrUserNotFound)
	chats := &mocks.ChatRepositoryMock{}
	members := &mocks.MemberRepositoryMock{}
	messages := &mocks.MessageRepositoryMock{}
	contacts := &mocks.ContactRepositoryMock{}
	tokens := &mocks.TokenRepositoryMock{}
	publisher := &mocks.PublisherMock{}
	recorder := &mocks.EventRecorder{}
	locks := services.NewChatLocks()

	authSvc := services.NewAuthService(users, tokens, services.NewBcryptHasher(bcrypt.MinCost), []byte("router-test-secret"), time.Hour, logger)
	chatSvc := services.NewChatService(users, chats, members, contacts, recorder, locks, logger)
	messageSvc := services.NewMessageService(chats, members, messages, recorder, locks, logger)
	contactSvc := services.NewContactService(users, contacts, logger)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat", "chat-server", "development", logger)

	hub := ws.NewHub(logger)
	t.Cleanup(hub.Close)
	wsHandler := ws.NewHandler(hub, authSvc, chatSvc, authSvc, nil, ws.Options{SendBuffer: 8, ReadLimit: 4096}, logger)

	router := NewRouter(Deps{
		ServiceName: "chat-server-test",
		Development: true,
		Auth:        handlers.NewAuthHandler(authSvc),
		Chats:       handlers.NewChatHandler(chatSvc, audit),
		Messages:    handlers.NewMessageHandler(messageSvc),
		Contacts:    handlers.NewContactHandler(contactSvc),
		Health:      handlers.NewHealthHandler(nil),
		WebSocket:   wsHandler.Handle,
		Tokens:      authSvc,
		Limiter:     ratelimit.New(ratelimit.Options{}),
		Audit:       audit,
		Logger:      logger,
	})
	return &routerFixture{router: router, users: users, tokens: tokens, publisher: publisher}
}

func newTestRouter(t *testing.T) *gin.Engine {
	return newRouterFixture(t).router
}

// login registers a stored user with the mocks and returns a bearer token for it.
func (f *routerFixture) login(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	hash, err := services.NewBcryptHasher(bcrypt.MinCost).Hash("password1")
	require.NoError(t, err)
	user := models.User{ID: uuid.New(), Username: "dora", PasswordHash: hash}
	f.users.On("GetUserByUsername", mock.Anything, "dora").Return(user, nil)
	f.tokens.On("IsRevoked", mock.Anything, mock.Anything).Return(false, nil)

	rec := request(f.router, http.MethodPost, "/api/auth/login", `{"username":"dora","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return user.ID, body.Token
}

func authed(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Forwarded-For", "198.51.100.21")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func request(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.20")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouterRateLimitsLogin(t *testing.T) {
	r := newTestRouter(t)
	body := `{"username":"ghost","password":"whatever"}`

	for i := 0; i < 10; i++ {
		rec := request(r, http.MethodPost, "/api/auth/login", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "request %d", i+1)
	}
	rec := request(r, http.MethodPost, "/api/auth/login", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouterOperationalEndpointsAreExempt(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 150; i++ {
		require.Equal(t, http.StatusOK, request(r, http.MethodGet, "/health", "").Code)
	}
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/metrics", "").Code)
}

func TestRouterRequiresBearerToken(t *testing.T) {
	r := newTestRouter(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/chats"},
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/contacts"},
		{http.MethodGet, "/api/users/profile"},
		{http.MethodPost, "/api/auth/logout"},
	} {
		rec := request(r, route.method, route.path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestRouterWebSocketRejectsMissingToken(t *testing.T) {
	r := newTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/ws", "").Code)
}

func TestRouterDebugAuditPublishesEnvelope(t *testing.T) {
	f := newRouterFixture(t)
	userID, token := f.login(t)

	var published telemetry.AuditEnvelope
	f.publisher.On("Publish", mock.Anything, "audit.chat", mock.AnythingOfType("telemetry.AuditEnvelope"), mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2).(telemetry.AuditEnvelope) }).
		Return(nil).Once()

	rec := authed(f.router, http.MethodPost, "/api/debug/audit-test", token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	f.publisher.AssertExpectations(t)
	assert.Equal(t, "audit_test", published.Payload.Action)
	require.NotNil(t, published.UserID)
	assert.Equal(t, userID, *published.UserID)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), published.RequestID)
}

func TestRouterDebugRateLimitClassifiesPath(t *testing.T) {
	f := newRouterFixture(t)
	_, token := f.login(t)

	rec := authed(f.router, http.MethodGet, "/api/debug/ratelimit?path=/api/auth/login", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Class       string `json:"class"`
		Capacity    int    `json:"capacity"`
		TrackedKeys int    `json:"trackedKeys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "auth", body.Class)
	assert.Equal(t, 10, body.Capacity)
	assert.Positive(t, body.TrackedKeys)

	assert.Equal(t, http.StatusBadRequest, authed(f.router, http.MethodGet, "/api/debug/ratelimit", token).Code)
}
