package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-server/internal/middleware"
	"chat-server/internal/mocks"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
	"chat-server/internal/services"
)

func newAuthRouter() (*gin.Engine, *mocks.UserRepositoryMock, *mocks.TokenRepositoryMock) {
	users := new(mocks.UserRepositoryMock)
	tokens := new(mocks.TokenRepositoryMock)
	svc := services.NewAuthService(users, tokens, services.NewBcryptHasher(bcrypt.MinCost), []byte("secret"), time.Hour, discardLogger())
	h := NewAuthHandler(svc)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)
	authed := r.Group("/api", middleware.AuthMiddleware(svc))
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/users/profile", h.Profile)
	return r, users, tokens
}

func TestRegisterThenProfileThenLogout(t *testing.T) {
	r, users, tokens := newAuthRouter()
	userID := uuid.New()
	users.On("GetUserByUsername", mock.Anything, "alice").Return(nil, repositories.ErrUserNotFound).Once()
	users.On("CreateUser", mock.Anything, mock.Anything).Return(models.User{ID: userID, Username: "alice"}, nil).Once()

	rec := perform(r, http.MethodPost, "/api/auth/register", `{"username":"alice","name":"Alice","phoneNumber":"+1","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.Token)

	tokens.On("IsRevoked", mock.Anything, mock.Anything).Return(false, nil)
	users.On("GetUser", mock.Anything, userID).Return(models.User{ID: userID, Username: "alice", Name: "Alice"}, nil).Once()

	req := authedRequest(http.MethodGet, "/api/users/profile", resp.Token)
	rec = serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)

	tokens.On("Revoke", mock.Anything, mock.Anything, mock.AnythingOfType("time.Duration")).Return(nil).Once()
	rec = serve(r, authedRequest(http.MethodPost, "/api/auth/logout", resp.Token))
	require.Equal(t, http.StatusNoContent, rec.Code)
	tokens.AssertExpectations(t)
}

func TestLoginWrongPassword(t *testing.T) {
	r, users, _ := newAuthRouter()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	users.On("GetUserByUsername", mock.Anything, "alice").Return(models.User{ID: uuid.New(), Username: "alice", PasswordHash: string(hash)}, nil).Once()

	rec := perform(r, http.MethodPost, "/api/auth/login", `{"username":"alice","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"UNAUTHORIZED"`)
}

func TestProfileWithoutToken(t *testing.T) {
	r, _, _ := newAuthRouter()
	rec := perform(r, http.MethodGet, "/api/users/profile", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
