package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-server/internal/apperr"
	"chat-server/internal/mocks"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

var testSecret = []byte("test-secret")

func newAuthFixture() (*AuthService, *mocks.UserRepositoryMock, *mocks.TokenRepositoryMock) {
	users := new(mocks.UserRepositoryMock)
	tokens := new(mocks.TokenRepositoryMock)
	svc := NewAuthService(users, tokens, NewBcryptHasher(bcrypt.MinCost), testSecret, time.Hour, discardLogger())
	return svc, users, tokens
}

func TestRegisterIssuesToken(t *testing.T) {
	svc, users, tokens := newAuthFixture()
	users.On("GetUserByUsername", mock.Anything, "alice").Return(nil, repositories.ErrUserNotFound).Once()
	var created models.User
	users.On("CreateUser", mock.Anything, mock.AnythingOfType("models.User")).Run(func(args mock.Arguments) {
		created = args.Get(1).(models.User)
	}).Return(models.User{ID: uuid.New(), Username: "alice"}, nil).Once()

	token, err := svc.Register(context.Background(), RegisterRequest{Username: " alice ", Name: "Alice", PhoneNumber: "+100", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "alice", created.Username)
	assert.NotEqual(t, "secret1", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret1")))

	tokens.On("IsRevoked", mock.Anything, mock.Anything).Return(false, nil).Once()
	id, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id.UserID)
}

func TestRegisterValidation(t *testing.T) {
	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"missing username", RegisterRequest{PhoneNumber: "+1", Password: "secret1"}},
		{"missing phone", RegisterRequest{Username: "bob", Password: "secret1"}},
		{"short password", RegisterRequest{Username: "bob", PhoneNumber: "+1", Password: "123"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, users, _ := newAuthFixture()
			_, err := svc.Register(context.Background(), tc.req)
			requireKind(t, err, apperr.KindValidation)
			users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, users, _ := newAuthFixture()
	users.On("GetUserByUsername", mock.Anything, "bob").Return(models.User{ID: uuid.New(), Username: "bob"}, nil).Once()

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "bob", PhoneNumber: "+1", Password: "secret1"})
	requireKind(t, err, apperr.KindValidation)
}

func TestRegisterDuplicatePhone(t *testing.T) {
	svc, users, _ := newAuthFixture()
	users.On("GetUserByUsername", mock.Anything, "bob").Return(nil, repositories.ErrUserNotFound).Once()
	users.On("CreateUser", mock.Anything, mock.Anything).Return(nil, repositories.ErrDuplicate).Once()

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "bob", PhoneNumber: "+1", Password: "secret1"})
	requireKind(t, err, apperr.KindValidation)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	user := models.User{ID: uuid.New(), Username: "alice", PasswordHash: string(hash)}

	t.Run("valid credentials", func(t *testing.T) {
		svc, users, _ := newAuthFixture()
		users.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
		token, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "secret1"})
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, users, _ := newAuthFixture()
		users.On("GetUserByUsername", mock.Anything, "alice").Return(user, nil).Once()
		_, err := svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "nope"})
		requireKind(t, err, apperr.KindUnauthorized)
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, users, _ := newAuthFixture()
		users.On("GetUserByUsername", mock.Anything, "ghost").Return(nil, repositories.ErrUserNotFound).Once()
		_, err := svc.Login(context.Background(), LoginRequest{Username: "ghost", Password: "secret1"})
		requireKind(t, err, apperr.KindUnauthorized)
	})
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestValidateTokenRejects(t *testing.T) {
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ID:        "jti-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	badSubject := valid
	badSubject.Subject = "not-a-uuid"
	noID := valid
	noID.ID = ""

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), valid),
		"wrong alg":    signToken(t, jwt.SigningMethodHS512, testSecret, valid),
		"expired":      signToken(t, jwt.SigningMethodHS256, testSecret, expired),
		"no expiry":    signToken(t, jwt.SigningMethodHS256, testSecret, noExpiry),
		"bad subject":  signToken(t, jwt.SigningMethodHS256, testSecret, badSubject),
		"no token id":  signToken(t, jwt.SigningMethodHS256, testSecret, noID),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, tokens := newAuthFixture()
			_, err := svc.ValidateToken(context.Background(), token)
			requireKind(t, err, apperr.KindUnauthorized)
			tokens.AssertNotCalled(t, "IsRevoked", mock.Anything, mock.Anything)
		})
	}
}

func TestValidateTokenRevocation(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ID:        "jti-2",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token := signToken(t, jwt.SigningMethodHS256, testSecret, claims)

	t.Run("revoked", func(t *testing.T) {
		svc, _, tokens := newAuthFixture()
		tokens.On("IsRevoked", mock.Anything, "jti-2").Return(true, nil).Once()
		_, err := svc.ValidateToken(context.Background(), token)
		requireKind(t, err, apperr.KindUnauthorized)
	})

	t.Run("store unavailable", func(t *testing.T) {
		svc, _, tokens := newAuthFixture()
		tokens.On("IsRevoked", mock.Anything, "jti-2").Return(false, assert.AnError).Once()
		_, err := svc.ValidateToken(context.Background(), token)
		requireKind(t, err, apperr.KindTransientStorage)
	})
}

func TestLogoutRevokesForRemainingLifetime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc, _, tokens := newAuthFixture()
	svc.WithClock(func() time.Time { return now })

	id := Identity{UserID: uuid.New(), TokenID: "jti-3", ExpiresAt: now.Add(30 * time.Minute)}
	tokens.On("Revoke", mock.Anything, "jti-3", 30*time.Minute).Return(nil).Once()

	require.NoError(t, svc.Logout(context.Background(), id))
	tokens.AssertExpectations(t)
}

func TestProfile(t *testing.T) {
	svc, users, _ := newAuthFixture()
	user := models.User{ID: uuid.New(), Username: "alice", Name: "Alice", PhoneNumber: "+100", PasswordHash: "x"}
	users.On("GetUser", mock.Anything, user.ID).Return(user, nil).Once()

	view, err := svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.UserView{ID: user.ID, Username: "alice", Name: "Alice", PhoneNumber: "+100"}, view)

	users.On("GetUser", mock.Anything, mock.Anything).Return(nil, repositories.ErrUserNotFound).Once()
	_, err = svc.Profile(context.Background(), uuid.New())
	requireKind(t, err, apperr.KindNotFound)
}
