package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chat-server/internal/apperr"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

const minPasswordLength = 6

type RegisterRequest struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Identity is what a validated bearer token says about the caller.
type Identity struct {
	UserID    uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}

type AuthService struct {
	users  repositories.UserRepository
	tokens repositories.TokenRepository
	hasher Hasher
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewAuthService(users repositories.UserRepository, tokens repositories.TokenRepository, hasher Hasher, secret []byte, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the time source, for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	username := strings.TrimSpace(req.Username)
	phone := strings.TrimSpace(req.PhoneNumber)
	if username == "" || phone == "" {
		return "", apperr.Validation("username and phone number are required")
	}
	if len(req.Password) < minPasswordLength {
		return "", apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		s.logger.Warn("username already exists", "username", username)
		return "", apperr.Validation("username is already taken")
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return "", storageErr("get user", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return "", err
	}
	user, err := s.users.CreateUser(ctx, models.User{
		ID:           uuid.New(),
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		PhoneNumber:  phone,
		PasswordHash: hash,
	})
	if errors.Is(err, repositories.ErrDuplicate) {
		return "", apperr.Validation("username or phone number is already registered")
	}
	if err != nil {
		return "", storageErr("create user", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return s.issue(user.ID)
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, repositories.ErrUserNotFound) {
		s.logger.Warn("login for unknown user", "username", req.Username)
		return "", apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return "", storageErr("get user", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.logger.Warn("invalid password", "username", req.Username)
		return "", apperr.Unauthorized("invalid credentials")
	}
	return s.issue(user.ID)
}

// ValidateToken parses a bearer token and rejects revoked ones.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.Unauthorized("missing token")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, apperr.Unauthorized("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" {
		return Identity{}, apperr.Unauthorized("invalid token claims")
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		s.logger.Error("token revocation check failed", "error", err)
		return Identity{}, apperr.Transient("check token revocation", err)
	}
	if revoked {
		return Identity{}, apperr.Unauthorized("token revoked")
	}
	return Identity{UserID: userID, TokenID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, id Identity) error {
	if err := s.tokens.Revoke(ctx, id.TokenID, id.ExpiresAt.Sub(s.now())); err != nil {
		return apperr.Transient("revoke token", err)
	}
	s.logger.Info("token revoked", "user_id", id.UserID)
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (models.UserView, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return models.UserView{}, storageErr("get user", err)
	}
	return models.NewUserView(user), nil
}

func (s *AuthService) issue(userID uuid.UUID) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		s.logger.Error("token generation failed", "error", err)
		return "", err
	}
	return signed, nil
}
