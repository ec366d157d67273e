package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	var created models.User
	if val := args.Get(0); val != nil {
		created = val.(models.User)
	}
	return created, args.Error(1)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetUserByPhone(ctx context.Context, phone string) (models.User, error) {
	args := m.Called(ctx, phone)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChatWithMembers(ctx context.Context, chat models.Chat, members []models.Member) (models.Chat, error) {
	args := m.Called(ctx, chat, members)
	var created models.Chat
	if val := args.Get(0); val != nil {
		created = val.(models.Chat)
	}
	return created, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID uuid.UUID) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateChat(ctx context.Context, chat models.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID uuid.UUID) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

type MemberRepositoryMock struct {
	mock.Mock
}

func (m *MemberRepositoryMock) GetMember(ctx context.Context, chatID, userID uuid.UUID) (models.Member, error) {
	args := m.Called(ctx, chatID, userID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) ListMembers(ctx context.Context, chatID uuid.UUID) ([]models.Member, error) {
	args := m.Called(ctx, chatID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) ListMembersIn(ctx context.Context, chatIDs []uuid.UUID) ([]models.Member, error) {
	args := m.Called(ctx, chatIDs)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) AddMembers(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID, role models.Role) ([]models.Member, error) {
	args := m.Called(ctx, chatID, userIDs, role)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) RemoveMembers(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, chatID, userIDs)
	var removed []uuid.UUID
	if val := args.Get(0); val != nil {
		removed = val.([]uuid.UUID)
	}
	return removed, args.Error(1)
}

func (m *MemberRepositoryMock) UpdateRole(ctx context.Context, chatID, userID uuid.UUID, role models.Role) (models.Member, error) {
	args := m.Called(ctx, chatID, userID, role)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID uuid.UUID) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]models.Message, int, error) {
	args := m.Called(ctx, chatID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Int(1), args.Error(2)
}

func (m *MessageRepositoryMock) UpdateMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type ContactRepositoryMock struct {
	mock.Mock
}

func (m *ContactRepositoryMock) AddContact(ctx context.Context, contact models.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *ContactRepositoryMock) ListContacts(ctx context.Context, ownerID uuid.UUID) ([]models.Contact, error) {
	args := m.Called(ctx, ownerID)
	var contacts []models.Contact
	if val := args.Get(0); val != nil {
		contacts = val.([]models.Contact)
	}
	return contacts, args.Error(1)
}

func (m *ContactRepositoryMock) UpdateContact(ctx context.Context, ownerID, contactUserID uuid.UUID, displayName string) error {
	args := m.Called(ctx, ownerID, contactUserID, displayName)
	return args.Error(0)
}

func (m *ContactRepositoryMock) DeleteContact(ctx context.Context, ownerID, contactUserID uuid.UUID) error {
	args := m.Called(ctx, ownerID, contactUserID)
	return args.Error(0)
}

type TokenRepositoryMock struct {
	mock.Mock
}

func (m *TokenRepositoryMock) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *TokenRepositoryMock) Revoke(ctx context.Context, tokenID string, expiration time.Duration) error {
	args := m.Called(ctx, tokenID, expiration)
	return args.Error(0)
}

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MemberRepository = (*MemberRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ContactRepository = (*ContactRepositoryMock)(nil)
var _ repositories.TokenRepository = (*TokenRepositoryMock)(nil)
