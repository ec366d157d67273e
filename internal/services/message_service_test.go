package services

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-server/internal/apperr"
	"chat-server/internal/events"
	"chat-server/internal/mocks"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

type messageFixture struct {
	chats    *mocks.ChatRepositoryMock
	members  *mocks.MemberRepositoryMock
	messages *mocks.MessageRepositoryMock
	events   *mocks.EventRecorder
	svc      *MessageService
}

func newMessageFixture() *messageFixture {
	f := &messageFixture{
		chats:    new(mocks.ChatRepositoryMock),
		members:  new(mocks.MemberRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		events:   new(mocks.EventRecorder),
	}
	f.svc = NewMessageService(f.chats, f.members, f.messages, f.events, NewChatLocks(), discardLogger())
	return f
}

func (f *messageFixture) memberOf(chatID, userID uuid.UUID, role models.Role) {
	f.members.On("GetMember", mock.Anything, chatID, userID).Return(models.Member{ChatID: chatID, UserID: userID, Role: role}, nil)
}

func TestSendTextMessageBroadcasts(t *testing.T) {
	f := newMessageFixture()
	chatID, sender := uuid.New(), uuid.New()
	f.chats.On("GetChat", mock.Anything, chatID).Return(groupChat(chatID, "Team"), nil).Once()
	f.memberOf(chatID, sender, models.RoleMember)
	saved := models.Message{ID: uuid.New(), ChatID: chatID, SenderID: sender, SenderUsername: "alice", Type: models.MessageTypeText, Content: "hi", SentAt: time.Now()}
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.ChatID == chatID && m.SenderID == sender && m.Type == models.MessageTypeText && m.Content == "hi"
	})).Return(saved, nil).Once()

	view, err := f.svc.SendMessage(context.Background(), sender, SendMessageRequest{ChatID: chatID, MessageType: "text", Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", view.Content)
	assert.Equal(t, "alice", view.Sender.Username)
	assert.False(t, view.IsEdited)
	assert.False(t, view.IsDeleted)

	topic := f.events.TopicEvents(chatID)
	require.Len(t, topic, 1)
	assert.Equal(t, events.TypeMessage, topic[0].Type)
	assert.Equal(t, saved.ID, *topic[0].MessageID)
	assert.Equal(t, saved.ID, view.MessageID)
	f.messages.AssertExpectations(t)
}

func TestSendMessageValidation(t *testing.T) {
	chatID, sender := uuid.New(), uuid.New()
	cases := []struct {
		name string
		req  SendMessageRequest
	}{
		{"blank text", SendMessageRequest{ChatID: chatID, MessageType: "TEXT", Content: "   "}},
		{"image without url", SendMessageRequest{ChatID: chatID, MessageType: "IMAGE", Content: "caption"}},
		{"voice with blank url", SendMessageRequest{ChatID: chatID, MessageType: "VOICE", MediaURL: strPtr(" ")}},
		{"unknown type", SendMessageRequest{ChatID: chatID, MessageType: "STICKER", Content: "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newMessageFixture()
			f.chats.On("GetChat", mock.Anything, chatID).Return(groupChat(chatID, "Team"), nil).Once()
			f.memberOf(chatID, sender, models.RoleMember)

			_, err := f.svc.SendMessage(context.Background(), sender, tc.req)
			requireKind(t, err, apperr.KindValidation)
			f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
			assert.Empty(t, f.events.Deliveries())
		})
	}
}

func TestSendMediaMessageKeepsCaption(t *testing.T) {
	f := newMessageFixture()
	chatID, sender := uuid.New(), uuid.New()
	f.chats.On("GetChat", mock.Anything, chatID).Return(groupChat(chatID, "Team"), nil).Once()
	f.memberOf(chatID, sender, models.RoleMember)
	var stored models.Message
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.Type == models.MessageTypeVideo && m.MediaURL != nil && *m.MediaURL == "http://cdn/v.mp4" && m.Content == "look"
	})).Run(func(args mock.Arguments) {
		stored = args.Get(1).(models.Message)
	}).Return(models.Message{ID: uuid.New(), ChatID: chatID, SenderID: sender, Type: models.MessageTypeVideo, Content: "look", MediaURL: strPtr("http://cdn/v.mp4")}, nil).Once()

	view, err := f.svc.SendMessage(context.Background(), sender, SendMessageRequest{
		ChatID: chatID, MessageType: "Video", Content: " look ", MediaURL: strPtr("http://cdn/v.mp4"),
	})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/v.mp4", *view.MediaURL)
	assert.Equal(t, "look", stored.Content)
}

func TestSendMessageRequiresChatAndMembership(t *testing.T) {
	chatID, sender := uuid.New(), uuid.New()

	t.Run("missing chat", func(t *testing.T) {
		f := newMessageFixture()
		f.chats.On("GetChat", mock.Anything, chatID).Return(nil, repositories.ErrChatNotFound).Once()
		_, err := f.svc.SendMessage(context.Background(), sender, SendMessageRequest{ChatID: chatID, MessageType: "TEXT", Content: "hi"})
		requireKind(t, err, apperr.KindNotFound)
	})

	t.Run("not a member", func(t *testing.T) {
		f := newMessageFixture()
		f.chats.On("GetChat", mock.Anything, chatID).Return(groupChat(chatID, "Team"), nil).Once()
		f.members.On("GetMember", mock.Anything, chatID, sender).Return(nil, repositories.ErrMemberNotFound).Once()
		_, err := f.svc.SendMessage(context.Background(), sender, SendMessageRequest{ChatID: chatID, MessageType: "TEXT", Content: "hi"})
		requireKind(t, err, apperr.KindForbidden)
	})
}

func TestSendMessageStorageFailureIsTransient(t *testing.T) {
	f := newMessageFixture()
	chatID, sender := uuid.New(), uuid.New()
	f.chats.On("GetChat", mock.Anything, chatID).Return(groupChat(chatID, "Team"), nil).Once()
	f.memberOf(chatID, sender, models.RoleMember)
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	_, err := f.svc.SendMessage(context.Background(), sender, SendMessageRequest{ChatID: chatID, MessageType: "TEXT", Content: "hi"})
	requireKind(t, err, apperr.KindTransientStorage)
	assert.Empty(t, f.events.Deliveries())
}

func TestListMessagesNewestFirstAndRedacted(t *testing.T) {
	f := newMessageFixture()
	chatID, reader := uuid.New(), uuid.New()
	now := time.Now()
	newest := models.Message{ID: uuid.New(), ChatID: chatID, Type: models.MessageTypeText, Content: "hi", SentAt: now}
	deleted := models.Message{ID: uuid.New(), ChatID: chatID, Type: models.MessageTypeImage, Content: "secret", MediaURL: strPtr("http://x"), SentAt: now.Add(-time.Minute), IsDeleted: true}

	f.memberOf(chatID, reader, models.RoleMember)
	f.messages.On("ListMessages", mock.Anything, chatID, DefaultPageSize, 0).Return([]models.Message{newest, deleted}, 2, nil).Once()

	page, err := f.svc.ListMessages(context.Background(), reader, chatID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "hi", page.Content[0].Content)
	assert.False(t, page.Content[0].IsEdited)
	assert.False(t, page.Content[0].IsDeleted)
	assert.Equal(t, models.DeletedPlaceholder, page.Content[1].Content)
	assert.Nil(t, page.Content[1].MediaURL)
	assert.Equal(t, 2, page.TotalElements)
	assert.Equal(t, 1, page.TotalPages)
	assert.False(t, page.HasMore)
}

func TestListMessagesPaging(t *testing.T) {
	f := newMessageFixture()
	chatID, reader := uuid.New(), uuid.New()
	f.memberOf(chatID, reader, models.RoleMember)
	f.messages.On("ListMessages", mock.Anything, chatID, MaxPageSize, 2*MaxPageSize).Return([]models.Message{}, 450, nil).Once()

	page, err := f.svc.ListMessages(context.Background(), reader, chatID, 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.Size)
	assert.Equal(t, 5, page.TotalPages)
	assert.True(t, page.HasMore)
	assert.NotNil(t, page.Content)

	_, err = f.svc.ListMessages(context.Background(), reader, chatID, -1, 10)
	requireKind(t, err, apperr.KindValidation)
}

func TestListMessagesRejectsPageBeyondOffsetRange(t *testing.T) {
	f := newMessageFixture()
	chatID, reader := uuid.New(), uuid.New()

	_, err := f.svc.ListMessages(context.Background(), reader, chatID, math.MaxInt, 20)
	requireKind(t, err, apperr.KindValidation)
	f.messages.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesForbiddenForNonMember(t *testing.T) {
	f := newMessageFixture()
	chatID, outsider := uuid.New(), uuid.New()
	f.members.On("GetMember", mock.Anything, chatID, outsider).Return(nil, repositories.ErrMemberNotFound).Once()

	_, err := f.svc.ListMessages(context.Background(), outsider, chatID, 0, 20)
	requireKind(t, err, apperr.KindForbidden)
}

func TestEditMessageRejectsNonText(t *testing.T) {
	for _, typ := range []models.MessageType{models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeVoice} {
		t.Run(string(typ), func(t *testing.T) {
			f := newMessageFixture()
			sender := uuid.New()
			msg := models.Message{ID: uuid.New(), ChatID: uuid.New(), SenderID: sender, Type: typ, MediaURL: strPtr("http://m")}
			f.messages.On("GetMessage", mock.Anything, msg.ID).Return(msg, nil)

			_, err := f.svc.EditMessage(context.Background(), sender, EditMessageRequest{MessageID: msg.ID, NewContent: "new"})
			requireKind(t, err, apperr.KindValidation)
			f.messages.AssertNotCalled(t, "UpdateMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestEditMessageRules(t *testing.T) {
	sender := uuid.New()
	text := models.Message{ID: uuid.New(), ChatID: uuid.New(), SenderID: sender, Type: models.MessageTypeText, Content: "old"}

	t.Run("other user", func(t *testing.T) {
		f := newMessageFixture()
		f.messages.On("GetMessage", mock.Anything, text.ID).Return(text, nil)
		_, err := f.svc.EditMessage(context.Background(), uuid.New(), EditMessageRequest{MessageID: text.ID, NewContent: "new"})
		requireKind(t, err, apperr.KindUnauthorized)
	})

	t.Run("blank content", func(t *testing.T) {
		f := newMessageFixture()
		f.messages.On("GetMessage", mock.Anything, text.ID).Return(text, nil)
		_, err := f.svc.EditMessage(context.Background(), sender, EditMessageRequest{MessageID: text.ID, NewContent: "  "})
		requireKind(t, err, apperr.KindValidation)
	})

	t.Run("missing message", func(t *testing.T) {
		f := newMessageFixture()
		f.messages.On("GetMessage", mock.Anything, text.ID).Return(nil, repositories.ErrMessageNotFound).Once()
		_, err := f.svc.EditMessage(context.Background(), sender, EditMessageRequest{MessageID: text.ID, NewContent: "new"})
		requireKind(t, err, apperr.KindNotFound)
	})

	t.Run("success", func(t *testing.T) {
		f := newMessageFixture()
		f.messages.On("GetMessage", mock.Anything, text.ID).Return(text, nil)
		f.messages.On("UpdateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
			return m.Content == "new" && m.IsEdited
		})).Return(nil).Once()

		view, err := f.svc.EditMessage(context.Background(), sender, EditMessageRequest{MessageID: text.ID, NewContent: "new"})
		require.NoError(t, err)
		assert.True(t, view.IsEdited)

		topic := f.events.TopicEvents(text.ChatID)
		require.Len(t, topic, 1)
		assert.Equal(t, events.TypeMessageUpdated, topic[0].Type)
		f.messages.AssertExpectations(t)
	})
}

func TestDeleteMessageIsIdempotent(t *testing.T) {
	f := newMessageFixture()
	sender := uuid.New()
	msg := models.Message{ID: uuid.New(), ChatID: uuid.New(), SenderID: sender, Type: models.MessageTypeText, Content: "hi"}
	deleted := msg
	deleted.IsDeleted = true

	f.messages.On("GetMessage", mock.Anything, msg.ID).Return(msg, nil).Twice()
	f.messages.On("UpdateMessage", mock.Anything, deleted).Return(nil).Once()
	f.messages.On("GetMessage", mock.Anything, msg.ID).Return(deleted, nil).Twice()

	require.NoError(t, f.svc.DeleteMessage(context.Background(), sender, msg.ID))
	require.NoError(t, f.svc.DeleteMessage(context.Background(), sender, msg.ID))

	topic := f.events.TopicEvents(msg.ChatID)
	require.Len(t, topic, 1)
	assert.Equal(t, events.TypeMessageDeleted, topic[0].Type)
	assert.Equal(t, models.DeletedPlaceholder, topic[0].Message.Content)
	f.messages.AssertExpectations(t)
}

func TestDeleteMessagePermissions(t *testing.T) {
	chatID, sender, admin, member := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	msg := models.Message{ID: uuid.New(), ChatID: chatID, SenderID: sender, Type: models.MessageTypeText, Content: "hi"}

	t.Run("admin may delete", func(t *testing.T) {
		f := newMessageFixture()
		f.messages.On("GetMessage", mock.Anything, msg.ID).Return(msg, nil)
		f.memberOf(chatID, admin, models.RoleAdmin)
		f.messages.On("UpdateMessage", mock.Anything, mock.Anything).Return(nil).Once()

		require.NoError(t, f.svc.DeleteMessage(context.Background(), admin, msg.ID))
	})

	t.Run("plain member may not", func(t *testing.T) {
		f := newMessageFixture()
		f.messages.On("GetMessage", mock.Anything, msg.ID).Return(msg, nil)
		f.memberOf(chatID, member, models.RoleMember)

		err := f.svc.DeleteMessage(context.Background(), member, msg.ID)
		requireKind(t, err, apperr.KindUnauthorized)
	})

	t.Run("outsider may not", func(t *testing.T) {
		f := newMessageFixture()
		outsider := uuid.New()
		f.messages.On("GetMessage", mock.Anything, msg.ID).Return(msg, nil)
		f.members.On("GetMember", mock.Anything, chatID, outsider).Return(nil, repositories.ErrMemberNotFound)

		err := f.svc.DeleteMessage(context.Background(), outsider, msg.ID)
		requireKind(t, err, apperr.KindUnauthorized)
	})
}
