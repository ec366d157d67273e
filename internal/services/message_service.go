package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"chat-server/internal/apperr"
	"chat-server/internal/events"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type SendMessageRequest struct {
	ChatID      uuid.UUID `json:"chatId"`
	MessageType string    `json:"messageType"`
	Content     string    `json:"content"`
	MediaURL    *string   `json:"mediaUrl"`
}

type EditMessageRequest struct {
	MessageID  uuid.UUID `json:"messageId"`
	NewContent string    `json:"newContent"`
}

// MessageService handles the send, list, edit and delete lifecycle of messages.
type MessageService struct {
	chats      repositories.ChatRepository
	members    repositories.MemberRepository
	messages   repositories.MessageRepository
	events     events.Publisher
	locks      *ChatLocks
	processors map[models.MessageType]MessageProcessor
	logger     *slog.Logger
}

func NewMessageService(
	chats repositories.ChatRepository,
	members repositories.MemberRepository,
	messages repositories.MessageRepository,
	publisher events.Publisher,
	locks *ChatLocks,
	logger *slog.Logger,
) *MessageService {
	return &MessageService{
		chats:      chats,
		members:    members,
		messages:   messages,
		events:     publisher,
		locks:      locks,
		processors: DefaultProcessors(),
		logger:     logger,
	}
}

// SendMessage validates and stores a message, then broadcasts it on the chat topic.
func (s *MessageService) SendMessage(ctx context.Context, sender uuid.UUID, req SendMessageRequest) (view models.MessageView, err error) {
	ctx, span := tracer.Start(ctx, "MessageService.SendMessage")
	defer func() { finishSpan(span, err) }()

	if _, err = s.chats.GetChat(ctx, req.ChatID); err != nil {
		return models.MessageView{}, storageErr("get chat", err)
	}
	if _, err = requireMember(ctx, s.members, req.ChatID, sender); err != nil {
		return models.MessageView{}, err
	}

	msgType := models.MessageType(strings.ToUpper(strings.TrimSpace(req.MessageType)))
	processor, ok := s.processors[msgType]
	if !ok {
		return models.MessageView{}, apperr.Validation("unsupported message type %q", req.MessageType)
	}
	draft := models.Message{ID: uuid.New(), ChatID: req.ChatID, SenderID: sender, Type: msgType}
	if err = processor.Process(req, &draft); err != nil {
		return models.MessageView{}, err
	}

	unlock := s.locks.Lock(req.ChatID)
	defer unlock()

	saved, err := s.messages.CreateMessage(ctx, draft)
	if err != nil {
		return models.MessageView{}, storageErr("create message", err)
	}
	view = models.NewMessageView(saved)
	s.events.PublishToTopic(ctx, saved.ChatID, events.MessageCreated(view))
	s.logger.Debug("message sent", "chat_id", saved.ChatID, "message_id", saved.ID, "type", saved.Type)
	return view, nil
}

// ListMessages returns a page of messages, newest first. Deleted messages are redacted, not omitted.
func (s *MessageService) ListMessages(ctx context.Context, requester, chatID uuid.UUID, page, size int) (models.Page[models.MessageView], error) {
	if page < 0 {
		return models.Page[models.MessageView]{}, apperr.Validation("page must not be negative")
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page > math.MaxInt32/size {
		return models.Page[models.MessageView]{}, apperr.Validation("page %d is out of range", page)
	}
	if _, err := requireMember(ctx, s.members, chatID, requester); err != nil {
		return models.Page[models.MessageView]{}, err
	}

	msgs, total, err := s.messages.ListMessages(ctx, chatID, size, page*size)
	if err != nil {
		return models.Page[models.MessageView]{}, storageErr("list messages", err)
	}
	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.NewMessageView(m))
	}
	return models.NewPage(views, page, size, total), nil
}

// EditMessage replaces the content of the editor's own TEXT message.
func (s *MessageService) EditMessage(ctx context.Context, editor uuid.UUID, req EditMessageRequest) (view models.MessageView, err error) {
	ctx, span := tracer.Start(ctx, "MessageService.EditMessage")
	defer func() { finishSpan(span, err) }()

	msg, unlock, err := s.lockedMessage(ctx, req.MessageID)
	if err != nil {
		return models.MessageView{}, err
	}
	defer unlock()

	if msg.SenderID != editor {
		return models.MessageView{}, apperr.Unauthorized("only the sender can edit this message")
	}
	if msg.Type != models.MessageTypeText {
		return models.MessageView{}, apperr.Validation("only text messages can be edited")
	}
	if msg.IsDeleted {
		return models.MessageView{}, apperr.Validation("deleted messages cannot be edited")
	}
	if strings.TrimSpace(req.NewContent) == "" {
		return models.MessageView{}, apperr.Validation("message content cannot be empty")
	}

	msg.Content = req.NewContent
	msg.IsEdited = true
	if err = s.messages.UpdateMessage(ctx, msg); err != nil {
		return models.MessageView{}, storageErr("update message", err)
	}
	view = models.NewMessageView(msg)
	s.events.PublishToTopic(ctx, msg.ChatID, events.MessageUpdated(view))
	return view, nil
}

// DeleteMessage marks a message deleted. The sender or a chat ADMIN may delete; repeating is a no-op.
func (s *MessageService) DeleteMessage(ctx context.Context, actor, messageID uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "MessageService.DeleteMessage")
	defer func() { finishSpan(span, err) }()

	msg, unlock, err := s.lockedMessage(ctx, messageID)
	if err != nil {
		return err
	}
	defer unlock()

	if msg.SenderID != actor {
		member, memberErr := s.members.GetMember(ctx, msg.ChatID, actor)
		if memberErr != nil && !errors.Is(memberErr, repositories.ErrMemberNotFound) {
			return storageErr("get member", memberErr)
		}
		if memberErr != nil || !member.IsAdmin() {
			return apperr.Unauthorized("only the sender or a chat admin can delete this message")
		}
	}
	if msg.IsDeleted {
		return nil
	}

	msg.IsDeleted = true
	if err = s.messages.UpdateMessage(ctx, msg); err != nil {
		return storageErr("update message", err)
	}
	s.events.PublishToTopic(ctx, msg.ChatID, events.MessageDeleted(models.NewMessageView(msg)))
	s.logger.Info("message deleted", "chat_id", msg.ChatID, "message_id", msg.ID, "actor", actor)
	return nil
}

// lockedMessage loads a message, takes its chat lock and reloads it so the caller sees the
// state no concurrent writer can change until unlock.
func (s *MessageService) lockedMessage(ctx context.Context, messageID uuid.UUID) (models.Message, func(), error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, nil, storageErr("get message", err)
	}
	unlock := s.locks.Lock(msg.ChatID)
	msg, err = s.messages.GetMessage(ctx, messageID)
	if err != nil {
		unlock()
		return models.Message{}, nil, storageErr("get message", err)
	}
	return msg, unlock, nil
}
