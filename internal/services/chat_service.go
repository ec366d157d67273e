package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"chat-server/internal/apperr"
	"chat-server/internal/events"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

type CreateChatRequest struct {
	ChatType   string      `json:"chatType"`
	GroupName  *string     `json:"groupName"`
	GroupImage *string     `json:"groupImage"`
	MemberIDs  []uuid.UUID `json:"membersId"`
}

type UpdateRoleRequest struct {
	ChatID       uuid.UUID `json:"chatId"`
	TargetUserID uuid.UUID `json:"targetUserId"`
	NewRole      string    `json:"newRole"`
}

type UpdateGroupRequest struct {
	ChatID           uuid.UUID `json:"chatId"`
	NewGroupName     *string   `json:"newGroupName"`
	NewGroupImageURL *string   `json:"newGroupImageUrl"`
}

// ChatService owns chat creation, membership and role rules.
type ChatService struct {
	users    repositories.UserRepository
	chats    repositories.ChatRepository
	members  repositories.MemberRepository
	contacts repositories.ContactRepository
	events   events.Publisher
	locks    *ChatLocks
	logger   *slog.Logger
}

func NewChatService(
	users repositories.UserRepository,
	chats repositories.ChatRepository,
	members repositories.MemberRepository,
	contacts repositories.ContactRepository,
	publisher events.Publisher,
	locks *ChatLocks,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		users:    users,
		chats:    chats,
		members:  members,
		contacts: contacts,
		events:   publisher,
		locks:    locks,
		logger:   logger,
	}
}

// CreateChat persists a chat with the requester as ADMIN and notifies every member personally.
func (s *ChatService) CreateChat(ctx context.Context, requester uuid.UUID, req CreateChatRequest) (view models.ChatView, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.CreateChat")
	defer func() { finishSpan(span, err) }()

	chatType := models.ChatType(req.ChatType)
	if chatType != models.ChatTypeP2P && chatType != models.ChatTypeGroup {
		return models.ChatView{}, apperr.Validation("invalid chat type %q", req.ChatType)
	}

	ids := uniqueIDs(append([]uuid.UUID{requester}, req.MemberIDs...))
	users, err := s.resolveUsers(ctx, ids)
	if err != nil {
		return models.ChatView{}, err
	}

	chat := models.Chat{ID: uuid.New(), Type: chatType}
	switch chatType {
	case models.ChatTypeP2P:
		if len(ids) != 2 {
			return models.ChatView{}, apperr.Validation("P2P chat must have exactly 2 users")
		}
	case models.ChatTypeGroup:
		if req.GroupName == nil || strings.TrimSpace(*req.GroupName) == "" {
			return models.ChatView{}, apperr.Validation("group name is required")
		}
		if len(ids) < 3 {
			return models.ChatView{}, apperr.Validation("group chat must have at least 3 users")
		}
		name := strings.TrimSpace(*req.GroupName)
		chat.GroupName = &name
		chat.GroupImage = req.GroupImage
	}

	members := make([]models.Member, 0, len(ids))
	for _, id := range ids {
		role := models.RoleMember
		if id == requester {
			role = models.RoleAdmin
		}
		members = append(members, models.Member{ChatID: chat.ID, UserID: id, Username: users[id].Username, Role: role})
	}

	created, err := s.chats.CreateChatWithMembers(ctx, chat, members)
	if err != nil {
		return models.ChatView{}, storageErr("create chat", err)
	}
	for i := range members {
		members[i].ChatID = created.ID
	}

	view = models.NewChatView(created, members)
	for _, id := range ids {
		s.events.PublishToUser(ctx, id, events.ChatCreated(view))
	}
	s.logger.Info("chat created", "chat_id", created.ID, "type", created.Type, "members", len(members), "requester", requester)
	return view, nil
}

// ListChats returns the caller's chats; P2P chats are named after the peer.
func (s *ChatService) ListChats(ctx context.Context, userID uuid.UUID) ([]models.ChatView, error) {
	chats, err := s.chats.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, storageErr("list chats", err)
	}
	if len(chats) == 0 {
		return []models.ChatView{}, nil
	}

	chatIDs := make([]uuid.UUID, 0, len(chats))
	for _, c := range chats {
		chatIDs = append(chatIDs, c.ID)
	}
	members, err := s.members.ListMembersIn(ctx, chatIDs)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	byChat := make(map[uuid.UUID][]models.Member, len(chats))
	for _, m := range members {
		byChat[m.ChatID] = append(byChat[m.ChatID], m)
	}

	contacts, err := s.contacts.ListContacts(ctx, userID)
	if err != nil {
		return nil, storageErr("list contacts", err)
	}
	names := make(map[uuid.UUID]string, len(contacts))
	for _, c := range contacts {
		names[c.ContactUserID] = c.DisplayName
	}

	views := make([]models.ChatView, 0, len(chats))
	for _, c := range chats {
		view := models.NewChatView(c, byChat[c.ID])
		if c.Type == models.ChatTypeP2P {
			for _, m := range byChat[c.ID] {
				if m.UserID == userID {
					continue
				}
				view.DisplayName = m.Username
				if name, ok := names[m.UserID]; ok && name != "" {
					view.DisplayName = name
				}
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// ListMembers returns the members of a chat the requester belongs to.
func (s *ChatService) ListMembers(ctx context.Context, requester, chatID uuid.UUID) ([]models.MemberView, error) {
	if _, err := s.chats.GetChat(ctx, chatID); err != nil {
		return nil, storageErr("get chat", err)
	}
	if _, err := requireMember(ctx, s.members, chatID, requester); err != nil {
		return nil, err
	}
	members, err := s.members.ListMembers(ctx, chatID)
	if err != nil {
		return nil, storageErr("list members", err)
	}
	views := make([]models.MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, models.NewMemberView(m))
	}
	return views, nil
}

// IsMember reports whether userID currently belongs to chatID.
func (s *ChatService) IsMember(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	_, err := s.members.GetMember(ctx, chatID, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get member", err)
	}
	return true, nil
}

// JoinIfMember runs join under the chat's lock when userID is a current member, so a
// concurrent removal or send is ordered entirely before or after it.
func (s *ChatService) JoinIfMember(ctx context.Context, chatID, userID uuid.UUID, join func()) (bool, error) {
	unlock := s.locks.Lock(chatID)
	defer unlock()

	member, err := s.IsMember(ctx, chatID, userID)
	if err != nil || !member {
		return false, err
	}
	join()
	return true, nil
}

// AuthorizeAdmin fails with FORBIDDEN unless userID holds ADMIN in chatID.
func (s *ChatService) AuthorizeAdmin(ctx context.Context, chatID, userID uuid.UUID) (models.Member, error) {
	member, err := requireMember(ctx, s.members, chatID, userID)
	if err != nil {
		return models.Member{}, err
	}
	if !member.IsAdmin() {
		return models.Member{}, apperr.Forbidden("user does not have administrative privileges for this chat")
	}
	return member, nil
}

// AddMembers adds users as MEMBER, skipping those already present.
func (s *ChatService) AddMembers(ctx context.Context, admin, chatID uuid.UUID, userIDs []uuid.UUID) (view models.ChatView, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.AddMembers")
	defer func() { finishSpan(span, err) }()

	unlock := s.locks.Lock(chatID)
	defer unlock()

	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.ChatView{}, storageErr("get chat", err)
	}
	if _, err = s.AuthorizeAdmin(ctx, chatID, admin); err != nil {
		return models.ChatView{}, err
	}
	if chat.Type == models.ChatTypeP2P {
		return models.ChatView{}, apperr.Validation("members cannot be added to a P2P chat")
	}

	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return models.ChatView{}, apperr.Validation("no users to add")
	}
	if _, err = s.resolveUsers(ctx, ids); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Kind == apperr.KindNotFound {
			return models.ChatView{}, &apperr.Error{Kind: apperr.KindValidation, Message: "one or more user ids to add are invalid", Missing: appErr.Missing}
		}
		return models.ChatView{}, err
	}

	added, err := s.members.AddMembers(ctx, chatID, ids, models.RoleMember)
	if err != nil {
		return models.ChatView{}, storageErr("add members", err)
	}
	members, err := s.members.ListMembers(ctx, chatID)
	if err != nil {
		return models.ChatView{}, storageErr("list members", err)
	}
	view = models.NewChatView(chat, members)

	if len(added) > 0 {
		addedViews := make([]models.MemberView, 0, len(added))
		for _, m := range added {
			addedViews = append(addedViews, models.NewMemberView(m))
		}
		s.events.PublishToTopic(ctx, chatID, events.MembersAdded(chatID, addedViews))
		// new members are not subscribed to the topic yet
		for _, m := range added {
			s.events.PublishToUser(ctx, m.UserID, events.ChatCreated(view))
		}
	}
	s.logger.Info("members added", "chat_id", chatID, "admin", admin, "added", len(added), "requested", len(ids))
	return view, nil
}

// RemoveMembers removes users from a chat. Anyone may remove themself unless they are ADMIN;
// removing others requires ADMIN.
func (s *ChatService) RemoveMembers(ctx context.Context, actor, chatID uuid.UUID, userIDs []uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "ChatService.RemoveMembers")
	defer func() { finishSpan(span, err) }()

	unlock := s.locks.Lock(chatID)
	defer unlock()

	if _, err = s.chats.GetChat(ctx, chatID); err != nil {
		return storageErr("get chat", err)
	}
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return apperr.Validation("no users to remove")
	}

	current, err := s.members.ListMembers(ctx, chatID)
	if err != nil {
		return storageErr("list members", err)
	}
	byUser := make(map[uuid.UUID]models.Member, len(current))
	for _, m := range current {
		byUser[m.UserID] = m
	}

	targets := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := byUser[id]; ok {
			targets = append(targets, id)
		}
	}
	if len(targets) == 0 {
		return apperr.NotFound("no matching members found to remove from the chat")
	}

	actorMember, actorIsMember := byUser[actor]
	actorIsAdmin := actorIsMember && actorMember.IsAdmin()
	for _, id := range targets {
		if id == actor && actorIsAdmin {
			return apperr.Forbidden("chat admin cannot remove themselves")
		}
		if id != actor && !actorIsAdmin {
			return apperr.Forbidden("user does not have permission to remove one of the specified members")
		}
	}

	removed, err := s.members.RemoveMembers(ctx, chatID, targets)
	if err != nil {
		return storageErr("remove members", err)
	}
	if len(removed) == 0 {
		return apperr.NotFound("no matching members found to remove from the chat")
	}

	s.events.PublishToTopic(ctx, chatID, events.MembersRemoved(chatID, removed))
	for _, id := range removed {
		s.events.PublishToUser(ctx, id, events.ChatRemoved(chatID))
	}
	s.logger.Info("members removed", "chat_id", chatID, "actor", actor, "removed", len(removed))
	return nil
}

// UpdateMemberRole changes a member's role. An existing ADMIN can only change their own role.
func (s *ChatService) UpdateMemberRole(ctx context.Context, admin uuid.UUID, req UpdateRoleRequest) (view models.MemberView, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.UpdateMemberRole")
	defer func() { finishSpan(span, err) }()

	unlock := s.locks.Lock(req.ChatID)
	defer unlock()

	if _, err = s.chats.GetChat(ctx, req.ChatID); err != nil {
		return models.MemberView{}, storageErr("get chat", err)
	}
	if _, err = s.AuthorizeAdmin(ctx, req.ChatID, admin); err != nil {
		return models.MemberView{}, err
	}

	target, err := s.members.GetMember(ctx, req.ChatID, req.TargetUserID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return models.MemberView{}, apperr.Forbidden("target user is not a member of this chat")
	}
	if err != nil {
		return models.MemberView{}, storageErr("get member", err)
	}
	if target.IsAdmin() && target.UserID != admin {
		return models.MemberView{}, apperr.Forbidden("cannot modify the role of an existing chat admin")
	}

	role := models.Role(strings.ToUpper(strings.TrimSpace(req.NewRole)))
	if role != models.RoleAdmin && role != models.RoleMember {
		return models.MemberView{}, apperr.Validation("invalid role %q, must be ADMIN or MEMBER", req.NewRole)
	}

	updated, err := s.members.UpdateRole(ctx, req.ChatID, req.TargetUserID, role)
	if err != nil {
		return models.MemberView{}, storageErr("update role", err)
	}
	view = models.NewMemberView(updated)
	s.events.PublishToTopic(ctx, req.ChatID, events.RoleUpdated(req.ChatID, view))
	s.logger.Info("member role updated", "chat_id", req.ChatID, "target", req.TargetUserID, "role", role)
	return view, nil
}

// UpdateGroupProperties renames a group and/or replaces its image. A blank name is ignored.
func (s *ChatService) UpdateGroupProperties(ctx context.Context, admin uuid.UUID, req UpdateGroupRequest) (view models.ChatView, err error) {
	ctx, span := tracer.Start(ctx, "ChatService.UpdateGroupProperties")
	defer func() { finishSpan(span, err) }()

	unlock := s.locks.Lock(req.ChatID)
	defer unlock()

	chat, err := s.chats.GetChat(ctx, req.ChatID)
	if err != nil {
		return models.ChatView{}, storageErr("get chat", err)
	}
	if _, err = s.AuthorizeAdmin(ctx, req.ChatID, admin); err != nil {
		return models.ChatView{}, err
	}
	if chat.Type != models.ChatTypeGroup {
		return models.ChatView{}, apperr.Validation("only group chats have a name and image")
	}

	if req.NewGroupName != nil {
		if name := strings.TrimSpace(*req.NewGroupName); name != "" {
			chat.GroupName = &name
		}
	}
	if req.NewGroupImageURL != nil {
		image := *req.NewGroupImageURL
		chat.GroupImage = &image
	}

	if err = s.chats.UpdateChat(ctx, chat); err != nil {
		return models.ChatView{}, storageErr("update chat", err)
	}
	members, err := s.members.ListMembers(ctx, req.ChatID)
	if err != nil {
		return models.ChatView{}, storageErr("list members", err)
	}
	view = models.NewChatView(chat, members)
	s.events.PublishToTopic(ctx, req.ChatID, events.GroupUpdated(view))
	return view, nil
}

// requireMember fails with FORBIDDEN when userID is not in chatID.
func requireMember(ctx context.Context, members repositories.MemberRepository, chatID, userID uuid.UUID) (models.Member, error) {
	member, err := members.GetMember(ctx, chatID, userID)
	if errors.Is(err, repositories.ErrMemberNotFound) {
		return models.Member{}, apperr.Forbidden("user is not a member of this chat")
	}
	if err != nil {
		return models.Member{}, storageErr("get member", err)
	}
	return member, nil
}

// resolveUsers loads ids and fails with NOT_FOUND listing the ones that do not exist.
func (s *ChatService) resolveUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	users, err := s.users.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, storageErr("find users", err)
	}
	byID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	var missing []uuid.UUID
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.NotFoundIDs("some users were not found", missing)
	}
	return byID, nil
}
