package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"chat-server/internal/apperr"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

type AddContactRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	DisplayName string `json:"displayName"`
}

type UpdateContactRequest struct {
	TargetUserID   uuid.UUID `json:"targetUserId"`
	NewDisplayName string    `json:"newDisplayName"`
}

// ContactService manages the caller's address book. Contacts only affect display names.
type ContactService struct {
	users    repositories.UserRepository
	contacts repositories.ContactRepository
	logger   *slog.Logger
}

func NewContactService(users repositories.UserRepository, contacts repositories.ContactRepository, logger *slog.Logger) *ContactService {
	return &ContactService{users: users, contacts: contacts, logger: logger}
}

func (s *ContactService) ListContacts(ctx context.Context, owner uuid.UUID) ([]models.ContactView, error) {
	contacts, err := s.contacts.ListContacts(ctx, owner)
	if err != nil {
		return nil, storageErr("list contacts", err)
	}
	views := make([]models.ContactView, 0, len(contacts))
	for _, c := range contacts {
		views = append(views, models.NewContactView(c))
	}
	return views, nil
}

// AddContact saves the user registered under the phone number. The display name defaults to their username.
func (s *ContactService) AddContact(ctx context.Context, owner uuid.UUID, req AddContactRequest) (models.ContactView, error) {
	user, err := s.users.GetUserByPhone(ctx, strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		return models.ContactView{}, storageErr("get user by phone", err)
	}
	if user.ID == owner {
		return models.ContactView{}, apperr.Validation("cannot add yourself as a contact")
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = user.Username
	}
	contact := models.Contact{OwnerID: owner, ContactUserID: user.ID, DisplayName: name, Username: user.Username, PhoneNumber: user.PhoneNumber}
	err = s.contacts.AddContact(ctx, contact)
	if errors.Is(err, repositories.ErrDuplicate) {
		return models.ContactView{}, apperr.Validation("contact already exists")
	}
	if err != nil {
		return models.ContactView{}, storageErr("add contact", err)
	}
	s.logger.Debug("contact added", "owner", owner, "contact", user.ID)
	return models.NewContactView(contact), nil
}

func (s *ContactService) UpdateContact(ctx context.Context, owner uuid.UUID, req UpdateContactRequest) error {
	name := strings.TrimSpace(req.NewDisplayName)
	if name == "" {
		return apperr.Validation("display name cannot be empty")
	}
	if err := s.contacts.UpdateContact(ctx, owner, req.TargetUserID, name); err != nil {
		return storageErr("update contact", err)
	}
	return nil
}

func (s *ContactService) DeleteContact(ctx context.Context, owner, contactUserID uuid.UUID) error {
	if err := s.contacts.DeleteContact(ctx, owner, contactUserID); err != nil {
		return storageErr("delete contact", err)
	}
	return nil
}

func (s *ContactService) FindByPhone(ctx context.Context, phone string) (models.UserView, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return models.UserView{}, apperr.Validation("phone number is required")
	}
	user, err := s.users.GetUserByPhone(ctx, phone)
	if err != nil {
		return models.UserView{}, storageErr("get user by phone", err)
	}
	return models.NewUserView(user), nil
}
