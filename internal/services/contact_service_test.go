package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-server/internal/apperr"
	"chat-server/internal/mocks"
	"chat-server/internal/models"
	"chat-server/internal/repositories"
)

func newContactFixture() (*ContactService, *mocks.UserRepositoryMock, *mocks.ContactRepositoryMock) {
	users := new(mocks.UserRepositoryMock)
	contacts := new(mocks.ContactRepositoryMock)
	return NewContactService(users, contacts, discardLogger()), users, contacts
}

func TestAddContactDefaultsDisplayName(t *testing.T) {
	svc, users, contacts := newContactFixture()
	owner := uuid.New()
	bob := models.User{ID: uuid.New(), Username: "bob", PhoneNumber: "+200"}
	users.On("GetUserByPhone", mock.Anything, "+200").Return(bob, nil).Once()
	contacts.On("AddContact", mock.Anything, mock.MatchedBy(func(c models.Contact) bool {
		return c.OwnerID == owner && c.ContactUserID == bob.ID && c.DisplayName == "bob"
	})).Return(nil).Once()

	view, err := svc.AddContact(context.Background(), owner, AddContactRequest{PhoneNumber: " +200 "})
	require.NoError(t, err)
	assert.Equal(t, "bob", view.DisplayName)
	assert.Equal(t, bob.ID, view.UserID)
	contacts.AssertExpectations(t)
}

func TestAddContactRules(t *testing.T) {
	owner := uuid.New()

	t.Run("self", func(t *testing.T) {
		svc, users, _ := newContactFixture()
		users.On("GetUserByPhone", mock.Anything, "+1").Return(models.User{ID: owner}, nil).Once()
		_, err := svc.AddContact(context.Background(), owner, AddContactRequest{PhoneNumber: "+1"})
		requireKind(t, err, apperr.KindValidation)
	})

	t.Run("unknown phone", func(t *testing.T) {
		svc, users, _ := newContactFixture()
		users.On("GetUserByPhone", mock.Anything, "+9").Return(nil, repositories.ErrUserNotFound).Once()
		_, err := svc.AddContact(context.Background(), owner, AddContactRequest{PhoneNumber: "+9"})
		requireKind(t, err, apperr.KindNotFound)
	})

	t.Run("duplicate", func(t *testing.T) {
		svc, users, contacts := newContactFixture()
		users.On("GetUserByPhone", mock.Anything, "+2").Return(models.User{ID: uuid.New(), Username: "carol"}, nil).Once()
		contacts.On("AddContact", mock.Anything, mock.Anything).Return(repositories.ErrDuplicate).Once()
		_, err := svc.AddContact(context.Background(), owner, AddContactRequest{PhoneNumber: "+2", DisplayName: "C"})
		requireKind(t, err, apperr.KindValidation)
	})
}

func TestUpdateContact(t *testing.T) {
	owner, target := uuid.New(), uuid.New()

	svc, _, contacts := newContactFixture()
	err := svc.UpdateContact(context.Background(), owner, UpdateContactRequest{TargetUserID: target, NewDisplayName: " "})
	requireKind(t, err, apperr.KindValidation)

	contacts.On("UpdateContact", mock.Anything, owner, target, "Bobby").Return(nil).Once()
	require.NoError(t, svc.UpdateContact(context.Background(), owner, UpdateContactRequest{TargetUserID: target, NewDisplayName: " Bobby "}))

	contacts.On("UpdateContact", mock.Anything, owner, target, "Rob").Return(repositories.ErrContactNotFound).Once()
	err = svc.UpdateContact(context.Background(), owner, UpdateContactRequest{TargetUserID: target, NewDisplayName: "Rob"})
	requireKind(t, err, apperr.KindNotFound)
}

func TestDeleteContact(t *testing.T) {
	svc, _, contacts := newContactFixture()
	owner, target := uuid.New(), uuid.New()
	contacts.On("DeleteContact", mock.Anything, owner, target).Return(repositories.ErrContactNotFound).Once()

	err := svc.DeleteContact(context.Background(), owner, target)
	requireKind(t, err, apperr.KindNotFound)
}

func TestListContactsEmpty(t *testing.T) {
	svc, _, contacts := newContactFixture()
	owner := uuid.New()
	contacts.On("ListContacts", mock.Anything, owner).Return(nil, nil).Once()

	views, err := svc.ListContacts(context.Background(), owner)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestFindByPhone(t *testing.T) {
	svc, users, _ := newContactFixture()
	_, err := svc.FindByPhone(context.Background(), "")
	requireKind(t, err, apperr.KindValidation)

	user := models.User{ID: uuid.New(), Username: "dave", PhoneNumber: "+4"}
	users.On("GetUserByPhone", mock.Anything, "+4").Return(user, nil).Once()
	view, err := svc.FindByPhone(context.Background(), "+4")
	require.NoError(t, err)
	assert.Equal(t, "dave", view.Username)
}
