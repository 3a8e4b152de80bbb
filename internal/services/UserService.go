package services

import (
	"context"

	"github.com/NeRF-or-Nothing/go-user-service/internal/log"
	"github.com/NeRF-or-Nothing/go-user-service/internal/models/user"
)

// UserStore is the persistence the UserService needs. It is implemented by user.UserManager.
type UserStore interface {
	GetUsers(ctx context.Context) ([]user.User, error)
	InsertUsers(ctx context.Context, users []user.User) ([]user.User, error)
	UpdateUserByID(ctx context.Context, id string, fields user.Fields) (*user.User, error)
	DeleteUserByID(ctx context.Context, id string) (*user.User, error)
}

type UserService struct {
	users  UserStore
	events EventPublisher
	logger *log.Logger
}

// NewUserService creates a UserService. A nil events publisher drops all events.
func NewUserService(users UserStore, events EventPublisher, logger *log.Logger) *UserService {
	if events == nil {
		events = NopPublisher{}
	}
	return &UserService{
		users:  users,
		events: events,
		logger: logger,
	}
}

// ListUsers returns every stored user.
func (s *UserService) ListUsers(ctx context.Context) ([]user.User, error) {
	return s.users.GetUsers(ctx)
}

// CreateUsers inserts users in order and returns them with their assigned IDs.
// On error, users before the rejected one may already be persisted.
func (s *UserService) CreateUsers(ctx context.Context, users []user.User) ([]user.User, error) {
	created, err := s.users.InsertUsers(ctx, users)
	if err != nil {
		return nil, err
	}

	for i := range created {
		s.publish(ctx, NewUserEvent(EventUserCreated, &created[i]))
	}
	s.logger.Infof("Created %d users", len(created))
	return created, nil
}

// UpdateUser applies fields to the user with the given ID.
// Returns user.ErrUserNotFound if no such user exists.
func (s *UserService) UpdateUser(ctx context.Context, id string, fields user.Fields) (*user.User, error) {
	updated, err := s.users.UpdateUserByID(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	if !fields.IsEmpty() {
		s.publish(ctx, NewUserEvent(EventUserUpdated, updated))
	}
	return updated, nil
}

// DeleteUser removes the user with the given ID.
// Returns user.ErrUserNotFound if no such user exists.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	deleted, err := s.users.DeleteUserByID(ctx, id)
	if err != nil {
		return err
	}

	s.publish(ctx, NewUserEvent(EventUserDeleted, deleted))
	return nil
}

// publish sends evt and only logs failures: the write it describes is already committed.
func (s *UserService) publish(ctx context.Context, evt UserEvent) {
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Errorf("Failed to publish %s for user %s: %v", evt.Type, evt.UserID, err)
	}
}
