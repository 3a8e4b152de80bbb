package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/NeRF-or-Nothing/go-user-service/internal/models/user"
)

// Event types, also used as AMQP routing keys.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// UserEvent announces a committed change to a user.
type UserEvent struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	UserID     string     `json:"user_id"`
	User       *user.User `json:"user,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewUserEvent builds an event of the given type for u.
func NewUserEvent(eventType string, u *user.User) UserEvent {
	return UserEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     u.ID.Hex(),
		User:       u,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher delivers user events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, evt UserEvent) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, UserEvent) error { return nil }
