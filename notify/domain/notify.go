package domain

import (
	"context"
	"time"
)

// Notification is a message for one user. ViaEmail additionally requests an email.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	ViaEmail  bool      `json:"via_email"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier delivers a notification. Callers treat errors as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EmailSender delivers the email part of a notification.
type EmailSender interface {
	Send(ctx context.Context, userID, message string) error
}

type Repository interface {
	InitSchema(ctx context.Context) error
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
}
