package domain

import (
	"context"
	"errors"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrProtectedUser = errors.New("user is protected")
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusBanned    Status = "banned"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSuspended || s == StatusBanned
}

// Collections the admin engine can touch.
const (
	CollectionUsers            = "users"
	CollectionPendingActions   = "pending_actions"
	CollectionInvitations      = "invitations"
	CollectionCoinTransactions = "coin_transactions"
)

type User struct {
	ID            string            `json:"id"`
	Username      string            `json:"username"`
	Email         string            `json:"email"`
	DisplayName   string            `json:"display_name,omitempty"`
	Role          accessDomain.Role `json:"role"`
	Status        Status            `json:"status"`
	SuspendReason string            `json:"suspend_reason,omitempty"`
	Kidzcoin      int64             `json:"kidzcoin"`
	ParentID      *string           `json:"parent_id,omitempty"`
	FriendIDs     []string          `json:"friend_ids"`
	LastLoginAt   *time.Time        `json:"last_login_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Snapshot returns the fields moderation and bulk actions record as previous values.
func (u User) Snapshot() map[string]any {
	return map[string]any{
		"status":         string(u.Status),
		"suspend_reason": u.SuspendReason,
		"role":           string(u.Role),
		"kidzcoin":       u.Kidzcoin,
	}
}

type PendingActionStatus string

const (
	PendingStatusPending  PendingActionStatus = "pending"
	PendingStatusApproved PendingActionStatus = "approved"
	PendingStatusRejected PendingActionStatus = "rejected"
	PendingStatusExpired  PendingActionStatus = "expired"
)

// PendingAction is a user request awaiting review, e.g. a parental approval.
type PendingAction struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Kind      string              `json:"kind"`
	Status    PendingActionStatus `json:"status"`
	ExpiresAt time.Time           `json:"expires_at"`
	CreatedAt time.Time           `json:"created_at"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

type Invitation struct {
	ID        string           `json:"id"`
	InviterID string           `json:"inviter_id"`
	Email     string           `json:"email"`
	Status    InvitationStatus `json:"status"`
	ExpiresAt time.Time        `json:"expires_at"`
	CreatedAt time.Time        `json:"created_at"`
}

type CoinTransaction struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	CounterpartyID *string   `json:"counterparty_id,omitempty"`
	Amount         int64     `json:"amount"`
	CreatedAt      time.Time `json:"created_at"`
}

type UserFilter struct {
	Role   string
	Status string
	Page   int
	Limit  int
}

type UserPage struct {
	Items []User `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// Repository persists the account collections.
type Repository interface {
	InitSchema(ctx context.Context) error

	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, filter UserFilter) (UserPage, error)

	CreatePendingAction(ctx context.Context, p PendingAction) error
	CreateInvitation(ctx context.Context, inv Invitation) error
	CreateCoinTransaction(ctx context.Context, tx CoinTransaction) error
}

// ModerationRequest is the input of a suspend, activate or ban call.
type ModerationRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}
