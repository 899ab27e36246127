package repository

import (
	"database/sql"
	"time"

	accessDomain "github.com/AzielCF/az-admin/access/domain"
	"github.com/AzielCF/az-admin/accounts/domain"
	json "github.com/goccy/go-json"
)

// --- Persistence Models ---

type userModel struct {
	ID            string         `gorm:"primaryKey;column:id"`
	Username      string         `gorm:"column:username;not null;uniqueIndex"`
	Email         string         `gorm:"column:email;not null;index"`
	DisplayName   sql.NullString `gorm:"column:display_name"`
	Role          string         `gorm:"column:role;not null;default:'user';index"`
	Status        string         `gorm:"column:status;not null;default:'active';index"`
	SuspendReason sql.NullString `gorm:"column:suspend_reason"`
	Kidzcoin      int64          `gorm:"column:kidzcoin;not null;default:0"`
	ParentID      *string        `gorm:"column:parent_id;index"`
	FriendIDs     string         `gorm:"column:friend_ids;type:text;default:'[]'"` // JSON
	LastLoginAt   *time.Time     `gorm:"column:last_login_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null;index"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;not null"`
}

func (userModel) TableName() string { return domain.CollectionUsers }

type pendingActionModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	UserID    string    `gorm:"column:user_id;not null;index"`
	Kind      string    `gorm:"column:kind;not null"`
	Status    string    `gorm:"column:status;not null;default:'pending';index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

func (pendingActionModel) TableName() string { return domain.CollectionPendingActions }

type invitationModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	InviterID string    `gorm:"column:inviter_id;not null;index"`
	Email     string    `gorm:"column:email;not null"`
	Status    string    `gorm:"column:status;not null;default:'pending';index"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (invitationModel) TableName() string { return domain.CollectionInvitations }

type coinTransactionModel struct {
	ID             string    `gorm:"primaryKey;column:id"`
	UserID         string    `gorm:"column:user_id;not null;index"`
	CounterpartyID *string   `gorm:"column:counterparty_id;index"`
	Amount         int64     `gorm:"column:amount;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null;index"`
}

func (coinTransactionModel) TableName() string { return domain.CollectionCoinTransactions }

// --- Mappers ---

func toUserModel(u domain.User) userModel {
	friends := u.FriendIDs
	if friends == nil {
		friends = []string{}
	}
	friendsJSON, _ := json.Marshal(friends)

	return userModel{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		DisplayName:   nullString(u.DisplayName),
		Role:          string(u.Role),
		Status:        string(u.Status),
		SuspendReason: nullString(u.SuspendReason),
		Kidzcoin:      u.Kidzcoin,
		ParentID:      u.ParentID,
		FriendIDs:     string(friendsJSON),
		LastLoginAt:   utcPtr(u.LastLoginAt),
		CreatedAt:     u.CreatedAt.UTC(),
		UpdatedAt:     u.UpdatedAt.UTC(),
	}
}

func fromUserModel(m userModel) domain.User {
	return domain.User{
		ID:            m.ID,
		Username:      m.Username,
		Email:         m.Email,
		DisplayName:   m.DisplayName.String,
		Role:          accessDomain.ParseRole(m.Role),
		Status:        domain.Status(m.Status),
		SuspendReason: m.SuspendReason.String,
		Kidzcoin:      m.Kidzcoin,
		ParentID:      m.ParentID,
		FriendIDs:     decodeIDList(m.FriendIDs),
		LastLoginAt:   m.LastLoginAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func toPendingActionModel(p domain.PendingAction) pendingActionModel {
	return pendingActionModel{
		ID:        p.ID,
		UserID:    p.UserID,
		Kind:      p.Kind,
		Status:    string(p.Status),
		ExpiresAt: p.ExpiresAt.UTC(),
		CreatedAt: p.CreatedAt.UTC(),
	}
}

func toInvitationModel(inv domain.Invitation) invitationModel {
	return invitationModel{
		ID:        inv.ID,
		InviterID: inv.InviterID,
		Email:     inv.Email,
		Status:    string(inv.Status),
		ExpiresAt: inv.ExpiresAt.UTC(),
		CreatedAt: inv.CreatedAt.UTC(),
	}
}

func toCoinTransactionModel(tx domain.CoinTransaction) coinTransactionModel {
	return coinTransactionModel{
		ID:             tx.ID,
		UserID:         tx.UserID,
		CounterpartyID: tx.CounterpartyID,
		Amount:         tx.Amount,
		CreatedAt:      tx.CreatedAt.UTC(),
	}
}

// DecodeIDList parses a JSON id list column. Malformed values decode to an empty list.
func DecodeIDList(raw string) []string {
	return decodeIDList(raw)
}

func decodeIDList(raw string) []string {
	ids := []string{}
	if raw == "" || raw == "null" {
		return ids
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []string{}
	}
	return ids
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
