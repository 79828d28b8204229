package models

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Email       string     `json:"email" gorm:"uniqueIndex;not null"`
	Password    string     `json:"-" gorm:"not null"`
	IsActive    bool       `json:"is_active" gorm:"not null"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:UserID"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate user ID: %w", err)
		}
		u.ID = id
	}
	return nil
}

// Token is a refresh token issued alongside an access token. Refreshing
// consumes the row and issues a new one.
type Token struct {
	ID           uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	RefreshToken uuid.UUID `json:"refresh_token" gorm:"type:uuid;uniqueIndex;not null"`
	ExpiresAt    time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at"`
}

func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// AuditLog records an ownership decision made for a user_tasks request.
type AuditLog struct {
	ID            uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID        uuid.UUID  `json:"user_id" gorm:"type:uuid;index"`
	Action        string     `json:"action" gorm:"not null"`
	Resource      string     `json:"resource" gorm:"not null"`
	ResourceID    *uuid.UUID `json:"resource_id" gorm:"type:uuid"`
	Decision      string     `json:"decision" gorm:"not null"`
	Reason        string     `json:"reason"`
	IPAddress     string     `json:"ip_address"`
	UserAgent     string     `json:"user_agent"`
	RequestMethod string     `json:"request_method"`
	RequestPath   string     `json:"request_path"`
	Timestamp     time.Time  `json:"timestamp" gorm:"index"`
}
