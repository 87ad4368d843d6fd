package domain

import "time"

const (
	AuthMethodPassword = "password"
)

type User struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	Email          string     `gorm:"size:320;uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"size:255" json:"-"`
	Role           string     `gorm:"size:64;index;not null" json:"role"`
	Username       string     `gorm:"size:128" json:"username,omitempty"`
	Avatar         string     `gorm:"size:512" json:"avatar,omitempty"`
	LastAuthMethod string     `gorm:"size:32" json:"last_auth_method,omitempty"`
	LastActiveAt   *time.Time `json:"last_active_at,omitempty"`
	FailedAttempts int        `gorm:"not null;default:0" json:"failed_attempts"`
	LockoutUntil   *time.Time `gorm:"index" json:"lockout_until,omitempty"`
	IsRegistered   bool       `gorm:"not null;default:false" json:"is_registered"`
	Blocked        bool       `gorm:"not null;default:false" json:"blocked"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// HasPassword reports whether the account can authenticate with a password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}
