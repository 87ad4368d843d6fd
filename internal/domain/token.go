package domain

import "time"

const (
	TokenTypeAccess       = "access"
	TokenTypeReset        = "reset"
	TokenTypeVerification = "verification"
)

type Token struct {
	Token     string    `gorm:"primaryKey;size:512" json:"token"`
	UserID    string    `gorm:"size:64;index;not null" json:"user_id"`
	Email     string    `gorm:"size:320;not null" json:"email"`
	Type      string    `gorm:"size:32;index;not null" json:"type"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
