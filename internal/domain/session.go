package domain

import "time"

// Session binds a user to one device until ExpiresAt. The composite unique
// index keeps at most one row per (user, device) pair.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_sessions_user_device,priority:1" json:"user_id"`
	DeviceID  string    `gorm:"size:128;not null;uniqueIndex:idx_sessions_user_device,priority:2" json:"device_id"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
