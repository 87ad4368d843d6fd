package domain

import "time"

const (
	ActionCreate = "create"
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Actions lists every permission action in matrix order.
var Actions = []string{ActionCreate, ActionRead, ActionWrite, ActionDelete}

const (
	RoleAdmin     = "admin"
	RoleDeveloper = "developer"
	RoleEditor    = "editor"
	RoleUser      = "user"
)

const DefaultPermissionScope = "global"

type Role struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:64;uniqueIndex;not null" json:"name"`
	Description string       `gorm:"size:255" json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type Permission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Action    string    `gorm:"size:32;not null;uniqueIndex:idx_permissions_action_scope,priority:1" json:"action"`
	Scope     string    `gorm:"size:64;not null;uniqueIndex:idx_permissions_action_scope,priority:2" json:"scope"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func IsKnownAction(action string) bool {
	for _, a := range Actions {
		if a == action {
			return true
		}
	}
	return false
}
