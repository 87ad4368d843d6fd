package service

import "github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"

// PermissionMatrix maps role name -> action -> granted.
type PermissionMatrix map[string]map[string]bool

var defaultGrants = map[string][]string{
	domain.RoleAdmin:     {domain.ActionCreate, domain.ActionRead, domain.ActionWrite, domain.ActionDelete},
	domain.RoleDeveloper: {domain.ActionCreate, domain.ActionRead, domain.ActionWrite},
	domain.RoleEditor:    {domain.ActionRead, domain.ActionWrite},
	domain.RoleUser:      {domain.ActionRead},
}

// DefaultRoleNames lists the built-in roles in seeding order.
var DefaultRoleNames = []string{domain.RoleAdmin, domain.RoleDeveloper, domain.RoleEditor, domain.RoleUser}

// DefaultPermissionMatrix returns a fresh copy with every action filled in.
func DefaultPermissionMatrix() PermissionMatrix {
	m := make(PermissionMatrix, len(defaultGrants))
	for _, role := range DefaultRoleNames {
		m[role] = defaultActionsFor(role)
	}
	return m
}

func defaultActionsFor(role string) map[string]bool {
	actions := make(map[string]bool, len(domain.Actions))
	for _, a := range domain.Actions {
		actions[a] = false
	}
	for _, a := range defaultGrants[role] {
		actions[a] = true
	}
	return actions
}

// SanitizePermissions reduces overrides to the entries that differ from the
// role defaults. Roles outside the defaults compare against all-false. The
// boolean is false when nothing differs, in which case the matrix is nil.
func SanitizePermissions(overrides PermissionMatrix) (PermissionMatrix, bool) {
	var diff PermissionMatrix
	for role, actions := range overrides {
		defaults := defaultActionsFor(role)
		for action, granted := range actions {
			if defaults[action] == granted {
				continue
			}
			if diff == nil {
				diff = make(PermissionMatrix)
			}
			if diff[role] == nil {
				diff[role] = make(map[string]bool)
			}
			diff[role][action] = granted
		}
	}
	return diff, diff != nil
}
