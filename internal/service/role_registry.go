package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/repository"
)

type RoleRegistry struct {
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	resolver    PermissionResolver
	logger      *slog.Logger
}

func NewRoleRegistry(roles repository.RoleRepository, permissions repository.PermissionRepository, resolver PermissionResolver, logger *slog.Logger) *RoleRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleRegistry{
		roles:       roles,
		permissions: permissions,
		resolver:    resolver,
		logger:      logger,
	}
}

func (r *RoleRegistry) CreateRole(ctx context.Context, name, description string, permissionIDs []uint) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, missing("name")
	}
	if _, err := r.roles.FindByName(ctx, name); err == nil {
		return nil, ErrRoleExists
	} else if !errors.Is(err, repository.ErrRoleNotFound) {
		return nil, translate("find_role", name, err)
	}
	role := &domain.Role{Name: name, Description: description}
	if err := r.roles.Create(ctx, role, permissionIDs); err != nil {
		return nil, translate("create_role", name, err)
	}
	r.invalidateRole(ctx, name)
	r.recordMutation(ctx, "role.created", "role", name)
	return role, nil
}

func (r *RoleRegistry) GetRole(ctx context.Context, id uint) (*domain.Role, error) {
	role, err := r.roles.FindByID(ctx, id)
	if err != nil {
		return nil, translate("get_role", "", err)
	}
	return role, nil
}

func (r *RoleRegistry) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	role, err := r.roles.FindByName(ctx, name)
	if err != nil {
		return nil, translate("get_role", name, err)
	}
	return role, nil
}

func (r *RoleRegistry) ListRoles(ctx context.Context) ([]domain.Role, error) {
	roles, err := r.roles.List(ctx)
	if err != nil {
		return nil, translate("list_roles", "", err)
	}
	return roles, nil
}

// UpdateRole replaces name, description and permission links. A nil
// permissionIDs leaves links untouched.
func (r *RoleRegistry) UpdateRole(ctx context.Context, id uint, name, description string, permissionIDs []uint) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, missing("name")
	}
	role, err := r.roles.FindByID(ctx, id)
	if err != nil {
		return nil, translate("get_role", "", err)
	}
	if name != role.Name {
		if _, err := r.roles.FindByName(ctx, name); err == nil {
			return nil, ErrRoleExists
		} else if !errors.Is(err, repository.ErrRoleNotFound) {
			return nil, translate("find_role", name, err)
		}
	}
	role.Name = name
	role.Description = description
	if err := r.roles.Update(ctx, role, permissionIDs); err != nil {
		return nil, translate("update_role", name, err)
	}
	r.invalidateAll(ctx)
	r.recordMutation(ctx, "role.updated", "role", name)
	return r.GetRole(ctx, id)
}

func (r *RoleRegistry) DeleteRole(ctx context.Context, id uint) error {
	if err := r.roles.DeleteByID(ctx, id); err != nil {
		return translate("delete_role", "", err)
	}
	r.invalidateAll(ctx)
	r.recordMutation(ctx, "role.deleted", "role_id", id)
	return nil
}

// AssignPermissionToRole links the permission. Linking twice is a no-op.
func (r *RoleRegistry) AssignPermissionToRole(ctx context.Context, roleID, permissionID uint) error {
	changed, err := r.roles.AddPermission(ctx, roleID, permissionID)
	if err != nil {
		return translate("assign_permission", "", err)
	}
	if changed {
		r.invalidateAll(ctx)
		r.recordMutation(ctx, "role.permission_assigned", "role_id", roleID, "permission_id", permissionID)
	}
	return nil
}

// RemovePermissionFromRole unlinks the permission. Removing an absent link
// is a no-op.
func (r *RoleRegistry) RemovePermissionFromRole(ctx context.Context, roleID, permissionID uint) error {
	changed, err := r.roles.RemovePermission(ctx, roleID, permissionID)
	if err != nil {
		return translate("remove_permission", "", err)
	}
	if changed {
		r.invalidateAll(ctx)
		r.recordMutation(ctx, "role.permission_removed", "role_id", roleID, "permission_id", permissionID)
	}
	return nil
}

func (r *RoleRegistry) CreatePermission(ctx context.Context, action, scope string) (*domain.Permission, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if !domain.IsKnownAction(action) {
		return nil, &ValidationError{Field: "action", Message: "must be one of create, read, write, delete"}
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = domain.DefaultPermissionScope
	}
	permission := &domain.Permission{Action: action, Scope: scope}
	if err := r.permissions.Create(ctx, permission); err != nil {
		return nil, translate("create_permission", action+":"+scope, err)
	}
	r.recordMutation(ctx, "permission.created", "action", action, "scope", scope)
	return permission, nil
}

func (r *RoleRegistry) GetPermission(ctx context.Context, id uint) (*domain.Permission, error) {
	permission, err := r.permissions.FindByID(ctx, id)
	if err != nil {
		return nil, translate("get_permission", "", err)
	}
	return permission, nil
}

func (r *RoleRegistry) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	permissions, err := r.permissions.List(ctx)
	if err != nil {
		return nil, translate("list_permissions", "", err)
	}
	return permissions, nil
}

// UpdatePermission is rejected with ErrPermissionInUse while any role links
// the permission.
func (r *RoleRegistry) UpdatePermission(ctx context.Context, id uint, action, scope string) (*domain.Permission, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	if !domain.IsKnownAction(action) {
		return nil, &ValidationError{Field: "action", Message: "must be one of create, read, write, delete"}
	}
	permission, err := r.permissions.FindByID(ctx, id)
	if err != nil {
		return nil, translate("get_permission", "", err)
	}
	permission.Action = action
	if scope = strings.TrimSpace(scope); scope != "" {
		permission.Scope = scope
	}
	if err := r.permissions.Update(ctx, permission); err != nil {
		return nil, translate("update_permission", "", err)
	}
	r.recordMutation(ctx, "permission.updated", "permission_id", id)
	return permission, nil
}

func (r *RoleRegistry) DeletePermission(ctx context.Context, id uint) error {
	if err := r.permissions.DeleteByID(ctx, id); err != nil {
		return translate("delete_permission", "", err)
	}
	r.recordMutation(ctx, "permission.deleted", "permission_id", id)
	return nil
}

// InitializeDefaultRoles seeds the global permissions and the built-in roles.
// Roles whose name already exists are left as they are. It returns the names
// it created.
func (r *RoleRegistry) InitializeDefaultRoles(ctx context.Context) ([]string, error) {
	permissionIDs := make(map[string]uint, len(domain.Actions))
	for _, action := range domain.Actions {
		permission, err := r.permissions.FindByActionScope(ctx, action, domain.DefaultPermissionScope)
		if errors.Is(err, repository.ErrPermissionNotFound) {
			permission = &domain.Permission{Action: action, Scope: domain.DefaultPermissionScope}
			err = r.permissions.Create(ctx, permission)
		}
		if err != nil {
			return nil, translate("seed_permission", action, err)
		}
		permissionIDs[action] = permission.ID
	}

	created := make([]string, 0, len(DefaultRoleNames))
	for _, name := range DefaultRoleNames {
		_, err := r.roles.FindByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrRoleNotFound) {
			return created, translate("seed_role", name, err)
		}
		ids := make([]uint, 0, len(defaultGrants[name]))
		for _, action := range defaultGrants[name] {
			ids = append(ids, permissionIDs[action])
		}
		role := &domain.Role{Name: name, Description: "Built-in " + name + " role"}
		if err := r.roles.Create(ctx, role, ids); err != nil {
			return created, translate("seed_role", name, err)
		}
		created = append(created, name)
	}
	if len(created) > 0 {
		r.invalidateAll(ctx)
		r.recordMutation(ctx, "role.defaults_seeded", "roles", created)
	}
	return created, nil
}

// HasPermission reports whether roleName grants action.
func (r *RoleRegistry) HasPermission(ctx context.Context, roleName, action string) (bool, error) {
	actions, err := r.resolver.ResolvePermissions(ctx, roleName)
	if err != nil {
		return false, err
	}
	for _, a := range actions {
		if a == action {
			return true, nil
		}
	}
	return false, nil
}

func (r *RoleRegistry) invalidateRole(ctx context.Context, name string) {
	if err := r.resolver.InvalidateRole(ctx, name); err != nil {
		r.logger.WarnContext(ctx, "role permission cache invalidation failed", "role", name, "error", err)
	}
}

func (r *RoleRegistry) invalidateAll(ctx context.Context) {
	if err := r.resolver.InvalidateAll(ctx); err != nil {
		r.logger.WarnContext(ctx, "role permission cache invalidation failed", "error", err)
	}
}

func (r *RoleRegistry) recordMutation(ctx context.Context, event string, attrs ...any) {
	observability.RecordRoleMutation(ctx, event)
	observability.Audit(ctx, event, attrs...)
}
