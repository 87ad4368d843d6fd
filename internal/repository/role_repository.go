package repository

import (
	"context"
	"errors"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"

	"gorm.io/gorm"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository interface {
	FindByID(ctx context.Context, id uint) (*domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
	Create(ctx context.Context, role *domain.Role, permissionIDs []uint) error
	// Update writes name and description. A nil permissionIDs keeps the
	// current links; an empty slice clears them.
	Update(ctx context.Context, role *domain.Role, permissionIDs []uint) error
	AddPermission(ctx context.Context, roleID, permissionID uint) (bool, error)
	RemovePermission(ctx context.Context, roleID, permissionID uint) (bool, error)
	DeleteByID(ctx context.Context, id uint) error
}

type GormRoleRepository struct{ db *gorm.DB }

func NewRoleRepository(db *gorm.DB) RoleRepository { return &GormRoleRepository{db: db} }

func (r *GormRoleRepository) FindByID(ctx context.Context, id uint) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).Preload("Permissions").First(&role, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrRoleNotFound
	}
	record(ctx, "role", "find_by_id", err, ErrRoleNotFound)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).Preload("Permissions").Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrRoleNotFound
	}
	record(ctx, "role", "find_by_name", err, ErrRoleNotFound)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) List(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	err := r.db.WithContext(ctx).Preload("Permissions").Order("id ASC").Find(&roles).Error
	record(ctx, "role", "list", err)
	return roles, err
}

func (r *GormRoleRepository) Create(ctx context.Context, role *domain.Role, permissionIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Permissions").Create(role).Error; err != nil {
			return err
		}
		perms, err := findPermissions(tx, permissionIDs)
		if err != nil {
			return err
		}
		if len(perms) == 0 {
			role.Permissions = nil
			return nil
		}
		if err := tx.Model(role).Association("Permissions").Replace(perms); err != nil {
			return err
		}
		role.Permissions = perms
		return nil
	})
	record(ctx, "role", "create", err)
	return err
}

func (r *GormRoleRepository) Update(ctx context.Context, role *domain.Role, permissionIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Role
		if err := tx.First(&existing, role.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return err
		}
		if err := tx.Model(&existing).Updates(map[string]any{
			"name":        role.Name,
			"description": role.Description,
		}).Error; err != nil {
			return err
		}
		if permissionIDs == nil {
			return nil
		}
		perms, err := findPermissions(tx, permissionIDs)
		if err != nil {
			return err
		}
		if err := tx.Model(&existing).Association("Permissions").Replace(perms); err != nil {
			return err
		}
		role.Permissions = perms
		return nil
	})
	record(ctx, "role", "update", err, ErrRoleNotFound)
	return err
}

// AddPermission links a permission to a role. Linking an already linked
// permission is a no-op reported as false.
func (r *GormRoleRepository) AddPermission(ctx context.Context, roleID, permissionID uint) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, perm, err := findRoleAndPermission(tx, roleID, permissionID)
		if err != nil {
			return err
		}
		linked, err := isLinked(tx, roleID, permissionID)
		if err != nil || linked {
			return err
		}
		if err := tx.Model(role).Association("Permissions").Append(perm); err != nil {
			return err
		}
		added = true
		return nil
	})
	record(ctx, "role", "add_permission", err, ErrRoleNotFound, ErrPermissionNotFound)
	return added, err
}

// RemovePermission unlinks a permission from a role; the permission row is
// kept. Removing an absent link is a no-op reported as false.
func (r *GormRoleRepository) RemovePermission(ctx context.Context, roleID, permissionID uint) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, perm, err := findRoleAndPermission(tx, roleID, permissionID)
		if err != nil {
			return err
		}
		linked, err := isLinked(tx, roleID, permissionID)
		if err != nil || !linked {
			return err
		}
		if err := tx.Model(role).Association("Permissions").Delete(perm); err != nil {
			return err
		}
		removed = true
		return nil
	})
	record(ctx, "role", "remove_permission", err, ErrRoleNotFound, ErrPermissionNotFound)
	return removed, err
}

// DeleteByID drops the role and its permission links. Permissions survive.
func (r *GormRoleRepository) DeleteByID(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role := domain.Role{ID: id}
		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return err
		}
		res := tx.Delete(&domain.Role{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoleNotFound
		}
		return nil
	})
	record(ctx, "role", "delete_by_id", err, ErrRoleNotFound)
	return err
}

func findPermissions(tx *gorm.DB, ids []uint) ([]domain.Permission, error) {
	var perms []domain.Permission
	if len(ids) == 0 {
		return perms, nil
	}
	if err := tx.Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return nil, err
	}
	if len(perms) != len(uniqueIDs(ids)) {
		return nil, ErrPermissionNotFound
	}
	return perms, nil
}

func findRoleAndPermission(tx *gorm.DB, roleID, permissionID uint) (*domain.Role, *domain.Permission, error) {
	var role domain.Role
	if err := tx.First(&role, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRoleNotFound
		}
		return nil, nil, err
	}
	var perm domain.Permission
	if err := tx.First(&perm, permissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPermissionNotFound
		}
		return nil, nil, err
	}
	return &role, &perm, nil
}

func isLinked(tx *gorm.DB, roleID, permissionID uint) (bool, error) {
	var n int64
	err := tx.Table("role_permissions").
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Count(&n).Error
	return n > 0, err
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
