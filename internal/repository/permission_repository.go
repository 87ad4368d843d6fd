package repository

import (
	"context"
	"errors"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"

	"gorm.io/gorm"
)

var (
	ErrPermissionNotFound = errors.New("permission not found")
	ErrPermissionInUse    = errors.New("permission is referenced by a role")
)

type PermissionRepository interface {
	List(ctx context.Context) ([]domain.Permission, error)
	FindByID(ctx context.Context, id uint) (*domain.Permission, error)
	FindByActionScope(ctx context.Context, action, scope string) (*domain.Permission, error)
	Create(ctx context.Context, permission *domain.Permission) error
	Update(ctx context.Context, permission *domain.Permission) error
	DeleteByID(ctx context.Context, id uint) error
}

type GormPermissionRepository struct{ db *gorm.DB }

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &GormPermissionRepository{db: db}
}

func (r *GormPermissionRepository) List(ctx context.Context) ([]domain.Permission, error) {
	var perms []domain.Permission
	err := r.db.WithContext(ctx).Order("id ASC").Find(&perms).Error
	record(ctx, "permission", "list", err)
	return perms, err
}

func (r *GormPermissionRepository) FindByID(ctx context.Context, id uint) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrPermissionNotFound
	}
	record(ctx, "permission", "find_by_id", err, ErrPermissionNotFound)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPermissionRepository) FindByActionScope(ctx context.Context, action, scope string) (*domain.Permission, error) {
	var p domain.Permission
	err := r.db.WithContext(ctx).Where("action = ? AND scope = ?", action, scope).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrPermissionNotFound
	}
	record(ctx, "permission", "find_by_action_scope", err, ErrPermissionNotFound)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPermissionRepository) Create(ctx context.Context, permission *domain.Permission) error {
	err := r.db.WithContext(ctx).Create(permission).Error
	record(ctx, "permission", "create", err)
	return err
}

// Update rewrites action and scope. A permission linked to any role is
// immutable and yields ErrPermissionInUse.
func (r *GormPermissionRepository) Update(ctx context.Context, permission *domain.Permission) error {
	err := r.mutateUnreferenced(ctx, permission.ID, func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&domain.Permission{}).Where("id = ?", permission.ID).Updates(map[string]any{
			"action": permission.Action,
			"scope":  permission.Scope,
		})
	})
	record(ctx, "permission", "update", err, ErrPermissionNotFound)
	return err
}

func (r *GormPermissionRepository) DeleteByID(ctx context.Context, id uint) error {
	err := r.mutateUnreferenced(ctx, id, func(tx *gorm.DB) *gorm.DB {
		return tx.Delete(&domain.Permission{}, id)
	})
	record(ctx, "permission", "delete_by_id", err, ErrPermissionNotFound)
	return err
}

func (r *GormPermissionRepository) mutateUnreferenced(ctx context.Context, id uint, mutate func(tx *gorm.DB) *gorm.DB) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Table("role_permissions").Where("permission_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return ErrPermissionInUse
		}
		res := mutate(tx)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPermissionNotFound
		}
		return nil
	})
}
