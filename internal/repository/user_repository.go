package repository

import (
	"context"
	"errors"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.User], error)
	Count(ctx context.Context) (int64, error)
	UpdateAttributes(ctx context.Context, id string, attrs map[string]any) error
	UpdateLocked(ctx context.Context, id string, fn func(u *domain.User) (map[string]any, error)) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) Create(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	record(ctx, "user", "create", err)
	return err
}

func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrUserNotFound
	}
	record(ctx, "user", "find_by_id", err, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrUserNotFound
	}
	record(ctx, "user", "find_by_email", err, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) ListPaged(ctx context.Context, req PageRequest) (PageResult[domain.User], error) {
	result, err := paginate[domain.User](ctx, r.db.Model(&domain.User{}), req, "created_at ASC", "id ASC")
	record(ctx, "user", "list_paged", err)
	return result, err
}

func (r *GormUserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	record(ctx, "user", "count", err)
	return n, err
}

// UpdateAttributes applies a column map. Nil values clear nullable columns.
func (r *GormUserRepository) UpdateAttributes(ctx context.Context, id string, attrs map[string]any) error {
	if len(attrs) == 0 {
		_, err := r.FindByID(ctx, id)
		return err
	}
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(attrs)
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrUserNotFound
	}
	record(ctx, "user", "update_attributes", err, ErrUserNotFound)
	return err
}

// UpdateLocked reads the user under a row lock, lets fn derive the columns
// to write from that row and applies them in the same transaction. An error
// from fn rolls back and is returned as is. The returned user is the row as
// fn saw it.
func (r *GormUserRepository) UpdateLocked(ctx context.Context, id string, fn func(u *domain.User) (map[string]any, error)) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}
		attrs, err := fn(&u)
		if err != nil || len(attrs) == 0 {
			return err
		}
		return tx.Model(&domain.User{}).Where("id = ?", id).Updates(attrs).Error
	})
	record(ctx, "user", "update_locked", err, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormUserRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrUserNotFound
	}
	record(ctx, "user", "delete", err, ErrUserNotFound)
	return err
}
