package repository

import (
	"context"
	"errors"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)

type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	Find(ctx context.Context, token string) (*domain.Token, error)
	// Consume deletes the token matching (token, userID, tokenType) and
	// returns it. Only one caller can win for a given token. An expired match
	// is deleted and reported as ErrTokenExpired.
	Consume(ctx context.Context, token, userID, tokenType string, now time.Time) (*domain.Token, error)
	List(ctx context.Context) ([]domain.Token, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormTokenRepository struct{ db *gorm.DB }

func NewTokenRepository(db *gorm.DB) TokenRepository { return &GormTokenRepository{db: db} }

func (r *GormTokenRepository) Create(ctx context.Context, token *domain.Token) error {
	err := r.db.WithContext(ctx).Create(token).Error
	record(ctx, "token", "create", err)
	return err
}

func (r *GormTokenRepository) Find(ctx context.Context, token string) (*domain.Token, error) {
	var t domain.Token
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrTokenNotFound
	}
	record(ctx, "token", "find", err, ErrTokenNotFound)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormTokenRepository) Consume(ctx context.Context, token, userID, tokenType string, now time.Time) (*domain.Token, error) {
	var consumed domain.Token
	expired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("token = ? AND user_id = ? AND type = ?", token, userID, tokenType).
			First(&consumed).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}
		res := tx.Where("token = ?", token).Delete(&domain.Token{})
		if res.Error != nil {
			return res.Error
		}
		// Zero rows means a concurrent consumer deleted it first.
		if res.RowsAffected == 0 {
			return ErrTokenNotFound
		}
		expired = consumed.Expired(now)
		return nil
	})
	if err == nil && expired {
		err = ErrTokenExpired
	}
	record(ctx, "token", "consume", err, ErrTokenNotFound, ErrTokenExpired)
	if err != nil {
		return nil, err
	}
	return &consumed, nil
}

func (r *GormTokenRepository) List(ctx context.Context) ([]domain.Token, error) {
	var tokens []domain.Token
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&tokens).Error
	record(ctx, "token", "list", err)
	return tokens, err
}

func (r *GormTokenRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.Token{})
	record(ctx, "token", "delete_by_user_id", res.Error)
	return res.RowsAffected, res.Error
}

func (r *GormTokenRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&domain.Token{})
	record(ctx, "token", "cleanup_expired", res.Error)
	return res.RowsAffected, res.Error
}
