package repository

import (
	"context"
	"errors"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	// UpsertActiveForDevice renews the live session for candidate's
	// (user, device) pair with candidate.ExpiresAt, or inserts candidate when
	// none is live. renewed reports which branch ran.
	UpsertActiveForDevice(ctx context.Context, candidate *domain.Session, now time.Time) (session *domain.Session, renewed bool, err error)
	FindActiveByDevice(ctx context.Context, userID, deviceID string, now time.Time) (*domain.Session, error)
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByUserID(ctx context.Context, userID string) ([]string, error)
	ListActiveByUserID(ctx context.Context, userID string, now time.Time) ([]domain.Session, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) UpsertActiveForDevice(ctx context.Context, candidate *domain.Session, now time.Time) (*domain.Session, bool, error) {
	var (
		result  domain.Session
		renewed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A dead row for the pair must not be revived by the conflict clause below.
		if err := tx.Where("user_id = ? AND device_id = ? AND expires_at <= ?", candidate.UserID, candidate.DeviceID, now).
			Delete(&domain.Session{}).Error; err != nil {
			return err
		}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND device_id = ?", candidate.UserID, candidate.DeviceID).
			First(&result).Error
		switch {
		case err == nil:
			renewed = true
			result.ExpiresAt = candidate.ExpiresAt
			return tx.Model(&domain.Session{}).Where("id = ?", result.ID).
				Updates(map[string]any{"expires_at": candidate.ExpiresAt, "updated_at": now}).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		// A concurrent insert for the same pair turns this into a renewal of
		// the winner's row.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"expires_at", "updated_at"}),
		}).Create(candidate).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND device_id = ?", candidate.UserID, candidate.DeviceID).First(&result).Error; err != nil {
			return err
		}
		renewed = result.ID != candidate.ID
		return nil
	})
	record(ctx, "session", "upsert_active_for_device", err)
	if err != nil {
		return nil, false, err
	}
	return &result, renewed, nil
}

func (r *GormSessionRepository) FindActiveByDevice(ctx context.Context, userID, deviceID string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ? AND expires_at > ?", userID, deviceID, now).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "find_active_by_device", err, ErrSessionNotFound)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "find_by_id", err, ErrSessionNotFound)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSessionRepository) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", id).Update("expires_at", expiresAt)
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = ErrSessionNotFound
	}
	record(ctx, "session", "update_expiry", err, ErrSessionNotFound)
	return err
}

func (r *GormSessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Session{})
	record(ctx, "session", "delete", res.Error)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteByUserID removes every session of the user and returns their ids so
// callers can evict derived copies.
func (r *GormSessionRepository) DeleteByUserID(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Session{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&domain.Session{}).Error
	})
	record(ctx, "session", "delete_by_user_id", err)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormSessionRepository) ListActiveByUserID(ctx context.Context, userID string, now time.Time) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("created_at DESC").
		Find(&sessions).Error
	record(ctx, "session", "list_active_by_user_id", err)
	return sessions, err
}

func (r *GormSessionRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&domain.Session{})
	record(ctx, "session", "cleanup_expired", res.Error)
	return res.RowsAffected, res.Error
}
