package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/observability"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Session{},
		&domain.Token{},
		&domain.Permission{},
		&domain.Role{},
	)
}

// record reports a repository call outcome; any of notFound marks the call as
// a miss rather than a failure.
func record(ctx context.Context, entity, operation string, err error, notFound ...error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		for _, nf := range notFound {
			if errors.Is(err, nf) {
				outcome = "not_found"
				break
			}
		}
	}
	observability.RecordRepositoryOperation(ctx, entity, operation, outcome)
}
