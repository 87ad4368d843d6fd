package repository

import (
	"fmt"
	"strings"
	"testing"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, repo UserRepository, id, email string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Email: email, Role: domain.RoleUser}
	if err := repo.Create(t.Context(), u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}
