package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/haroon-afzal-tahir/sveltycms-auth/internal/domain"
)

func TestSessionRepositoryUpsertCreatesThenRenews(t *testing.T) {
	repo := NewSessionRepository(newDBForTest(t))
	ctx := t.Context()
	now := time.Now().UTC()

	first, renewed, err := repo.UpsertActiveForDevice(ctx, &domain.Session{
		ID: "s-1", UserID: "u1", DeviceID: "deviceA", ExpiresAt: now.Add(2 * time.Hour),
	}, now)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if renewed || first.ID != "s-1" {
		t.Fatalf("expected fresh session s-1, got %+v renewed=%v", first, renewed)
	}

	second, renewed, err := repo.UpsertActiveForDevice(ctx, &domain.Session{
		ID: "s-2", UserID: "u1", DeviceID: "deviceA", ExpiresAt: now.Add(time.Hour),
	}, now)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !renewed || second.ID != "s-1" {
		t.Fatalf("expected renewal of s-1, got %+v renewed=%v", second, renewed)
	}
	stored, err := repo.FindByID(ctx, "s-1")
	if err != nil {
		t.Fatalf("find renewed: %v", err)
	}
	if !stored.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %s, got %s", now.Add(time.Hour), stored.ExpiresAt)
	}
	if _, err := repo.FindByID(ctx, "s-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected no duplicate session, got %v", err)
	}
}

func TestSessionRepositoryUpsertReplacesExpiredRow(t *testing.T) {
	repo := NewSessionRepository(newDBForTest(t))
	ctx := t.Context()
	now := time.Now().UTC()

	if _, _, err := repo.UpsertActiveForDevice(ctx, &domain.Session{
		ID: "old", UserID: "u1", DeviceID: "d", ExpiresAt: now.Add(time.Minute),
	}, now); err != nil {
		t.Fatalf("seed: %v", err)
	}

	later := now.Add(time.Hour)
	got, renewed, err := repo.UpsertActiveForDevice(ctx, &domain.Session{
		ID: "new", UserID: "u1", DeviceID: "d", ExpiresAt: later.Add(time.Hour),
	}, later)
	if err != nil {
		t.Fatalf("upsert after expiry: %v", err)
	}
	if renewed || got.ID != "new" {
		t.Fatalf("expected a new session after expiry, got %+v renewed=%v", got, renewed)
	}
}

func TestSessionRepositoryScopesByDeviceAndUser(t *testing.T) {
	repo := NewSessionRepository(newDBForTest(t))
	ctx := t.Context()
	now := time.Now().UTC()

	for _, s := range []*domain.Session{
		{ID: "a", UserID: "u1", DeviceID: "d1", ExpiresAt: now.Add(time.Hour)},
		{ID: "b", UserID: "u1", DeviceID: "d2", ExpiresAt: now.Add(time.Hour)},
		{ID: "c", UserID: "u2", DeviceID: "d1", ExpiresAt: now.Add(time.Hour)},
	} {
		if _, _, err := repo.UpsertActiveForDevice(ctx, s, now); err != nil {
			t.Fatalf("upsert %s: %v", s.ID, err)
		}
	}

	active, err := repo.FindActiveByDevice(ctx, "u1", "d2", now)
	if err != nil || active.ID != "b" {
		t.Fatalf("expected session b, got %+v err=%v", active, err)
	}
	list, err := repo.ListActiveByUserID(ctx, "u1", now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions for u1, got %d", len(list))
	}

	ids, err := repo.DeleteByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("delete by user: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 deleted ids, got %v", ids)
	}
	if _, err := repo.FindByID(ctx, "c"); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
}

func TestSessionRepositoryDeleteUpdateAndCleanup(t *testing.T) {
	repo := NewSessionRepository(newDBForTest(t))
	ctx := t.Context()
	now := time.Now().UTC()

	for _, s := range []*domain.Session{
		{ID: "live", UserID: "u1", DeviceID: "d1", ExpiresAt: now.Add(time.Hour)},
		{ID: "dead", UserID: "u1", DeviceID: "d2", ExpiresAt: now.Add(time.Minute)},
	} {
		if _, _, err := repo.UpsertActiveForDevice(ctx, s, now); err != nil {
			t.Fatalf("upsert %s: %v", s.ID, err)
		}
	}

	if err := repo.UpdateExpiry(ctx, "live", now.Add(3*time.Hour)); err != nil {
		t.Fatalf("update expiry: %v", err)
	}
	if err := repo.UpdateExpiry(ctx, "missing", now); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found for missing session, got %v", err)
	}

	n, err := repo.CleanupExpired(ctx, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired session removed, got %d", n)
	}

	deleted, err := repo.Delete(ctx, "live")
	if err != nil || !deleted {
		t.Fatalf("delete live: deleted=%v err=%v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, "live")
	if err != nil || deleted {
		t.Fatalf("second delete must be a no-op: deleted=%v err=%v", deleted, err)
	}
}
