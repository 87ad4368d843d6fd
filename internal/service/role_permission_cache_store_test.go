package service

import (
	"context"
	"testing"
	"time"
)

func TestRolePermissionCacheStoresInvalidate(t *testing.T) {
	_, client := newRedisClientForTest(t)
	stores := map[string]RolePermissionCacheStore{
		"memory": NewInMemoryRolePermissionCacheStore(8, time.Minute),
		"redis":  NewRedisRolePermissionCacheStore(client, "role_perm_test"),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			actions := []string{"read", "write"}

			if err := store.Set(ctx, "editor", actions, time.Minute); err != nil {
				t.Fatalf("set: %v", err)
			}
			got, ok, err := store.Get(ctx, "editor")
			if err != nil || !ok {
				t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
			}
			if len(got) != 2 || got[0] != "read" || got[1] != "write" {
				t.Fatalf("unexpected cached actions: %#v", got)
			}

			if err := store.InvalidateRole(ctx, "editor"); err != nil {
				t.Fatalf("invalidate role: %v", err)
			}
			if _, ok, _ := store.Get(ctx, "editor"); ok {
				t.Fatal("expected miss after role invalidation")
			}

			if err := store.Set(ctx, "editor", actions, time.Minute); err != nil {
				t.Fatalf("set again: %v", err)
			}
			if err := store.Set(ctx, "user", []string{"read"}, time.Minute); err != nil {
				t.Fatalf("set user: %v", err)
			}
			if err := store.InvalidateAll(ctx); err != nil {
				t.Fatalf("invalidate all: %v", err)
			}
			for _, role := range []string{"editor", "user"} {
				if _, ok, _ := store.Get(ctx, role); ok {
					t.Fatalf("expected miss for %s after global invalidation", role)
				}
			}
		})
	}
}

func TestRedisRolePermissionCacheStoreMalformedEpochValue(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClientForTest(t)
	store := NewRedisRolePermissionCacheStore(client, "role_perm_test")

	if err := client.Set(ctx, store.globalEpochKey(), "NaN", time.Minute).Err(); err != nil {
		t.Fatalf("seed malformed epoch: %v", err)
	}
	if _, _, err := store.Get(ctx, "admin"); err == nil {
		t.Fatal("expected parse error for malformed epoch")
	}
}

func TestInMemoryRolePermissionCacheStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRolePermissionCacheStore(0, time.Minute)
	if err := store.Set(ctx, "admin", []string{"delete"}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _, _ := store.Get(ctx, "admin")
	got[0] = "mutated"
	again, _, _ := store.Get(ctx, "admin")
	if again[0] != "delete" {
		t.Fatalf("expected cached slice to be isolated, got %v", again)
	}
}
