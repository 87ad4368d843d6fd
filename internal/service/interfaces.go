package service

import (
	"context"
	"time"
)

// CredentialHasher is the one-way password hashing policy. Verify returns
// false for a wrong password or malformed hash; an error means the hasher
// itself failed.
type CredentialHasher interface {
	Hash(plaintext string) (string, error)
	Verify(encoded, plaintext string) (bool, error)
	NeedsUpgrade(encoded string) bool
}

type PermissionResolver interface {
	ResolvePermissions(ctx context.Context, roleName string) ([]string, error)
	InvalidateRole(ctx context.Context, roleName string) error
	InvalidateAll(ctx context.Context) error
}

type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
