package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRolePermissionCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRolePermissionCacheStore(client redis.UniversalClient, prefix string) *RedisRolePermissionCacheStore {
	if prefix == "" {
		prefix = "role_perm"
	}
	return &RedisRolePermissionCacheStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisRolePermissionCacheStore) Get(ctx context.Context, roleName string) ([]string, bool, error) {
	if s.client == nil {
		return nil, false, nil
	}
	key, err := s.dataKey(ctx, roleName)
	if err != nil {
		return nil, false, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var actions []string
	if err := json.Unmarshal(raw, &actions); err != nil {
		return nil, false, err
	}
	return actions, true, nil
}

func (s *RedisRolePermissionCacheStore) Set(ctx context.Context, roleName string, actions []string, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	key, err := s.dataKey(ctx, roleName)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(actions)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

func (s *RedisRolePermissionCacheStore) InvalidateRole(ctx context.Context, roleName string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Incr(ctx, s.roleEpochKey(roleName)).Err()
}

func (s *RedisRolePermissionCacheStore) InvalidateAll(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Incr(ctx, s.globalEpochKey()).Err()
}

func (s *RedisRolePermissionCacheStore) dataKey(ctx context.Context, roleName string) (string, error) {
	pipe := s.client.Pipeline()
	globalEpochCmd := pipe.Get(ctx, s.globalEpochKey())
	roleEpochCmd := pipe.Get(ctx, s.roleEpochKey(roleName))
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	globalEpoch, err := parseEpoch(globalEpochCmd)
	if err != nil {
		return "", err
	}
	roleEpoch, err := parseEpoch(roleEpochCmd)
	if err != nil {
		return "", err
	}
	return s.prefix + ":" + buildRolePermissionCacheKey(globalEpoch, roleEpoch, roleName), nil
}

func parseEpoch(cmd *redis.StringCmd) (uint64, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) || (err == nil && v == "") {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

func (s *RedisRolePermissionCacheStore) globalEpochKey() string {
	return s.prefix + ":epoch:global"
}

func (s *RedisRolePermissionCacheStore) roleEpochKey(roleName string) string {
	return s.prefix + ":epoch:role:" + normalizeToken(roleName)
}
