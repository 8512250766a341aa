// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/assetdesk/assetdesk/internal/access"
)

const (
	backendRedis       = "redis"
	defaultRedisPrefix = "assetdesk:permissions"
)

// RedisStore keeps each user's override document under "<prefix>:<userID>".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix uses
// "assetdesk:permissions".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":" + userID
}

// LoadOverride implements access.OverrideStore.
func (s *RedisStore) LoadOverride(ctx context.Context, userID string) (access.Override, bool, error) {
	if err := validateUserID(userID); err != nil {
		return nil, false, err
	}
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(backendRedis, "load", userID, err)
	}
	o, err := access.DecodeOverride(raw)
	if err != nil {
		return nil, false, unavailable(backendRedis, "decode", userID, err)
	}
	return o, true, nil
}

// SaveOverride implements access.OverrideStore.
func (s *RedisStore) SaveOverride(ctx context.Context, userID string, override access.Override) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	raw, err := access.EncodeOverride(override)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(userID), raw, 0).Err(); err != nil {
		return unavailable(backendRedis, "save", userID, err)
	}
	return nil
}

// DeleteOverride implements access.OverrideStore.
func (s *RedisStore) DeleteOverride(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return unavailable(backendRedis, "delete", userID, err)
	}
	return nil
}
