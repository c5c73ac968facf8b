// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package offline

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisDeviceLock implements DeviceLock with a Redis SETNX lock keyed
// by device id.
type RedisDeviceLock struct {
	client *goredis.Client
}

// NewRedisDeviceLock returns a DeviceLock backed by client.
func NewRedisDeviceLock(client *goredis.Client) *RedisDeviceLock {
	return &RedisDeviceLock{client: client}
}

func lockKey(deviceID string) string {
	return "offline:sync-lock:" + deviceID
}

// Acquire takes the lock via SETNX with a TTL safety net, so a crashed
// sync call cannot hold the lock forever.
func (l *RedisDeviceLock) Acquire(ctx context.Context, deviceID string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(deviceID), "1", ttl).Result()
}

// Release gives up the lock.
func (l *RedisDeviceLock) Release(ctx context.Context, deviceID string) error {
	return l.client.Del(ctx, lockKey(deviceID)).Err()
}
