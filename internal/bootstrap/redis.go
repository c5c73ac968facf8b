// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package bootstrap

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

// connectRedis parses dsn and pings the resulting client before
// handing it out.
func connectRedis(ctx context.Context, dsn string, logger mlog.Logger) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: parse redis dsn: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bootstrap: ping redis: %w", err)
	}

	logger.Infof("bootstrap: connected to redis")

	return client, nil
}
