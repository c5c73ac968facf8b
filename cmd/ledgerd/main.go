// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nimbuspay/ledger-core/internal/bootstrap"
	"github.com/nimbuspay/ledger-core/pkg/config"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

func main() {
	cfg := config.Load()

	logger, err := mlog.NewZapLogger("info")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "migrations", logger)
	if err != nil {
		logger.Errorf("failed to initialize ledger service: %v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Errorf("ledger service exited with error: %v", err)
		os.Exit(1)
	}
}
