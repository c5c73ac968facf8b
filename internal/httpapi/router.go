// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package httpapi wires the service's HTTP/RPC surface onto the core
// packages: one file per resource group, a thin handler that
// parses/validates the request and delegates straight to a core
// package.
package httpapi

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/nimbuspay/ledger-core/internal/offline"
	"github.com/nimbuspay/ledger-core/internal/realtime"
	"github.com/nimbuspay/ledger-core/internal/tenant"
	"github.com/nimbuspay/ledger-core/internal/transfer"
	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/httpx"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
)

// Deps bundles every dependency the router needs. internal/bootstrap
// constructs one of these once every component is wired.
type Deps struct {
	Logger   mlog.Logger
	Transfer *transfer.Handler
	Balance  realtime.BalanceReader
	Acceptor *offline.Acceptor
	Syncer   *offline.Syncer
	Hub      *realtime.Hub

	// OfflineMaxPayloadBytes is OFFLINE_MAX_PAYLOAD_BYTES (pkg/config),
	// the same ceiling the offline HmacVerifier enforces, applied before
	// the body is even parsed so an oversized upload is rejected cheaply.
	OfflineMaxPayloadBytes int
	// OfflineSyncMaxPerCall is OFFLINE_SYNC_MAX_PER_CALL (pkg/config),
	// the upper bound on a single /offline/sync call's batch size.
	OfflineSyncMaxPerCall int
}

// Register mounts every route onto app.
func Register(app *fiber.App, deps Deps) {
	h := &handlers{deps: deps}

	ledger := app.Group("/ledger", tenant.Middleware())
	ledger.Post("/fast-transfer", h.postFastTransfer)
	ledger.Get("/accounts/:id/balance", h.getAccountBalance)

	off := app.Group("/offline", tenant.Middleware())
	off.Post("/ops", h.postOfflineOp)
	off.Post("/sync", h.postOfflineSync)

	// The balance stream is tenant-owned data, not a tenant-less
	// entrypoint: the handshake carries the same header every other
	// route requires, and the resolved tenant rides the connection's
	// Locals into the websocket handler.
	events := app.Group("/events", tenant.Middleware())
	events.Use("/balance", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		tc, ok := tenant.FromFiberCtx(c)
		if !ok {
			return httpx.WithError(c, apperr.TenantIsolationViolation("balance stream reached upgrade without tenant context"))
		}

		c.Locals("tenant", tc)

		return c.Next()
	})
	events.Get("/balance", websocket.New(h.serveBalanceEvents))
}

type handlers struct {
	deps Deps
}
