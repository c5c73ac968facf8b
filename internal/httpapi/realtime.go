// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package httpapi

import (
	"github.com/gofiber/contrib/websocket"

	"github.com/nimbuspay/ledger-core/internal/tenant"
)

// serveBalanceEvents hands the upgraded /events/balance connection to
// the realtime hub, scoped to the tenant resolved at the handshake. A
// connection that somehow arrives without one is dropped rather than
// served tenant-less.
func (h *handlers) serveBalanceEvents(conn *websocket.Conn) {
	tc, ok := conn.Locals("tenant").(tenant.Context)
	if !ok {
		h.deps.Logger.Errorf("realtime: websocket connection arrived without tenant context, closing")
		_ = conn.Close()

		return
	}

	h.deps.Hub.Serve(conn, tc.ID.String(), h.deps.Logger)
}
