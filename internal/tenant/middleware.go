// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package tenant

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nimbuspay/ledger-core/pkg/apperr"
	"github.com/nimbuspay/ledger-core/pkg/httpx"
)

// HeaderName is the request header every tenant-scoped entrypoint reads.
const HeaderName = "X-Tenant-Id"

// Middleware parses HeaderName, attaches the resulting Context to the
// request's context.Context, and rejects the request with 400 when the
// header is absent or malformed. Entrypoints that are explicitly
// tenant-less (health checks) must not mount this middleware.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(HeaderName)
		if raw == "" {
			return httpx.WithError(c, apperr.Validation("missing required header %s", HeaderName))
		}

		tc, err := Parse(raw)
		if err != nil {
			return httpx.WithError(c, err)
		}

		c.SetUserContext(WithContext(c.UserContext(), tc))

		return c.Next()
	}
}

// FromFiberCtx returns the Context attached to a request by Middleware.
func FromFiberCtx(c *fiber.Ctx) (Context, bool) {
	return FromContext(c.UserContext())
}
