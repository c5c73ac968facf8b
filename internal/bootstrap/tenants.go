// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package bootstrap

import (
	"context"
	"database/sql"
)

// postgresTenantLister implements reconcile.TenantLister by reading the
// distinct tenants currently known to the accounts table. A fixed
// deployment could instead hold a small static list; querying the table
// keeps the healer honest about which tenants actually exist.
type postgresTenantLister struct {
	db *sql.DB
}

func newPostgresTenantLister(db *sql.DB) *postgresTenantLister {
	return &postgresTenantLister{db: db}
}

func (l *postgresTenantLister) Tenants(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM accounts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string

	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}

		tenants = append(tenants, t)
	}

	return tenants, rows.Err()
}
