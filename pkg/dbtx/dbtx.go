// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

// Package dbtx threads a *sql.Tx through a context.Context so storage
// methods can be written once and run either standalone or nested inside
// a caller's transaction, without an explicit executor parameter.
package dbtx

import (
	"context"
	"database/sql"
)

type txKey struct{}

// ContextWithTx returns a copy of ctx carrying tx.
func ContextWithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}

	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the *sql.Tx carried by ctx, or nil.
func TxFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// Executor is the subset of *sql.DB / *sql.Tx every repository needs.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetExecutor returns the transaction in ctx if present, else db.
func GetExecutor(ctx context.Context, db *sql.DB) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}

	return db
}

// RunInTransaction begins a transaction on db, runs fn with the
// transaction attached to ctx, and commits on success. fn's error (or a
// panic) rolls the transaction back; panics are re-raised after rollback.
func RunInTransaction(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	return RunInTransactionWithOptions(ctx, db, nil, fn)
}

// RunInTransactionWithOptions is RunInTransaction with explicit
// *sql.TxOptions, so callers that need serializable isolation (the
// ledger store's apply-transfer routine) don't have to duplicate the
// begin/commit/rollback bookkeeping.
func RunInTransactionWithOptions(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ContextWithTx(ctx, tx)); err != nil {
		return err
	}

	err = tx.Commit()

	return err
}
