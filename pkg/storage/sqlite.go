// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage opens the SQLite databases shared by the credential and
// conversation stores.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jllopis/neurosync/pkg/errors"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite file at path with foreign keys enforced. SQLite
// allows one writer, so the pool is capped at a single connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "database path is required", nil)
	}
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, WrapError(err, "open")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, WrapError(err, "ping")
	}
	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Migrate runs schema statements in order. Statements must be idempotent.
func Migrate(ctx context.Context, db *sql.DB, stmts []string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return WrapError(err, "schema")
		}
	}
	return nil
}

// WithTx runs fn in a transaction, committing when it returns nil.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return WrapError(err, "begin")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return WrapError(err, "commit")
	}
	return nil
}

// WrapError wraps a database error with the failed operation.
func WrapError(err error, op string) *errors.Error {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeStorageError, "storage "+op+" failed", err).
		WithContext("operation", op)
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure on
// column, given as "table.column". An empty column matches any.
func IsUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return column == "" || strings.Contains(msg, column)
}

// Timestamp converts t to the stored representation, unix nanoseconds UTC.
func Timestamp(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// Time converts a stored timestamp back. Zero maps to the zero time.
func Time(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
