// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"
)

// NotifyChannel is the PostgreSQL channel the override table's triggers
// publish changed user ids on.
const NotifyChannel = "user_permission_overrides_changed"

// PgListener is a Listener over PostgreSQL LISTEN/NOTIFY. Each Listen call
// holds one dedicated connection outside any pool.
type PgListener struct {
	connStr string
}

// NewPgListener creates a PgListener for the database at connStr.
func NewPgListener(connStr string) *PgListener {
	return &PgListener{connStr: connStr}
}

// Listen implements Listener.
func (l *PgListener) Listen(ctx context.Context) (<-chan string, error) {
	conn, err := pgx.Connect(ctx, l.connStr)
	if err != nil {
		return nil, oops.In("store").Code(CodeStoreUnavailable).With("backend", "postgres").
			With("operation", "listen").Wrap(err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, oops.In("store").Code(CodeStoreUnavailable).With("backend", "postgres").
			With("operation", "listen").Wrap(err)
	}

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer func() { _ = conn.Close(context.Background()) }()
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				return
			}
			select {
			case ch <- n.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
