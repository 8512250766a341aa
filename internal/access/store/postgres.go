// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/assetdesk/assetdesk/internal/access"
)

const backendPostgres = "postgres"

// poolIface is the subset of pgxpool.Pool used by PostgresStore, so tests can
// substitute pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps overrides in the user_permission_overrides table,
// one JSONB document per user.
type PostgresStore struct {
	pool poolIface
}

// NewPostgresStore creates a PostgresStore backed by pool.
func NewPostgresStore(pool poolIface) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// LoadOverride implements access.OverrideStore.
func (s *PostgresStore) LoadOverride(ctx context.Context, userID string) (access.Override, bool, error) {
	if err := validateUserID(userID); err != nil {
		return nil, false, err
	}
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT permissions FROM user_permission_overrides WHERE user_id = $1`, userID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("load", userID, err)
	}
	o, err := access.DecodeOverride(raw)
	if err != nil {
		return nil, false, unavailable(backendPostgres, "decode", userID, err)
	}
	return o, true, nil
}

// SaveOverride implements access.OverrideStore.
func (s *PostgresStore) SaveOverride(ctx context.Context, userID string, override access.Override) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	raw, err := access.EncodeOverride(override)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO user_permission_overrides (user_id, permissions, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET permissions = EXCLUDED.permissions, updated_at = EXCLUDED.updated_at
	`, userID, raw)
	if err != nil {
		return s.wrap("save", userID, err)
	}
	return nil
}

// DeleteOverride implements access.OverrideStore.
func (s *PostgresStore) DeleteOverride(ctx context.Context, userID string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM user_permission_overrides WHERE user_id = $1`, userID,
	); err != nil {
		return s.wrap("delete", userID, err)
	}
	return nil
}

// wrap classifies a database error. A missing table means migrations have
// not been applied, which retrying cannot fix.
func (s *PostgresStore) wrap(operation, userID string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return oops.In("store").
			Code(CodeNotMigrated).
			With("backend", backendPostgres).
			With("operation", operation).
			Hint("run `assetdesk migrate up`").
			Wrap(err)
	}
	return unavailable(backendPostgres, operation, userID, err)
}
