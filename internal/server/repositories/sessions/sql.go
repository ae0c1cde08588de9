package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/clock"
	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/dbx"
)

// SQLRepository keeps sessions in the sessions table. Expiry is stored as
// unix seconds and checked on read; DeleteExpired purges stale rows.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	clock   clock.Clock
}

func NewPostgresRepository(db dbx.DBTX, c clock.Clock) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.Postgres, clock: c}
}

func NewSQLiteRepository(db dbx.DBTX, c clock.Clock) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.SQLite, clock: c}
}

func (r *SQLRepository) Put(ctx context.Context, token, userID string, ttl time.Duration) error {
	query := `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET user_id = excluded.user_id, expires_at = excluded.expires_at
	`
	expires := r.clock.Now().Add(ttl).Unix()
	if _, err := r.db.ExecContext(ctx, dbx.Rebind(r.dialect, query), token, userID, expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, token string) (string, error) {
	query := `
		SELECT user_id
		FROM sessions
		WHERE token = $1 AND expires_at > $2
	`
	var userID string
	err := r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query), token, r.clock.Now().Unix()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrorNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return userID, nil
}

func (r *SQLRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM sessions
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, dbx.Rebind(r.dialect, query), token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) Refresh(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	query := `
		UPDATE sessions SET expires_at = $1
		WHERE token = $2 AND expires_at > $3
	`
	now := r.clock.Now()
	res, err := r.db.ExecContext(ctx, dbx.Rebind(r.dialect, query), now.Add(ttl).Unix(), token, now.Unix())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired removes every session whose expiry has passed and returns
// how many were removed.
func (r *SQLRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM sessions
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, dbx.Rebind(r.dialect, query), r.clock.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
