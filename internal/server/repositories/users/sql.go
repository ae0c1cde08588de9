package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/dbx"
	"github.com/dmitrijs2005/rtcauth/internal/server/models"
)

// SQLRepository implements Repository over dbx.DBTX for Postgres and SQLite.
// Timestamps are stored as unix seconds.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.Postgres}
}

func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, dialect: dbx.SQLite}
}

const selectUser = `SELECT user_id, phone, display_name, created_at, updated_at, last_login_at
		 FROM users
		 `

func (r *SQLRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := selectUser + `WHERE phone = $1 AND is_active`
	return r.getOne(ctx, query, phone)
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := selectUser + `WHERE user_id = $1 AND is_active`
	return r.getOne(ctx, query, id)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                           models.User
		created, updated, lastLogin int64
	)
	if err := row.Scan(&u.ID, &u.Phone, &u.DisplayName, &created, &updated, &lastLogin); err != nil {
		return nil, err
	}
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updated)
	u.LastLoginAt = fromUnix(lastLogin)
	return &u, nil
}

func (r *SQLRepository) Create(ctx context.Context, phone, displayName string, createdAt time.Time) (*models.User, error) {
	query :=
		`INSERT INTO users (user_id, phone, display_name, created_at, updated_at, last_login_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (phone) DO NOTHING
		 RETURNING user_id`

	ts := createdAt.Unix()
	u := &models.User{
		Phone:       phone,
		DisplayName: displayName,
		CreatedAt:   fromUnix(ts),
		UpdatedAt:   fromUnix(ts),
		LastLoginAt: fromUnix(ts),
	}

	err := r.db.QueryRowContext(ctx, dbx.Rebind(r.dialect, query),
		newUserID(), phone, displayName, ts, ts, ts).Scan(&u.ID)
	if err != nil {
		// DO NOTHING returns no row when the phone already exists
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *SQLRepository) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	query :=
		`UPDATE users SET last_login_at = $1, updated_at = $2
		 WHERE user_id = $3 AND is_active`

	return r.updateOne(ctx, query, at.Unix(), at.Unix(), userID)
}

func (r *SQLRepository) Rename(ctx context.Context, userID, displayName string, at time.Time) (*models.User, error) {
	query :=
		`UPDATE users SET display_name = $1, updated_at = $2
		 WHERE user_id = $3 AND is_active
		 RETURNING user_id, phone, display_name, created_at, updated_at, last_login_at`

	return r.getOne(ctx, query, displayName, at.Unix(), userID)
}

func (r *SQLRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, dbx.Rebind(r.dialect, query), args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func fromUnix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
