package users

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/server/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newSQLiteRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.UpContext(context.Background(), db, migrations.SQLiteDir))

	return NewSQLiteRepository(db)
}

func TestSQLite_Lifecycle(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	created := time.Unix(1_700_000_000, 0)

	u, err := repo.Create(ctx, "+8613800000000", "+8613800000000", created)
	require.NoError(t, err)
	assert.Len(t, u.ID, 32)

	_, err = repo.Create(ctx, "+8613800000000", "dup", created)
	require.ErrorIs(t, err, common.ErrConflict)

	require.NoError(t, repo.TouchLogin(ctx, u.ID, created.Add(time.Hour)))
	renamed, err := repo.Rename(ctx, u.ID, "Alice", created.Add(2*time.Hour))
	require.NoError(t, err)

	got, err := repo.GetByPhone(ctx, "+8613800000000")
	require.NoError(t, err)
	assert.Equal(t, got, renamed)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Equal(t, created.Unix(), got.CreatedAt.Unix())
	assert.Equal(t, created.Add(time.Hour).Unix(), got.LastLoginAt.Unix())
	assert.Equal(t, created.Add(2*time.Hour).Unix(), got.UpdatedAt.Unix())

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, got, byID)

	_, err = repo.Rename(ctx, "ghost", "x", created)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, repo.TouchLogin(ctx, "ghost", created), common.ErrorNotFound)
	_, err = repo.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSQLite_InactiveUserIsNotUpdated(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()
	created := time.Unix(1_700_000_000, 0)

	u, err := repo.Create(ctx, "+8613800000001", "+8613800000001", created)
	require.NoError(t, err)

	_, err = repo.db.ExecContext(ctx, `UPDATE users SET is_active = 0 WHERE user_id = ?`, u.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.TouchLogin(ctx, u.ID, created.Add(time.Hour)), common.ErrorNotFound)
	_, err = repo.Rename(ctx, u.ID, "Alice", created.Add(time.Hour))
	assert.ErrorIs(t, err, common.ErrorNotFound)

	var name string
	var updated int64
	require.NoError(t, repo.db.QueryRowContext(ctx,
		`SELECT display_name, updated_at FROM users WHERE user_id = ?`, u.ID).Scan(&name, &updated))
	assert.Equal(t, "+8613800000001", name)
	assert.Equal(t, created.Unix(), updated)
}

func TestSQLite_ConcurrentCreateSinglePhone(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, "+8613900000000", "+8613900000000", time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, common.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}
