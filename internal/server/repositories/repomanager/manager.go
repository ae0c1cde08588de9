// Package repomanager opens the identity and session stores selected by
// configuration, runs schema migrations for SQL backends (via goose) and
// owns the underlying connections.
package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/rtcauth/internal/clock"
	"github.com/dmitrijs2005/rtcauth/internal/dbx"
	"github.com/dmitrijs2005/rtcauth/internal/logging"
	"github.com/dmitrijs2005/rtcauth/internal/server/config"
	"github.com/dmitrijs2005/rtcauth/internal/server/migrations"
	"github.com/dmitrijs2005/rtcauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/rtcauth/internal/server/repositories/users"
)

// Manager holds the opened stores. Close releases every connection it
// opened, once.
type Manager struct {
	users    users.Repository
	sessions sessions.Repository

	dbs   map[dbx.Dialect]*sql.DB
	redis redis.UniversalClient
}

// openDB is a seam for tests; it mirrors sql.Open.
var openDB = sql.Open

// newRedisClient is a seam for tests.
var newRedisClient = func(opts *redis.UniversalOptions) redis.UniversalClient {
	return redis.NewUniversalClient(opts)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open builds the stores named by cfg.IdentityBackend and cfg.SessionBackend.
// SQL backends of the same dialect share one connection pool and are
// migrated before use.
func Open(ctx context.Context, cfg *config.Config, clk clock.Clock, log logging.Logger) (*Manager, error) {
	m := &Manager{dbs: make(map[dbx.Dialect]*sql.DB)}

	if err := m.openUsers(ctx, cfg); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("identity store: %w", err)
	}
	if err := m.openSessions(ctx, cfg, clk); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("session store: %w", err)
	}

	log.Info(ctx, "stores ready", "identity", cfg.IdentityBackend, "sessions", cfg.SessionBackend)
	return m, nil
}

func (m *Manager) openUsers(ctx context.Context, cfg *config.Config) error {
	switch cfg.IdentityBackend {
	case config.BackendMemory:
		m.users = users.NewMemoryRepository()
	case config.BackendPostgres:
		db, err := m.sqlDB(ctx, cfg, dbx.Postgres)
		if err != nil {
			return err
		}
		m.users = users.NewPostgresRepository(db)
	case config.BackendSQLite:
		db, err := m.sqlDB(ctx, cfg, dbx.SQLite)
		if err != nil {
			return err
		}
		m.users = users.NewSQLiteRepository(db)
	default:
		return fmt.Errorf("unsupported backend %q", cfg.IdentityBackend)
	}
	return nil
}

func (m *Manager) openSessions(ctx context.Context, cfg *config.Config, clk clock.Clock) error {
	switch cfg.SessionBackend {
	case config.BackendMemory:
		m.sessions = sessions.NewMemoryRepository(clk)
	case config.BackendRedis:
		client := newRedisClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		m.redis = client
		m.sessions = sessions.NewRedisRepository(client)
	case config.BackendPostgres:
		db, err := m.sqlDB(ctx, cfg, dbx.Postgres)
		if err != nil {
			return err
		}
		m.sessions = sessions.NewPostgresRepository(db, clk)
	case config.BackendSQLite:
		db, err := m.sqlDB(ctx, cfg, dbx.SQLite)
		if err != nil {
			return err
		}
		m.sessions = sessions.NewSQLiteRepository(db, clk)
	default:
		return fmt.Errorf("unsupported backend %q", cfg.SessionBackend)
	}
	return nil
}

// sqlDB returns the pool for d, opening and migrating it on first use.
func (m *Manager) sqlDB(ctx context.Context, cfg *config.Config, d dbx.Dialect) (*sql.DB, error) {
	if db, ok := m.dbs[d]; ok {
		return db, nil
	}

	var (
		db  *sql.DB
		err error
	)
	switch d {
	case dbx.SQLite:
		db, err = openDB("sqlite", SQLiteDSN(cfg.SQLitePath))
		if err == nil {
			// modernc serialises writers per connection
			db.SetMaxOpenConns(1)
		}
	default:
		db, err = openDB("pgx", cfg.DatabaseDSN)
	}
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := RunMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	m.dbs[d] = db
	return db, nil
}

// SQLiteDSN adds the pragmas rtcauth relies on to a database file path.
func SQLiteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// RunMigrations sets up goose with the embedded migrations for dialect d and
// runs them against db.
func RunMigrations(ctx context.Context, db *sql.DB, d dbx.Dialect) error {
	goose.SetBaseFS(migrations.Migrations)

	dialect, dir := "pgx", migrations.PostgresDir
	if d == dbx.SQLite {
		dialect, dir = "sqlite3", migrations.SQLiteDir
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, dir)
}

// Users returns the identity store.
func (m *Manager) Users() users.Repository { return m.users }

// Sessions returns the session store.
func (m *Manager) Sessions() sessions.Repository { return m.sessions }

// Sweeper returns the session store's purge hook when the backend needs one.
func (m *Manager) Sweeper() (sessions.Sweeper, bool) {
	s, ok := m.sessions.(sessions.Sweeper)
	return s, ok
}

// Close releases all connections. It is safe to call more than once.
func (m *Manager) Close() error {
	var errs []error
	for d, db := range m.dbs {
		errs = append(errs, db.Close())
		delete(m.dbs, d)
	}
	if m.redis != nil {
		errs = append(errs, m.redis.Close())
		m.redis = nil
	}
	return errors.Join(errs...)
}
