package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Config holds database connection configuration.
type Config struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ConnString renders cfg as a postgres URL with pool settings.
func (cfg Config) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	if cfg.MaxOpenConns > 0 {
		q.Set("pool_max_conns", fmt.Sprint(cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns > 0 {
		q.Set("pool_min_conns", fmt.Sprint(cfg.MaxIdleConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		q.Set("pool_max_conn_lifetime", cfg.ConnMaxLifetime.String())
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewPool creates a PostgreSQL connection pool and verifies it with a ping.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	return NewPoolFromURL(ctx, cfg.ConnString())
}

// NewPoolFromURL is NewPool for an already rendered connection string.
func NewPoolFromURL(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Migrations lists the embedded migration files in execution order.
func Migrations() ([]string, error) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// RunMigrations executes every embedded migration in file-name order.
// Migrations are written to be idempotent.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	migrations, err := Migrations()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		log.Info("Running migration", "file", migration)

		sqlBytes, err := migrationsFS.ReadFile(migration)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", migration, err)
		}

		if _, err := pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s: %w", migration, err)
		}

		log.Info("Migration completed", "file", migration)
	}

	return nil
}

// Checker reports database reachability for health checks.
type Checker struct {
	pool *pgxpool.Pool
}

// NewChecker wraps pool for health checks.
func NewChecker(pool *pgxpool.Pool) *Checker {
	return &Checker{pool: pool}
}

// Name identifies the dependency in health responses.
func (c *Checker) Name() string {
	return "postgres"
}

// Check pings the database.
func (c *Checker) Check(ctx context.Context) error {
	return c.pool.Ping(ctx)
}
