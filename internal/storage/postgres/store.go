package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// PoolConfig — настройки пула подключений к базе заказов.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultPoolConfig рассчитан на один инстанс order-service.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// migrationPool — одно подключение на время прогона миграций.
func migrationPool() PoolConfig {
	return PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1, PingTimeout: DefaultPoolConfig().PingTimeout}
}

// Option меняет настройки пула при Open.
type Option func(*PoolConfig)

// WithPool заменяет настройки пула целиком.
func WithPool(pool PoolConfig) Option {
	return func(p *PoolConfig) { *p = pool }
}

// Store — пул подключений OrderStore и DSN, по которому мигратор
// открывает собственное подключение.
type Store struct {
	db   *sql.DB
	dsn  string
	pool PoolConfig
}

// Open открывает пул и пингует базу.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	pool := DefaultPoolConfig()
	for _, opt := range opts {
		opt(&pool)
	}

	db, err := openDB(dsn, pool)
	if err != nil {
		return nil, err
	}
	if err := ping(ctx, db, pool.PingTimeout); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn, pool: pool}, nil
}

func openDB(dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	return db, nil
}

func ping(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// DB отдаёт пул для интеграционных тестов и ручных запросов.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping используется readiness-проверкой.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	return ping(ctx, s.db, s.pool.PingTimeout)
}

// EnsureSchema доводит схему orders/order_items до последней миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
