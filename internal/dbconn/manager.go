// Package dbconn manages pgxpool connections to the source and target
// databases, and wraps connection-class errors in the bounded retry the
// traversal and copy pipeline rely on.
package dbconn

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsmedya/pgrelay/internal/config"
)

// Manager owns pooled connections to the source and target databases.
type Manager struct {
	Source *pgxpool.Pool
	Target *pgxpool.Pool
	cfg    *config.Config
}

// NewManager creates a Manager from configuration. Call Connect before use.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{cfg: cfg}
}

// Connect establishes pooled connections to both source and target.
func (m *Manager) Connect(ctx context.Context) error {
	source, err := connectWithRetry(ctx, m.cfg.Source)
	if err != nil {
		return fmt.Errorf("connect to source database: %w", err)
	}

	target, err := connectWithRetry(ctx, m.cfg.Target)
	if err != nil {
		source.Close()
		return fmt.Errorf("connect to target database: %w", err)
	}

	m.Source = source
	m.Target = target
	return nil
}

// ConnectSource establishes a pooled connection to the source database only,
// for commands that never touch the target (e.g. clone-data --dry-run).
func (m *Manager) ConnectSource(ctx context.Context) error {
	source, err := connectWithRetry(ctx, m.cfg.Source)
	if err != nil {
		return fmt.Errorf("connect to source database: %w", err)
	}
	m.Source = source
	return nil
}

func connectWithRetry(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	err = WithRetry(ctx, func() error {
		pool, err = connect(ctx, cfg)
		if err != nil {
			return err
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			pool = nil
			return pingErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConnections)
	}
	poolCfg.MaxConnLifetime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// Close releases both connection pools.
func (m *Manager) Close() {
	if m.Target != nil {
		m.Target.Close()
	}
	if m.Source != nil {
		m.Source.Close()
	}
}

// Ping verifies both connections are alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Source != nil {
		if err := m.Source.Ping(ctx); err != nil {
			return fmt.Errorf("source ping failed: %w", err)
		}
	}
	if m.Target != nil {
		if err := m.Target.Ping(ctx); err != nil {
			return fmt.Errorf("target ping failed: %w", err)
		}
	}
	return nil
}
