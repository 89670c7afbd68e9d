package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("repository: not found")

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateDriveSessions,
		migrationCreateStrategyRuns,
		migrationCreateStrategySteps,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// notFound 将 pgx.ErrNoRows 转为 ErrNotFound
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// 数据库迁移 SQL
const migrationCreateDriveSessions = `
CREATE TABLE IF NOT EXISTS drive_sessions (
    id BIGSERIAL PRIMARY KEY,
    algorithm VARCHAR(16) NOT NULL,
    terrain VARCHAR(16) NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    capacity_kwh DOUBLE PRECISION NOT NULL,
    start_charge_kwh DOUBLE PRECISION NOT NULL,
    end_charge_kwh DOUBLE PRECISION,
    distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    strategy_count INTEGER NOT NULL DEFAULT 0,
    steps_executed INTEGER NOT NULL DEFAULT 0,
    steps_skipped INTEGER NOT NULL DEFAULT 0,
    seed BIGINT NOT NULL DEFAULT 0,
    start_time TIMESTAMPTZ NOT NULL,
    end_time TIMESTAMPTZ,
    stop_reason VARCHAR(64),
    end_battery_percent DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_drive_sessions_start_time ON drive_sessions(start_time DESC);
`

const migrationCreateStrategyRuns = `
CREATE TABLE IF NOT EXISTS strategy_runs (
    id BIGSERIAL PRIMARY KEY,
    session_id BIGINT REFERENCES drive_sessions(id) ON DELETE CASCADE,
    sequence INTEGER NOT NULL DEFAULT 0,
    algorithm VARCHAR(16) NOT NULL,
    terrain VARCHAR(16) NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    budget_kwh DOUBLE PRECISION NOT NULL,
    distance_km DOUBLE PRECISION NOT NULL,
    energy_kwh DOUBLE PRECISION NOT NULL,
    params JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_strategy_runs_session_id ON strategy_runs(session_id, sequence);
CREATE INDEX IF NOT EXISTS idx_strategy_runs_created_at ON strategy_runs(created_at DESC);
`

const migrationCreateStrategySteps = `
CREATE TABLE IF NOT EXISTS strategy_steps (
    run_id BIGINT NOT NULL REFERENCES strategy_runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    speed DOUBLE PRECISION NOT NULL,
    mode VARCHAR(16) NOT NULL,
    distance_km DOUBLE PRECISION NOT NULL,
    energy_kwh DOUBLE PRECISION NOT NULL,
    executed BOOLEAN NOT NULL DEFAULT FALSE,
    PRIMARY KEY (run_id, position)
);
`
