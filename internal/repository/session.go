package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/ecodrive/internal/models"
)

// SessionRepository 驾驶会话数据仓库
type SessionRepository struct {
	db *DB
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, algorithm, terrain, temperature, capacity_kwh, start_charge_kwh, end_charge_kwh,
	distance_km, strategy_count, steps_executed, steps_skipped, seed, start_time, end_time,
	COALESCE(stop_reason, ''), end_battery_percent`

// Create 创建会话
func (r *SessionRepository) Create(ctx context.Context, session *models.DriveSession) error {
	query := `
		INSERT INTO drive_sessions (algorithm, terrain, temperature, capacity_kwh, start_charge_kwh, seed, start_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		string(session.Algorithm),
		session.Environment.Terrain.String(),
		session.Environment.Temperature,
		session.CapacityKwh,
		session.StartChargeKwh,
		seedToDB(session.Seed),
		session.StartTime,
	).Scan(&session.ID)

	if err != nil {
		return fmt.Errorf("insert drive session: %w", err)
	}
	return nil
}

// Complete 结束会话
func (r *SessionRepository) Complete(ctx context.Context, session *models.DriveSession) error {
	query := `
		UPDATE drive_sessions SET
			end_charge_kwh = $1,
			distance_km = $2,
			strategy_count = $3,
			steps_executed = $4,
			steps_skipped = $5,
			end_time = $6,
			stop_reason = $7,
			end_battery_percent = $8
		WHERE id = $9
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		session.EndChargeKwh,
		session.DistanceKm,
		session.StrategyCount,
		session.StepsExecuted,
		session.StepsSkipped,
		session.EndTime,
		session.StopReason,
		session.EndBatteryPercent,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("complete drive session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("complete drive session %d: %w", session.ID, ErrNotFound)
	}
	return nil
}

// GetByID 获取会话
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*models.DriveSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM drive_sessions WHERE id = $1`
	session, err := scanSession(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get drive session by id: %w", notFound(err))
	}
	return session, nil
}

// List 获取会话列表，按开始时间倒序
func (r *SessionRepository) List(ctx context.Context, limit, offset int) ([]*models.DriveSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM drive_sessions ORDER BY start_time DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list drive sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.DriveSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan drive session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Count 会话总数
func (r *SessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM drive_sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count drive sessions: %w", err)
	}
	return count, nil
}

func scanSession(row pgx.Row) (*models.DriveSession, error) {
	var (
		session   models.DriveSession
		algorithm string
		terrain   string
		seed      int64
	)
	err := row.Scan(
		&session.ID,
		&algorithm,
		&terrain,
		&session.Environment.Temperature,
		&session.CapacityKwh,
		&session.StartChargeKwh,
		&session.EndChargeKwh,
		&session.DistanceKm,
		&session.StrategyCount,
		&session.StepsExecuted,
		&session.StepsSkipped,
		&seed,
		&session.StartTime,
		&session.EndTime,
		&session.StopReason,
		&session.EndBatteryPercent,
	)
	if err != nil {
		return nil, err
	}

	session.Algorithm = models.Algorithm(algorithm)
	session.Seed = seedFromDB(seed)
	if session.Environment.Terrain, err = models.ParseTerrain(terrain); err != nil {
		return nil, err
	}
	return &session, nil
}

// seedToDB 种子按位存入 BIGINT，大于 MaxInt64 的种子存为负数
func seedToDB(seed uint64) int64 {
	return int64(seed)
}

func seedFromDB(v int64) uint64 {
	return uint64(v)
}
