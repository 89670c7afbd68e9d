package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/ecodrive/internal/models"
)

// RunRepository 策略求解记录仓库
type RunRepository struct {
	db *DB
}

// NewRunRepository 创建策略仓库
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, session_id, sequence, algorithm, terrain, temperature,
	budget_kwh, distance_km, energy_kwh, params, created_at`

// Create 在一个事务里写入策略及其所有步骤
func (r *RunRepository) Create(ctx context.Context, run *models.StrategyRun) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Commit 之后 Rollback 不生效
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO strategy_runs (session_id, sequence, algorithm, terrain, temperature, budget_kwh, distance_km, energy_kwh, params)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err = tx.QueryRow(ctx, query,
		run.SessionID,
		run.Sequence,
		string(run.Algorithm),
		run.Terrain.String(),
		run.Temperature,
		run.BudgetKwh,
		run.DistanceKm,
		run.EnergyKwh,
		run.Params,
	).Scan(&run.ID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert strategy run: %w", err)
	}

	if len(run.Steps) > 0 {
		batch := &pgx.Batch{}
		for i := range run.Steps {
			step := &run.Steps[i]
			step.RunID = run.ID
			batch.Queue(`
				INSERT INTO strategy_steps (run_id, position, speed, mode, distance_km, energy_kwh, executed)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				step.RunID, step.Position, step.Speed, step.Mode.String(),
				step.DistanceKm, step.EnergyKwh, step.Executed)
		}
		br := tx.SendBatch(ctx, batch)
		for range run.Steps {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert strategy step: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close step batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit strategy run: %w", err)
	}
	return nil
}

// GetByID 获取策略及其步骤
func (r *RunRepository) GetByID(ctx context.Context, id int64) (*models.StrategyRun, error) {
	query := `SELECT ` + runColumns + ` FROM strategy_runs WHERE id = $1`
	run, err := scanRun(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get strategy run by id: %w", notFound(err))
	}

	steps, err := r.listSteps(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.Steps = steps
	return run, nil
}

// ListBySession 获取会话内的全部策略，按顺序排列 (不含步骤)
func (r *RunRepository) ListBySession(ctx context.Context, sessionID int64) ([]*models.StrategyRun, error) {
	query := `SELECT ` + runColumns + ` FROM strategy_runs WHERE session_id = $1 ORDER BY sequence`
	rows, err := r.db.Pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list strategy runs by session: %w", err)
	}
	return collectRuns(rows)
}

// List 获取策略列表，按创建时间倒序 (不含步骤)
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*models.StrategyRun, error) {
	query := `SELECT ` + runColumns + ` FROM strategy_runs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list strategy runs: %w", err)
	}
	return collectRuns(rows)
}

// Count 策略总数
func (r *RunRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM strategy_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count strategy runs: %w", err)
	}
	return count, nil
}

func (r *RunRepository) listSteps(ctx context.Context, runID int64) ([]models.StrategyStep, error) {
	query := `
		SELECT run_id, position, speed, mode, distance_km, energy_kwh, executed
		FROM strategy_steps WHERE run_id = $1 ORDER BY position
	`
	rows, err := r.db.Pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list strategy steps: %w", err)
	}
	defer rows.Close()

	steps := make([]models.StrategyStep, 0)
	for rows.Next() {
		var (
			step models.StrategyStep
			mode string
		)
		if err := rows.Scan(&step.RunID, &step.Position, &step.Speed, &mode,
			&step.DistanceKm, &step.EnergyKwh, &step.Executed); err != nil {
			return nil, fmt.Errorf("scan strategy step: %w", err)
		}
		if step.Mode, err = models.ParseDrivingMode(mode); err != nil {
			return nil, fmt.Errorf("scan strategy step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func collectRuns(rows pgx.Rows) ([]*models.StrategyRun, error) {
	defer rows.Close()

	runs := make([]*models.StrategyRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*models.StrategyRun, error) {
	var (
		run       models.StrategyRun
		algorithm string
		terrain   string
	)
	err := row.Scan(
		&run.ID,
		&run.SessionID,
		&run.Sequence,
		&algorithm,
		&terrain,
		&run.Temperature,
		&run.BudgetKwh,
		&run.DistanceKm,
		&run.EnergyKwh,
		&run.Params,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Algorithm = models.Algorithm(algorithm)
	if run.Terrain, err = models.ParseTerrain(terrain); err != nil {
		return nil, err
	}
	return &run, nil
}
