package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/langchou/ecodrive/internal/config"
	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/optimizer"
	"github.com/langchou/ecodrive/internal/report"
)

func testConfig() *config.Config {
	return &config.Config{
		BatteryCapacityKwh:  38.4,
		BatteryFloorRatio:   0.1,
		StrategyBudgetRatio: 0.1,
		StepDuration:        time.Minute,
		MaxStrategies:       500,
		DPCandidates:        12,
		DPEnergyResolution:  optimizer.DefaultEnergyResolution,
		GAChromosomeLength:  20,
		GAPopulationSize:    30,
		GAGenerations:       5,
		GAMutationRate:      0.1,
		RandomSeed:          42,
	}
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs []*models.StrategyRun
	err  error
}

func (f *fakeRunStore) Create(_ context.Context, run *models.StrategyRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, run)
	return nil
}

type fakeSessionStore struct {
	mu        sync.Mutex
	created   []models.DriveSession
	completed []models.DriveSession
}

func (f *fakeSessionStore) Create(_ context.Context, session *models.DriveSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.ID = int64(100 + len(f.created))
	f.created = append(f.created, *session)
	return nil
}

func (f *fakeSessionStore) Complete(_ context.Context, session *models.DriveSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, *session)
	return nil
}

type eventRecorder struct {
	report.Nop
	mu          sync.Mutex
	sessions    []report.SessionEvent
	strategies  []report.StrategyEvent
	generations []report.GenerationEvent
	skipped     int
}

func (r *eventRecorder) ReportSession(e report.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, e)
}

func (r *eventRecorder) ReportStrategy(e report.StrategyEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies = append(r.strategies, e)
}

func (r *eventRecorder) ReportGeneration(e report.GenerationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = append(r.generations, e)
}

func (r *eventRecorder) ReportStep(e report.StepEvent) {
	if !e.Executed {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
	}
}

func intPtr(v int) *int { return &v }

func TestRunSession_DrivesUntilBatteryFloor(t *testing.T) {
	for _, alg := range []models.Algorithm{models.AlgorithmDynamic, models.AlgorithmGenetic} {
		t.Run(string(alg), func(t *testing.T) {
			runs := &fakeRunStore{}
			sessions := &fakeSessionStore{}
			rec := &eventRecorder{}
			svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), runs, sessions, rec)

			session, err := svc.RunSession(context.Background(), SessionRequest{
				Algorithm:   alg,
				Environment: models.Environment{Terrain: models.TerrainFlat, Temperature: 35},
			})
			require.NoError(t, err)

			assert.Equal(t, int64(100), session.ID)
			assert.Equal(t, uint64(42), session.Seed)
			assert.Contains(t, []string{StopBatteryFloor, StopNoProgress, StopEmptyPlan}, session.StopReason)
			require.NotNil(t, session.EndChargeKwh)
			require.NotNil(t, session.EndTime)
			assert.Less(t, *session.EndChargeKwh, session.StartChargeKwh)
			assert.Positive(t, session.DistanceKm)
			assert.Positive(t, session.StrategyCount)
			assert.Equal(t, session.StepsSkipped, rec.skipped)

			require.Len(t, runs.runs, session.StrategyCount)
			for i, run := range runs.runs {
				require.NotNil(t, run.SessionID)
				assert.Equal(t, session.ID, *run.SessionID)
				assert.Equal(t, i+1, run.Sequence)
				assert.Equal(t, alg, run.Algorithm)
				assert.Equal(t, "42", run.Params["seed"])
			}

			require.Len(t, sessions.completed, 1)
			assert.Equal(t, session.StopReason, sessions.completed[0].StopReason)

			require.Len(t, rec.sessions, 2)
			assert.False(t, rec.sessions[0].Finished)
			assert.True(t, rec.sessions[1].Finished)
			assert.Len(t, rec.strategies, session.StrategyCount)

			if alg == models.AlgorithmGenetic {
				// 每个策略 generations+1 次评估
				assert.Len(t, rec.generations, session.StrategyCount*6)
			} else {
				assert.Empty(t, rec.generations)
			}
			assert.Empty(t, svc.ActiveSessions())
		})
	}
}

func TestRunSession_Deterministic(t *testing.T) {
	req := SessionRequest{
		Algorithm:   models.AlgorithmDynamic,
		Environment: models.Environment{Terrain: models.TerrainUphill, Temperature: 10},
		Seed:        7,
	}
	a, err := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, nil).RunSession(context.Background(), req)
	require.NoError(t, err)
	b, err := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, nil).RunSession(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.DistanceKm, b.DistanceKm)
	assert.Equal(t, a.StrategyCount, b.StrategyCount)
	assert.Equal(t, a.StepsExecuted, b.StepsExecuted)
	assert.Equal(t, uint64(7), a.Seed)
}

func TestRunSession_MaxStrategies(t *testing.T) {
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, nil)
	session, err := svc.RunSession(context.Background(), SessionRequest{
		Algorithm:     models.AlgorithmDynamic,
		Environment:   models.Environment{Temperature: 20},
		MaxStrategies: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, StopMaxStrategies, session.StopReason)
	assert.Equal(t, 2, session.StrategyCount)
	assert.Equal(t, int64(1), session.ID, "local ids start at 1")
}

func TestRunSession_EmptyPlan(t *testing.T) {
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, nil)
	session, err := svc.RunSession(context.Background(), SessionRequest{
		Algorithm:     models.AlgorithmDynamic,
		PlannerParams: PlannerParams{Candidates: intPtr(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, StopEmptyPlan, session.StopReason)
	assert.Zero(t, session.StrategyCount)
	assert.Equal(t, session.StartChargeKwh, *session.EndChargeKwh)
}

func TestRunSession_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sessions := &fakeSessionStore{}
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, sessions, nil)
	session, err := svc.RunSession(ctx, SessionRequest{Algorithm: models.AlgorithmGenetic})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopCancelled, session.StopReason)
	require.Len(t, sessions.completed, 1, "cancelled sessions are still completed")
}

func TestRunSession_InvalidRequest(t *testing.T) {
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RunSession(ctx, SessionRequest{Algorithm: "annealing"})
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = svc.RunSession(ctx, SessionRequest{Algorithm: models.AlgorithmDynamic, CapacityKwh: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.RunSession(ctx, SessionRequest{Algorithm: models.AlgorithmDynamic, MaxStrategies: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.RunSession(ctx, SessionRequest{
		Algorithm:     models.AlgorithmGenetic,
		PlannerParams: PlannerParams{PopulationSize: intPtr(0)},
	})
	assert.ErrorIs(t, err, optimizer.ErrInvalidConfig)

	_, err = svc.RunSession(ctx, SessionRequest{
		Algorithm:     models.AlgorithmDynamic,
		PlannerParams: PlannerParams{Candidates: intPtr(-3)},
	})
	assert.ErrorIs(t, err, optimizer.ErrInvalidConfig)

	_, err = svc.RunSession(ctx, SessionRequest{
		Algorithm:   models.AlgorithmDynamic,
		Environment: models.Environment{Terrain: models.Terrain(9)},
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, svc.ActiveSessions())
}

func TestRunSession_RunStoreFailureDoesNotStopSession(t *testing.T) {
	runs := &fakeRunStore{err: errors.New("disk full")}
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), runs, nil, nil)
	session, err := svc.RunSession(context.Background(), SessionRequest{
		Algorithm:     models.AlgorithmDynamic,
		MaxStrategies: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, session.StrategyCount)
}

func TestStartSession_Background(t *testing.T) {
	rec := &eventRecorder{}
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, rec)

	started, err := svc.StartSession(SessionRequest{Algorithm: models.AlgorithmDynamic})
	require.NoError(t, err)
	assert.Equal(t, int64(1), started.ID)
	assert.Nil(t, started.EndTime)

	svc.Stop()
	assert.Empty(t, svc.ActiveSessions())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.sessions, 2)
	assert.True(t, rec.sessions[1].Finished)

	_, err = svc.StartSession(SessionRequest{Algorithm: models.AlgorithmDynamic})
	assert.ErrorIs(t, err, ErrServiceStopped)
}

func TestStartSession_RacingStop(t *testing.T) {
	sessions := &fakeSessionStore{}
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, sessions, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartSession(SessionRequest{Algorithm: models.AlgorithmDynamic})
			if err != nil {
				assert.ErrorIs(t, err, ErrServiceStopped)
				return
			}
			mu.Lock()
			started++
			mu.Unlock()
		}()
	}
	svc.Stop()

	// Stop 返回后已接受的会话都必须完成
	sessions.mu.Lock()
	completed := len(sessions.completed)
	sessions.mu.Unlock()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	assert.Equal(t, len(sessions.created), started)
	assert.Equal(t, started, len(sessions.completed))
	assert.Equal(t, completed, len(sessions.completed), "a session completed after Stop returned")
	assert.Empty(t, svc.ActiveSessions())
}

func TestOptimize_Dynamic(t *testing.T) {
	runs := &fakeRunStore{}
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), runs, nil, nil)

	res, err := svc.Optimize(context.Background(), OptimizeRequest{
		Algorithm:   models.AlgorithmDynamic,
		Environment: models.Environment{Terrain: models.TerrainFlat, Temperature: 25},
		BudgetKwh:   0.5,
		Seed:        3,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(3), res.Seed)
	assert.Len(t, res.Candidates, 12)
	assert.Empty(t, res.History)
	assert.LessOrEqual(t, res.Plan.Energy, 0.5)
	assert.Equal(t, int64(1), res.RunID)

	require.Len(t, runs.runs, 1)
	run := runs.runs[0]
	assert.Nil(t, run.SessionID)
	assert.Len(t, run.Steps, len(res.Plan.Actions))
	assert.Equal(t, 12, run.Params["candidates"])
}

func TestOptimize_GeneticDefaultsBudget(t *testing.T) {
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, nil)

	res, err := svc.Optimize(context.Background(), OptimizeRequest{
		Algorithm: models.AlgorithmGenetic,
		PlannerParams: PlannerParams{
			Generations: intPtr(3),
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 3.84, res.Plan.Budget, 1e-9)
	assert.Len(t, res.History, 4)
	assert.Zero(t, res.RunID)
}

func TestOptimize_Errors(t *testing.T) {
	svc := NewStrategyService(testConfig(), zaptest.NewLogger(t), nil, nil, nil)

	_, err := svc.Optimize(context.Background(), OptimizeRequest{Algorithm: "brute"})
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = svc.Optimize(context.Background(), OptimizeRequest{
		Algorithm: models.AlgorithmDynamic,
		BudgetKwh: -1,
	})
	assert.ErrorIs(t, err, optimizer.ErrInvalidConfig)

	_, err = svc.Optimize(context.Background(), OptimizeRequest{
		Algorithm:     models.AlgorithmGenetic,
		PlannerParams: PlannerParams{PopulationSize: intPtr(0)},
	})
	assert.ErrorIs(t, err, optimizer.ErrInvalidConfig)
}
