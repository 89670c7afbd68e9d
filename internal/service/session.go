package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/optimizer"
	"github.com/langchou/ecodrive/internal/report"
	"github.com/langchou/ecodrive/internal/vehicle"
)

// ErrInvalidRequest 请求参数不合法
var ErrInvalidRequest = errors.New("service: invalid request")

// 会话结束原因
const (
	StopBatteryFloor  = "battery_floor"  // 电量降到下限
	StopMaxStrategies = "max_strategies" // 达到策略数上限
	StopEmptyPlan     = "empty_plan"     // 求解器没有给出任何动作
	StopNoProgress    = "no_progress"    // 策略中没有一步能执行
	StopCancelled     = "cancelled"
	StopError         = "error"
)

// SessionRequest 驾驶会话请求
type SessionRequest struct {
	Algorithm     models.Algorithm   `json:"algorithm"`
	Environment   models.Environment `json:"environment"`
	CapacityKwh   float64            `json:"capacity_kwh"`   // 0 表示使用配置
	Seed          uint64             `json:"seed"`           // 0 表示使用配置，配置也为 0 时随机
	MaxStrategies int                `json:"max_strategies"` // 0 表示使用配置
	PlannerParams
}

// sessionRun 一次会话的运行状态，只在一个 goroutine 中使用
type sessionRun struct {
	session  *models.DriveSession
	params   resolvedParams
	budget   float64
	floor    float64
	max      int
	battery  *vehicle.Battery
	ems      *vehicle.EnergyManagementSystem
	planner  optimizer.Planner
	sequence int
}

// RunSession 运行驾驶会话直到结束：
// 电量高于下限时反复求解策略并逐步执行，电量不足的步骤跳过
func (s *StrategyService) RunSession(ctx context.Context, req SessionRequest) (*models.DriveSession, error) {
	r, err := s.openSession(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.drive(ctx, r)
}

// StartSession 在后台运行驾驶会话，返回刚创建的会话
func (s *StrategyService) StartSession(req SessionRequest) (*models.DriveSession, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrServiceStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()

	r, err := s.openSession(s.ctx, req)
	if err != nil {
		s.wg.Done()
		return nil, err
	}
	started := *r.session

	go func() {
		defer s.wg.Done()
		if _, err := s.drive(s.ctx, r); err != nil {
			s.logger.Warn("Background drive session ended with error",
				zap.Int64("session_id", started.ID),
				zap.Error(err))
		}
	}()
	return &started, nil
}

// openSession 校验参数、创建会话记录并准备求解器
func (s *StrategyService) openSession(ctx context.Context, req SessionRequest) (*sessionRun, error) {
	capacity := req.CapacityKwh
	if capacity == 0 {
		capacity = s.cfg.BatteryCapacityKwh
	}
	battery, err := vehicle.NewBattery(capacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	maxStrategies := req.MaxStrategies
	if maxStrategies == 0 {
		maxStrategies = s.cfg.MaxStrategies
	}
	if maxStrategies < 0 {
		return nil, fmt.Errorf("%w: max strategies must be >= 0, got %d", ErrInvalidRequest, maxStrategies)
	}

	if err := req.Environment.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	params := req.PlannerParams.resolve(s.cfg)
	budget := capacity * s.cfg.StrategyBudgetRatio
	if err := params.validate(req.Algorithm, budget); err != nil {
		return nil, err
	}

	seed := s.resolveSeed(req.Seed)
	session := &models.DriveSession{
		Algorithm:      req.Algorithm,
		Environment:    req.Environment,
		CapacityKwh:    capacity,
		StartChargeKwh: battery.Remaining(),
		Seed:           seed,
		StartTime:      time.Now(),
	}
	if s.sessions != nil {
		if err := s.sessions.Create(ctx, session); err != nil {
			return nil, fmt.Errorf("create drive session: %w", err)
		}
	} else {
		session.ID = s.localID.Add(1)
	}

	r := &sessionRun{
		session: session,
		params:  params,
		budget:  budget,
		floor:   capacity * s.cfg.BatteryFloorRatio,
		max:     maxStrategies,
		battery: battery,
		ems:     vehicle.NewEnergyManagementSystem(session.ID, battery, s.reporter),
	}
	progress := func(stats optimizer.GenerationStats) {
		s.reporter.ReportGeneration(report.GenerationEvent{
			SessionID: session.ID,
			Sequence:  r.sequence,
			Stats:     stats,
		})
	}
	if r.planner, err = s.newPlanner(req.Algorithm, params, optimizer.NewRand(seed), progress); err != nil {
		return nil, err
	}

	s.track(*session)
	s.reporter.ReportSession(report.SessionEvent{Session: *session})
	return r, nil
}

// drive 会话主循环
func (s *StrategyService) drive(ctx context.Context, r *sessionRun) (*models.DriveSession, error) {
	session := r.session
	defer s.untrack(session.ID)

	var runErr error
	for {
		if r.battery.Remaining() <= r.floor {
			session.StopReason = StopBatteryFloor
			break
		}
		if session.StrategyCount >= r.max {
			session.StopReason = StopMaxStrategies
			break
		}
		if err := ctx.Err(); err != nil {
			session.StopReason = StopCancelled
			runErr = err
			break
		}

		r.sequence++
		plan, err := r.planner.Plan(r.budget, session.Environment)
		if err != nil {
			session.StopReason = StopError
			runErr = fmt.Errorf("plan strategy %d: %w", r.sequence, err)
			break
		}
		if len(plan.Actions) == 0 {
			session.StopReason = StopEmptyPlan
			break
		}

		executed := s.execute(ctx, r, plan)
		if executed == 0 {
			session.StopReason = StopNoProgress
			break
		}
	}

	s.finish(ctx, session, r.battery)
	return session, runErr
}

// execute 逐步执行策略并保存，返回实际执行的步数
func (s *StrategyService) execute(ctx context.Context, r *sessionRun, plan *models.Plan) int {
	session := r.session
	env := session.Environment

	run := newStrategyRun(plan, env, r.params.step, r.params.record(plan.Algorithm, session.Seed))
	run.SessionID = &session.ID
	run.Sequence = r.sequence

	executed, skipped := 0, 0
	for i, action := range plan.Actions {
		if _, err := r.ems.Drive(action, r.params.step, env); err != nil {
			if !errors.Is(err, vehicle.ErrInsufficientCharge) {
				s.logger.Warn("Failed to execute step",
					zap.Int64("session_id", session.ID),
					zap.Int("position", i),
					zap.Error(err))
			}
			skipped++
			continue
		}
		run.Steps[i].Executed = true
		executed++
	}

	session.StrategyCount++
	session.StepsExecuted += executed
	session.StepsSkipped += skipped
	session.DistanceKm = r.ems.TotalDistance()

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			s.logger.Error("Failed to save strategy run",
				zap.Int64("session_id", session.ID),
				zap.Int("sequence", r.sequence),
				zap.Error(err))
		}
	}

	s.reporter.ReportStrategy(report.StrategyEvent{
		SessionID:     session.ID,
		Sequence:      r.sequence,
		Plan:          plan,
		StepsExecuted: executed,
		StepsSkipped:  skipped,
	})
	s.track(*session)
	return executed
}

// finish 记录结束状态，取消的会话同样会保存
func (s *StrategyService) finish(ctx context.Context, session *models.DriveSession, battery *vehicle.Battery) {
	now := time.Now()
	endCharge := battery.Remaining()
	endPercent := battery.Percentage()
	session.EndTime = &now
	session.EndChargeKwh = &endCharge
	session.EndBatteryPercent = &endPercent

	if s.sessions != nil {
		if err := s.sessions.Complete(context.WithoutCancel(ctx), session); err != nil {
			s.logger.Error("Failed to complete drive session",
				zap.Int64("session_id", session.ID),
				zap.Error(err))
		}
	}
	s.reporter.ReportSession(report.SessionEvent{Session: *session, Finished: true})
}

func (s *StrategyService) track(session models.DriveSession) {
	s.mu.Lock()
	s.active[session.ID] = session
	s.mu.Unlock()
}

func (s *StrategyService) untrack(id int64) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// validate 在创建会话之前检查求解参数
func (p resolvedParams) validate(algorithm models.Algorithm, budget float64) error {
	if p.step <= 0 {
		return fmt.Errorf("%w: step duration must be > 0, got %s", optimizer.ErrInvalidConfig, p.step)
	}
	switch algorithm {
	case models.AlgorithmDynamic:
		if p.candidates < 0 {
			return fmt.Errorf("%w: candidate count must be >= 0, got %d", optimizer.ErrInvalidConfig, p.candidates)
		}
		if math.IsNaN(p.energyResolution) || p.energyResolution < 0 {
			return fmt.Errorf("%w: energy resolution must be >= 0, got %v", optimizer.ErrInvalidConfig, p.energyResolution)
		}
		return nil
	case models.AlgorithmGenetic:
		return optimizer.GeneticParams{
			EnergyBudget:     budget,
			ChromosomeLength: p.chromosomeLength,
			PopulationSize:   p.populationSize,
			Generations:      p.generations,
			MutationRate:     p.mutationRate,
			StepDuration:     p.step,
		}.Validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}
