package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/ecodrive/internal/config"
	"github.com/langchou/ecodrive/internal/energy"
	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/optimizer"
	"github.com/langchou/ecodrive/internal/report"
)

// ErrUnknownAlgorithm 未知的求解算法
var ErrUnknownAlgorithm = errors.New("service: unknown algorithm")

// ErrServiceStopped 服务已停止，不再接受新会话
var ErrServiceStopped = errors.New("service: stopped")

// RunStore 策略记录存储
type RunStore interface {
	Create(ctx context.Context, run *models.StrategyRun) error
}

// SessionStore 会话存储
type SessionStore interface {
	Create(ctx context.Context, session *models.DriveSession) error
	Complete(ctx context.Context, session *models.DriveSession) error
}

// PlannerParams 求解参数，未设置的字段使用配置默认值
type PlannerParams struct {
	Candidates       *int     `json:"candidates,omitempty"`
	EnergyResolution *float64 `json:"energy_resolution,omitempty"`
	ChromosomeLength *int     `json:"chromosome_length,omitempty"`
	PopulationSize   *int     `json:"population_size,omitempty"`
	Generations      *int     `json:"generations,omitempty"`
	MutationRate     *float64 `json:"mutation_rate,omitempty"`
}

// resolvedParams 合并配置后的求解参数
type resolvedParams struct {
	candidates       int
	energyResolution float64
	chromosomeLength int
	populationSize   int
	generations      int
	mutationRate     float64
	step             time.Duration
}

func (p PlannerParams) resolve(cfg *config.Config) resolvedParams {
	r := resolvedParams{
		candidates:       cfg.DPCandidates,
		energyResolution: cfg.DPEnergyResolution,
		chromosomeLength: cfg.GAChromosomeLength,
		populationSize:   cfg.GAPopulationSize,
		generations:      cfg.GAGenerations,
		mutationRate:     cfg.GAMutationRate,
		step:             cfg.StepDuration,
	}
	if p.Candidates != nil {
		r.candidates = *p.Candidates
	}
	if p.EnergyResolution != nil {
		r.energyResolution = *p.EnergyResolution
	}
	if p.ChromosomeLength != nil {
		r.chromosomeLength = *p.ChromosomeLength
	}
	if p.PopulationSize != nil {
		r.populationSize = *p.PopulationSize
	}
	if p.Generations != nil {
		r.generations = *p.Generations
	}
	if p.MutationRate != nil {
		r.mutationRate = *p.MutationRate
	}
	return r
}

// record 记录到 strategy_runs.params
func (r resolvedParams) record(algorithm models.Algorithm, seed uint64) map[string]any {
	params := map[string]any{
		"seed":         strconv.FormatUint(seed, 10), // JSON 数字会丢失 uint64 精度
		"step_seconds": r.step.Seconds(),
	}
	switch algorithm {
	case models.AlgorithmDynamic:
		params["candidates"] = r.candidates
		params["energy_resolution"] = r.energyResolution
	case models.AlgorithmGenetic:
		params["chromosome_length"] = r.chromosomeLength
		params["population_size"] = r.populationSize
		params["generations"] = r.generations
		params["mutation_rate"] = r.mutationRate
	}
	return params
}

// OptimizeRequest 单次求解请求
type OptimizeRequest struct {
	Algorithm   models.Algorithm   `json:"algorithm"`
	Environment models.Environment `json:"environment"`
	BudgetKwh   float64            `json:"budget_kwh"` // 0 表示 容量×预算比例
	Seed        uint64             `json:"seed"`       // 0 表示使用配置，配置也为 0 时随机
	PlannerParams
}

// OptimizeResult 单次求解结果
type OptimizeResult struct {
	Plan       *models.Plan                `json:"plan"`
	Seed       uint64                      `json:"seed"`
	RunID      int64                       `json:"run_id,omitempty"`
	Candidates []models.Action             `json:"candidates,omitempty"` // 动态规划的候选动作
	History    []optimizer.GenerationStats `json:"history,omitempty"`    // 遗传算法每代统计
}

// StrategyService 驾驶策略服务
type StrategyService struct {
	cfg      *config.Config
	logger   *zap.Logger
	runs     RunStore     // nil 表示不保存
	sessions SessionStore // nil 表示不保存
	reporter report.Reporter

	mu      sync.RWMutex
	active  map[int64]models.DriveSession
	stopped bool         // 与 wg.Add 在同一把锁下检查
	localID atomic.Int64 // 不保存时的会话编号

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStrategyService 创建策略服务，runs/sessions 可以为 nil
func NewStrategyService(
	cfg *config.Config,
	logger *zap.Logger,
	runs RunStore,
	sessions SessionStore,
	reporter report.Reporter,
) *StrategyService {
	if reporter == nil {
		reporter = report.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StrategyService{
		cfg:      cfg,
		logger:   logger,
		runs:     runs,
		sessions: sessions,
		reporter: reporter,
		active:   make(map[int64]models.DriveSession),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Stop 取消后台会话并等待结束
func (s *StrategyService) Stop() {
	s.logger.Info("Stopping strategy service")
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Strategy service stopped")
}

// ActiveSessions 正在进行的会话快照，按编号排序
func (s *StrategyService) ActiveSessions() []models.DriveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]models.DriveSession, 0, len(s.active))
	for _, session := range s.active {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// Optimize 单次求解，结果按配置保存
func (s *StrategyService) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	budget := req.BudgetKwh
	if budget == 0 {
		budget = s.cfg.BatteryCapacityKwh * s.cfg.StrategyBudgetRatio
	}
	seed := s.resolveSeed(req.Seed)
	params := req.PlannerParams.resolve(s.cfg)

	planner, err := s.newPlanner(req.Algorithm, params, optimizer.NewRand(seed), nil)
	if err != nil {
		return nil, err
	}
	plan, err := planner.Plan(budget, req.Environment)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", req.Algorithm, err)
	}

	result := &OptimizeResult{Plan: plan, Seed: seed}
	switch p := planner.(type) {
	case *optimizer.DynamicPlanner:
		result.Candidates = p.LastCandidates
	case *optimizer.GeneticPlanner:
		result.History = p.LastResult.History
	}

	s.logger.Info("Strategy optimized",
		zap.String("algorithm", string(plan.Algorithm)),
		zap.Float64("budget_kwh", budget),
		zap.Float64("distance_km", plan.Distance),
		zap.Int("actions", len(plan.Actions)),
		zap.Uint64("seed", seed))

	if s.runs != nil {
		run := newStrategyRun(plan, req.Environment, params.step, params.record(plan.Algorithm, seed))
		if err := s.runs.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("save strategy run: %w", err)
		}
		result.RunID = run.ID
	}
	return result, nil
}

// resolveSeed 请求种子 > 配置种子 > 随机生成，返回值总是非 0，便于复现
func (s *StrategyService) resolveSeed(seed uint64) uint64 {
	if seed == 0 {
		seed = s.cfg.RandomSeed
	}
	for seed == 0 {
		seed = rand.Uint64()
	}
	return seed
}

// newPlanner 按算法创建求解器，progress 只对遗传算法生效
func (s *StrategyService) newPlanner(
	algorithm models.Algorithm,
	params resolvedParams,
	rng *rand.Rand,
	progress func(optimizer.GenerationStats),
) (optimizer.Planner, error) {
	switch algorithm {
	case models.AlgorithmDynamic:
		return &optimizer.DynamicPlanner{
			Solver: optimizer.NewDynamicSolver(
				optimizer.WithEnergyResolution(params.energyResolution),
				optimizer.WithDynamicLogger(s.logger),
			),
			Rand:       rng,
			Candidates: params.candidates,
			Step:       params.step,
		}, nil
	case models.AlgorithmGenetic:
		opts := []optimizer.GeneticOption{optimizer.WithGeneticLogger(s.logger)}
		if progress != nil {
			opts = append(opts, optimizer.WithProgress(progress))
		}
		return &optimizer.GeneticPlanner{
			Solver:           optimizer.NewGeneticSolver(rng, opts...),
			ChromosomeLength: params.chromosomeLength,
			PopulationSize:   params.populationSize,
			Generations:      params.generations,
			MutationRate:     params.mutationRate,
			Step:             params.step,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

// newStrategyRun 由策略生成记录，步骤默认未执行
func newStrategyRun(plan *models.Plan, env models.Environment, step time.Duration, params map[string]any) *models.StrategyRun {
	run := &models.StrategyRun{
		Algorithm:   plan.Algorithm,
		Terrain:     env.Terrain,
		Temperature: env.Temperature,
		BudgetKwh:   plan.Budget,
		DistanceKm:  plan.Distance,
		EnergyKwh:   plan.Energy,
		Params:      params,
		Steps:       make([]models.StrategyStep, len(plan.Actions)),
	}
	for i, a := range plan.Actions {
		distance, used := energy.Cost(a, env, step)
		run.Steps[i] = models.StrategyStep{
			Position:   i,
			Speed:      a.Speed,
			Mode:       a.Mode,
			DistanceKm: distance,
			EnergyKwh:  used,
		}
	}
	return run
}
