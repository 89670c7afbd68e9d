package optimizer

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/langchou/ecodrive/internal/energy"
	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/state"
)

// DefaultStepDuration 每个动作的行驶时长
const DefaultStepDuration = 60 * time.Second

// selectionRatio 每代保留用于繁殖的比例
const selectionRatio = 0.2

// GeneticParams 遗传算法参数
type GeneticParams struct {
	EnergyBudget     float64            `json:"energy_budget"`
	ChromosomeLength int                `json:"chromosome_length"`
	PopulationSize   int                `json:"population_size"`
	Generations      int                `json:"generations"`
	MutationRate     float64            `json:"mutation_rate"`
	Environment      models.Environment `json:"environment"`
	StepDuration     time.Duration      `json:"-"` // 0 表示 DefaultStepDuration
}

// Validate 校验参数
func (p GeneticParams) Validate() error {
	if math.IsNaN(p.EnergyBudget) || math.IsInf(p.EnergyBudget, 0) || p.EnergyBudget <= 0 {
		return fmt.Errorf("%w: energy budget must be > 0, got %v", ErrInvalidConfig, p.EnergyBudget)
	}
	if p.ChromosomeLength < 0 {
		return fmt.Errorf("%w: chromosome length must be >= 0, got %d", ErrInvalidConfig, p.ChromosomeLength)
	}
	if p.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0, got %d", ErrInvalidConfig, p.PopulationSize)
	}
	if p.Generations < 0 {
		return fmt.Errorf("%w: generation count must be >= 0, got %d", ErrInvalidConfig, p.Generations)
	}
	if math.IsNaN(p.MutationRate) || p.MutationRate < 0 || p.MutationRate > 1 {
		return fmt.Errorf("%w: mutation rate must be in [0,1], got %v", ErrInvalidConfig, p.MutationRate)
	}
	if p.StepDuration < 0 {
		return fmt.Errorf("%w: step duration must be >= 0, got %s", ErrInvalidConfig, p.StepDuration)
	}
	if err := p.Environment.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (p GeneticParams) step() time.Duration {
	if p.StepDuration == 0 {
		return DefaultStepDuration
	}
	return p.StepDuration
}

// GenerationStats 每代种群的适应度统计
type GenerationStats struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Worst      float64 `json:"worst"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
}

// GeneticResult 遗传算法求解结果
type GeneticResult struct {
	Sequence []models.Action   `json:"sequence"`
	Fitness  float64           `json:"fitness"`
	Steps    int               `json:"steps"` // 电量允许执行的前缀长度
	Energy   float64           `json:"energy_kwh"`
	History  []GenerationStats `json:"history"`
}

// Evaluation 一个动作序列的模拟结果
type Evaluation struct {
	Fitness float64 `json:"fitness"`
	Steps   int     `json:"steps"`
	Energy  float64 `json:"energy_kwh"`
}

// Evaluate 用容量为 budget 的新电池模拟动作序列
// 遇到第一个电量不足的动作即停止；整条序列运动模式占比超过一半时距离扣除 20%
func Evaluate(actions []models.Action, budget float64, env models.Environment, step time.Duration) Evaluation {
	var ev Evaluation
	remaining := budget
	distance := 0.0
	for _, a := range actions {
		d, e := energy.Cost(a, env, step)
		if e > remaining {
			break
		}
		remaining -= e
		distance += d
		ev.Energy += e
		ev.Steps++
	}

	if len(actions) > 0 {
		ratio := float64(models.CountMode(actions, models.ModePerformance)) / float64(len(actions))
		if ratio > performanceRatioLimit {
			distance -= distance * performancePenalty
		}
	}
	ev.Fitness = distance
	return ev
}

// GeneticOption 遗传算法求解器选项
type GeneticOption func(*GeneticSolver)

// WithGeneticLogger 设置日志
func WithGeneticLogger(logger *zap.Logger) GeneticOption {
	return func(s *GeneticSolver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress 每完成一次种群评估回调一次
func WithProgress(fn func(GenerationStats)) GeneticOption {
	return func(s *GeneticSolver) {
		s.progress = fn
	}
}

// WithPhaseObserver 观察求解阶段变化，回调内不能再访问状态机
func WithPhaseObserver(fn func(from, to string, generation int)) GeneticOption {
	return func(s *GeneticSolver) {
		s.onPhase = fn
	}
}

// GeneticSolver 遗传算法求解器，不可并发使用
type GeneticSolver struct {
	rng      *rand.Rand
	logger   *zap.Logger
	progress func(GenerationStats)
	onPhase  func(from, to string, generation int)
}

// NewGeneticSolver 创建遗传算法求解器，rng 为 nil 时使用随机种子
func NewGeneticSolver(rng *rand.Rand, opts ...GeneticOption) *GeneticSolver {
	if rng == nil {
		rng = NewRand(0)
	}
	s := &GeneticSolver{
		rng:    rng,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// individual 种群个体
type individual struct {
	genes []models.Action
	eval  Evaluation
}

// Solve 运行遗传算法，返回所有评估过的个体中适应度最高的序列
func (s *GeneticSolver) Solve(p GeneticParams) (*GeneticResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	step := p.step()
	machine := state.NewMachine(s.onPhase)

	result := &GeneticResult{
		Sequence: []models.Action{},
		History:  make([]GenerationStats, 0, p.Generations+1),
	}

	if err := machine.Trigger(state.EventInitialize); err != nil {
		return nil, err
	}
	population := make([]individual, p.PopulationSize)
	for i := range population {
		population[i].genes = RandomActions(s.rng, p.ChromosomeLength)
	}

	var best individual
	found := false
	evaluate := func(generation int) {
		for i := range population {
			population[i].eval = Evaluate(population[i].genes, p.EnergyBudget, p.Environment, step)
			if !found || population[i].eval.Fitness > best.eval.Fitness {
				best = population[i]
				found = true
			}
		}
		stats := generationStats(generation, population)
		result.History = append(result.History, stats)
		if s.progress != nil {
			s.progress(stats)
		}
	}

	for g := 0; g < p.Generations; g++ {
		if err := machine.Trigger(state.EventEvaluate); err != nil {
			return nil, err
		}
		evaluate(g)

		if err := machine.Trigger(state.EventSelect); err != nil {
			return nil, err
		}
		pool := selectBreeders(population)

		if err := machine.Trigger(state.EventReproduce); err != nil {
			return nil, err
		}
		population = s.reproduce(pool, p)

		s.logger.Debug("Generation evolved",
			zap.Int("generation", g),
			zap.Float64("best_fitness", best.eval.Fitness))
	}

	if err := machine.Trigger(state.EventFinalize); err != nil {
		return nil, err
	}
	evaluate(p.Generations)

	// 没有任何可负担的动作时返回空序列
	if best.eval.Fitness > 0 {
		result.Sequence = append(result.Sequence, best.genes...)
		result.Fitness = best.eval.Fitness
		result.Steps = best.eval.Steps
		result.Energy = best.eval.Energy
	}

	s.logger.Debug("Genetic algorithm finished",
		zap.Int("population", p.PopulationSize),
		zap.Int("generations", p.Generations),
		zap.Float64("fitness", result.Fitness),
		zap.Int("steps", result.Steps))

	return result, nil
}

// selectBreeders 按适应度降序取前 20% (至少 1 个)
func selectBreeders(population []individual) []individual {
	sorted := make([]individual, len(population))
	copy(sorted, population)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].eval.Fitness > sorted[j].eval.Fitness
	})

	n := int(float64(len(sorted)) * selectionRatio)
	if n < 1 {
		n = 1
	}
	return sorted[:n]
}

// reproduce 从繁殖池有放回地抽取父母，交叉并变异，直到填满新种群
func (s *GeneticSolver) reproduce(pool []individual, p GeneticParams) []individual {
	next := make([]individual, 0, p.PopulationSize)
	for len(next) < p.PopulationSize {
		father := pool[s.rng.IntN(len(pool))]
		mother := pool[s.rng.IntN(len(pool))]
		child := s.crossover(father.genes, mother.genes)
		if s.rng.Float64() < p.MutationRate {
			s.mutate(child, p.MutationRate)
		}
		next = append(next, individual{genes: child})
	}
	return next
}

// crossover 单点交叉：切点之前取父亲，切点及之后取母亲
func (s *GeneticSolver) crossover(father, mother []models.Action) []models.Action {
	child := make([]models.Action, len(father))
	if len(father) == 0 {
		return child
	}
	cut := s.rng.IntN(len(father))
	copy(child[:cut], father[:cut])
	copy(child[cut:], mother[cut:])
	return child
}

// mutate 每个基因以 rate 的概率替换为新的随机动作
func (s *GeneticSolver) mutate(genes []models.Action, rate float64) {
	for i := range genes {
		if s.rng.Float64() < rate {
			genes[i] = RandomAction(s.rng)
		}
	}
}

func generationStats(generation int, population []individual) GenerationStats {
	fitness := make([]float64, len(population))
	for i, ind := range population {
		fitness[i] = ind.eval.Fitness
	}

	stats := GenerationStats{
		Generation: generation,
		Best:       floats.Max(fitness),
		Worst:      floats.Min(fitness),
		Mean:       stat.Mean(fitness, nil),
	}
	if len(fitness) > 1 {
		stats.StdDev = stat.StdDev(fitness, nil)
	}
	return stats
}
