package optimizer

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/langchou/ecodrive/internal/models"
)

// Planner 给定能量预算和环境，生成一段驾驶策略
type Planner interface {
	Plan(budget float64, env models.Environment) (*models.Plan, error)
	Algorithm() models.Algorithm
}

// DynamicPlanner 随机生成候选动作后用动态规划挑选
type DynamicPlanner struct {
	Solver     *DynamicSolver
	Rand       *rand.Rand
	Candidates int
	Step       time.Duration

	// LastCandidates 最近一次求解使用的候选动作
	LastCandidates []models.Action
}

// Algorithm 实现 Planner
func (p *DynamicPlanner) Algorithm() models.Algorithm {
	return models.AlgorithmDynamic
}

// Plan 实现 Planner
func (p *DynamicPlanner) Plan(budget float64, env models.Environment) (*models.Plan, error) {
	if p.Candidates < 0 {
		return nil, fmt.Errorf("%w: candidate count must be >= 0, got %d", ErrInvalidConfig, p.Candidates)
	}
	if p.Solver == nil {
		p.Solver = NewDynamicSolver()
	}
	if p.Rand == nil {
		p.Rand = NewRand(0)
	}
	step := p.Step
	if step == 0 {
		step = DefaultStepDuration
	}

	candidates := RandomActions(p.Rand, p.Candidates)
	p.LastCandidates = candidates
	res, err := p.Solver.Solve(candidates, budget, env, step)
	if err != nil {
		return nil, err
	}

	actions := make([]models.Action, len(res.Indices))
	for i, idx := range res.Indices {
		actions[i] = candidates[idx]
	}

	return &models.Plan{
		Algorithm: models.AlgorithmDynamic,
		Actions:   actions,
		Distance:  res.Distance,
		Energy:    res.Energy,
		Budget:    budget,
	}, nil
}

// GeneticPlanner 用遗传算法生成策略
type GeneticPlanner struct {
	Solver           *GeneticSolver
	ChromosomeLength int
	PopulationSize   int
	Generations      int
	MutationRate     float64
	Step             time.Duration

	// LastResult 最近一次求解结果，用于输出进化曲线
	LastResult *GeneticResult
}

// Algorithm 实现 Planner
func (p *GeneticPlanner) Algorithm() models.Algorithm {
	return models.AlgorithmGenetic
}

// Plan 实现 Planner
func (p *GeneticPlanner) Plan(budget float64, env models.Environment) (*models.Plan, error) {
	if p.Solver == nil {
		p.Solver = NewGeneticSolver(nil)
	}
	res, err := p.Solver.Solve(GeneticParams{
		EnergyBudget:     budget,
		ChromosomeLength: p.ChromosomeLength,
		PopulationSize:   p.PopulationSize,
		Generations:      p.Generations,
		MutationRate:     p.MutationRate,
		Environment:      env,
		StepDuration:     p.Step,
	})
	if err != nil {
		return nil, err
	}
	p.LastResult = res

	return &models.Plan{
		Algorithm: models.AlgorithmGenetic,
		Actions:   res.Sequence,
		Distance:  res.Fitness,
		Energy:    res.Energy,
		Budget:    budget,
	}, nil
}
