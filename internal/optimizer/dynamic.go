package optimizer

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/ecodrive/internal/energy"
	"github.com/langchou/ecodrive/internal/models"
)

// DefaultEnergyResolution 状态表能耗键的默认量化精度 (kWh)
const DefaultEnergyResolution = 1e-9

// 运动模式占比超过 performanceRatioLimit 时，距离打 (1 - performancePenalty) 折
const (
	performanceRatioLimit = 0.5
	performancePenalty    = 0.2
)

// maxQuantizedKey 量化后的键上限，避免 int64 溢出
const maxQuantizedKey = 1 << 62

// DynamicResult 动态规划求解结果
type DynamicResult struct {
	Distance float64 `json:"distance_km"`
	Energy   float64 `json:"energy_kwh"`
	Indices  []int   `json:"indices"` // 选中的候选动作下标，升序
	States   int     `json:"states"`  // 最终状态表大小
}

// DynamicOption 动态规划求解器选项
type DynamicOption func(*DynamicSolver)

// WithEnergyResolution 设置能耗键量化精度，0 表示按浮点数精确相等
func WithEnergyResolution(resolution float64) DynamicOption {
	return func(s *DynamicSolver) {
		s.resolution = resolution
	}
}

// WithDynamicLogger 设置日志
func WithDynamicLogger(logger *zap.Logger) DynamicOption {
	return func(s *DynamicSolver) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// DynamicSolver 动态规划求解器
type DynamicSolver struct {
	resolution float64
	logger     *zap.Logger
}

// NewDynamicSolver 创建动态规划求解器
func NewDynamicSolver(opts ...DynamicOption) *DynamicSolver {
	s := &DynamicSolver{
		resolution: DefaultEnergyResolution,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pathNode 选中下标的持久化链表，不同状态共享公共前缀
type pathNode struct {
	index  int
	length int
	prev   *pathNode
}

func (p *pathNode) push(index int) *pathNode {
	length := 1
	if p != nil {
		length = p.length + 1
	}
	return &pathNode{index: index, length: length, prev: p}
}

func (p *pathNode) indices() []int {
	if p == nil {
		return []int{}
	}
	out := make([]int, p.length)
	for n, i := p, p.length-1; n != nil; n, i = n.prev, i-1 {
		out[i] = n.index
	}
	return out
}

// dpEntry 某个能耗值下的最优状态
type dpEntry struct {
	energy   float64
	distance float64
	path     *pathNode
}

// stateTable 能耗 -> 最优状态，按插入顺序遍历
type stateTable struct {
	entries map[int64]dpEntry
	order   []int64
}

func newStateTable(capacity int) *stateTable {
	return &stateTable{
		entries: make(map[int64]dpEntry, capacity),
		order:   make([]int64, 0, capacity),
	}
}

func (t *stateTable) put(key int64, e dpEntry) {
	if _, ok := t.entries[key]; !ok {
		t.order = append(t.order, key)
	}
	t.entries[key] = e
}

func (t *stateTable) clone() *stateTable {
	c := newStateTable(len(t.order) * 2)
	for _, k := range t.order {
		c.put(k, t.entries[k])
	}
	return c
}

func (s *DynamicSolver) key(e float64) int64 {
	if s.resolution <= 0 {
		return int64(math.Float64bits(e))
	}
	return int64(math.Round(e / s.resolution))
}

func (s *DynamicSolver) validate(candidates []models.Action, budget float64, env models.Environment, step time.Duration) error {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget <= 0 {
		return fmt.Errorf("%w: energy budget must be > 0, got %v", ErrInvalidConfig, budget)
	}
	if step < 0 {
		return fmt.Errorf("%w: step duration must be >= 0, got %s", ErrInvalidConfig, step)
	}
	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if s.resolution < 0 || math.IsNaN(s.resolution) {
		return fmt.Errorf("%w: energy resolution must be >= 0", ErrInvalidConfig)
	}
	if s.resolution > 0 && budget/s.resolution >= maxQuantizedKey {
		return fmt.Errorf("%w: energy resolution %g too fine for budget %g", ErrInvalidConfig, s.resolution, budget)
	}
	for i, a := range candidates {
		if !a.Mode.Valid() {
			return fmt.Errorf("%w: candidate %d has invalid mode", ErrInvalidConfig, i)
		}
		if a.Speed < 0 || math.IsNaN(a.Speed) {
			return fmt.Errorf("%w: candidate %d has invalid speed %v", ErrInvalidConfig, i, a.Speed)
		}
	}
	return nil
}

// penalizedGains 每个候选动作的距离增量
// 前 i+1 个候选中运动模式占比超过一半时，第 i 步距离扣除 20%
func penalizedGains(candidates []models.Action, env models.Environment, step time.Duration) (gains, costs []float64) {
	gains = make([]float64, len(candidates))
	costs = make([]float64, len(candidates))
	performance := 0
	for i, a := range candidates {
		distance, cost := energy.Cost(a, env, step)
		if a.Mode == models.ModePerformance {
			performance++
		}
		penalty := 0.0
		if float64(performance)/float64(i+1) > performanceRatioLimit {
			penalty = distance * performancePenalty
		}
		gains[i] = distance - penalty
		costs[i] = cost
	}
	return gains, costs
}

// Solve 在候选动作列表上求能耗不超过 budget 的最大行驶距离
// 候选为空或没有任何可负担的动作时返回 (0, [])
func (s *DynamicSolver) Solve(candidates []models.Action, budget float64, env models.Environment, step time.Duration) (*DynamicResult, error) {
	if err := s.validate(candidates, budget, env, step); err != nil {
		return nil, err
	}

	gains, costs := penalizedGains(candidates, env, step)

	current := newStateTable(1)
	current.put(s.key(0), dpEntry{})

	for i := range candidates {
		// 先复制，未被扩展的状态原样保留
		next := current.clone()
		for _, k := range current.order {
			entry := current.entries[k]
			newEnergy := entry.energy + costs[i]
			if newEnergy > budget {
				continue
			}
			newDistance := entry.distance + gains[i]
			nk := s.key(newEnergy)
			if existing, ok := next.entries[nk]; ok && existing.distance >= newDistance {
				continue
			}
			next.put(nk, dpEntry{
				energy:   newEnergy,
				distance: newDistance,
				path:     entry.path.push(i),
			})
		}
		current = next
	}

	best := current.entries[current.order[0]]
	for _, k := range current.order[1:] {
		if e := current.entries[k]; e.distance > best.distance {
			best = e
		}
	}

	result := &DynamicResult{
		Distance: best.distance,
		Energy:   best.energy,
		Indices:  best.path.indices(),
		States:   len(current.order),
	}

	s.logger.Debug("Dynamic programming solved",
		zap.Int("candidates", len(candidates)),
		zap.Int("states", result.States),
		zap.Float64("distance_km", result.Distance),
		zap.Float64("energy_kwh", result.Energy),
		zap.Float64("budget_kwh", budget))

	return result, nil
}
