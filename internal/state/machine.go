package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 求解阶段常量
const (
	PhaseIdle        = "idle"
	PhaseInitialized = "initialized"
	PhaseEvaluated   = "evaluated"
	PhaseSelected    = "selected"
	PhaseReproduced  = "reproduced"
	PhaseFinalized   = "finalized"
)

// 事件常量
const (
	EventInitialize = "initialize"
	EventEvaluate   = "evaluate"
	EventSelect     = "select"
	EventReproduce  = "reproduce"
	EventFinalize   = "finalize"
)

// Snapshot 求解过程快照
type Snapshot struct {
	Phase      string    `json:"phase"`
	Generation int       `json:"generation"`
	Since      time.Time `json:"since"`
}

// Machine 遗传算法生命周期状态机
// Initialize → Evaluate → Select → Reproduce → (Evaluate ...) → Finalize
type Machine struct {
	mu            sync.RWMutex
	fsm           *fsm.FSM
	generation    int
	since         time.Time
	onPhaseChange func(from, to string, generation int)
}

// NewMachine 创建状态机
func NewMachine(onPhaseChange func(from, to string, generation int)) *Machine {
	m := &Machine{
		since:         time.Now(),
		onPhaseChange: onPhaseChange,
	}

	m.fsm = fsm.NewFSM(
		PhaseIdle,
		fsm.Events{
			{Name: EventInitialize, Src: []string{PhaseIdle}, Dst: PhaseInitialized},

			// 初始种群和每一代繁殖后都要重新评估
			{Name: EventEvaluate, Src: []string{PhaseInitialized, PhaseReproduced}, Dst: PhaseEvaluated},
			{Name: EventSelect, Src: []string{PhaseEvaluated}, Dst: PhaseSelected},
			{Name: EventReproduce, Src: []string{PhaseSelected}, Dst: PhaseReproduced},

			// 代数为 0 时直接从初始种群结束
			{Name: EventFinalize, Src: []string{PhaseInitialized, PhaseEvaluated, PhaseReproduced}, Dst: PhaseFinalized},
		},
		fsm.Callbacks{
			"enter_" + PhaseReproduced: func(ctx context.Context, e *fsm.Event) {
				m.generation++
			},
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onPhaseChange != nil && e.Src != e.Dst {
					m.onPhaseChange(e.Src, e.Dst, m.generation)
				}
			},
		},
	)

	return m
}

// Phase 当前阶段
func (m *Machine) Phase() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// Generation 已完成繁殖的代数
func (m *Machine) Generation() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Snapshot 获取当前快照
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Phase:      m.fsm.Current(),
		Generation: m.generation,
		Since:      m.since,
	}
}

// Trigger 触发事件
func (m *Machine) Trigger(event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(context.Background(), event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}

	m.since = time.Now()
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Done 是否已结束
func (m *Machine) Done() bool {
	return m.Phase() == PhaseFinalized
}
