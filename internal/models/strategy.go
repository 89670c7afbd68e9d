package models

import "time"

// Algorithm 求解算法
type Algorithm string

// 算法常量
const (
	AlgorithmDynamic Algorithm = "dynamic"
	AlgorithmGenetic Algorithm = "genetic"
)

// Valid 是否为已知算法
func (a Algorithm) Valid() bool {
	return a == AlgorithmDynamic || a == AlgorithmGenetic
}

// Plan 一次求解得到的驾驶策略
type Plan struct {
	Algorithm Algorithm `json:"algorithm"`
	Actions   []Action  `json:"actions"`
	Distance  float64   `json:"distance_km"` // 求解器给出的最优距离 (含惩罚)
	Energy    float64   `json:"energy_kwh"`  // 可执行部分的预计能耗
	Budget    float64   `json:"budget_kwh"`
}

// StrategyRun 策略求解记录
type StrategyRun struct {
	ID          int64          `json:"id" db:"id"`
	SessionID   *int64         `json:"session_id,omitempty" db:"session_id"`
	Sequence    int            `json:"sequence" db:"sequence"` // 会话内第几个策略
	Algorithm   Algorithm      `json:"algorithm" db:"algorithm"`
	Terrain     Terrain        `json:"terrain" db:"terrain"`
	Temperature float64        `json:"temperature" db:"temperature"`
	BudgetKwh   float64        `json:"budget_kwh" db:"budget_kwh"`
	DistanceKm  float64        `json:"distance_km" db:"distance_km"`
	EnergyKwh   float64        `json:"energy_kwh" db:"energy_kwh"`
	Params      map[string]any `json:"params,omitempty" db:"params"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	Steps       []StrategyStep `json:"steps,omitempty"`
}

// StrategyStep 策略中的单步
type StrategyStep struct {
	RunID      int64       `json:"run_id" db:"run_id"`
	Position   int         `json:"position" db:"position"`
	Speed      float64     `json:"speed" db:"speed"`
	Mode       DrivingMode `json:"mode" db:"mode"`
	DistanceKm float64     `json:"distance_km" db:"distance_km"`
	EnergyKwh  float64     `json:"energy_kwh" db:"energy_kwh"`
	Executed   bool        `json:"executed" db:"executed"` // 实际行驶时电量是否足够
}

// DriveSession 驾驶会话：反复求解并执行策略直到电量低于下限
type DriveSession struct {
	ID                int64       `json:"id" db:"id"`
	Algorithm         Algorithm   `json:"algorithm" db:"algorithm"`
	Environment       Environment `json:"environment"`
	CapacityKwh       float64     `json:"capacity_kwh" db:"capacity_kwh"`
	StartChargeKwh    float64     `json:"start_charge_kwh" db:"start_charge_kwh"`
	EndChargeKwh      *float64    `json:"end_charge_kwh,omitempty" db:"end_charge_kwh"`
	DistanceKm        float64     `json:"distance_km" db:"distance_km"`
	StrategyCount     int         `json:"strategy_count" db:"strategy_count"`
	StepsExecuted     int         `json:"steps_executed" db:"steps_executed"`
	StepsSkipped      int         `json:"steps_skipped" db:"steps_skipped"`
	Seed              uint64      `json:"seed" db:"seed"`
	StartTime         time.Time   `json:"start_time" db:"start_time"`
	EndTime           *time.Time  `json:"end_time,omitempty" db:"end_time"`
	StopReason        string      `json:"stop_reason,omitempty" db:"stop_reason"`
	EndBatteryPercent *float64    `json:"end_battery_percent,omitempty" db:"end_battery_percent"`
}
