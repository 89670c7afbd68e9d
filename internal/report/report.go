// Package report 定义驾驶过程的输出接口。
//
// 求解器和车辆只通过 Reporter 上报事件，本身不做任何格式化输出。
package report

import (
	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/optimizer"
)

// StepEvent 单步行驶事件
type StepEvent struct {
	SessionID       int64         `json:"session_id"`
	Action          models.Action `json:"action"`
	DistanceKm      float64       `json:"distance_km"`
	TotalDistanceKm float64       `json:"total_distance_km"`
	EnergyKwh       float64       `json:"energy_kwh"`
	Executed        bool          `json:"executed"` // false 表示电量不足未执行
}

// BatteryStatus 电池状态
type BatteryStatus struct {
	SessionID        int64   `json:"session_id"`
	RemainingKwh     float64 `json:"remaining_kwh"`
	Percent          float64 `json:"percent"`
	EstimatedRangeKm float64 `json:"estimated_range_km"`
	Low              bool    `json:"low"`
}

// EnvironmentImpact 环境对能耗的影响
type EnvironmentImpact struct {
	SessionID         int64              `json:"session_id"`
	Environment       models.Environment `json:"environment"`
	TerrainImpact     float64            `json:"terrain_impact_percent"`
	TemperatureImpact float64            `json:"temperature_impact_percent"`
	OverallMultiplier float64            `json:"overall_multiplier"`
}

// NewEnvironmentImpact 计算环境影响
func NewEnvironmentImpact(sessionID int64, env models.Environment) EnvironmentImpact {
	return EnvironmentImpact{
		SessionID:         sessionID,
		Environment:       env,
		TerrainImpact:     env.TerrainImpactPercent(),
		TemperatureImpact: env.TemperatureImpactPercent(),
		OverallMultiplier: env.Multiplier(),
	}
}

// StrategyEvent 一个策略求解并执行完毕
type StrategyEvent struct {
	SessionID     int64        `json:"session_id"`
	Sequence      int          `json:"sequence"`
	Plan          *models.Plan `json:"plan"`
	StepsExecuted int          `json:"steps_executed"`
	StepsSkipped  int          `json:"steps_skipped"`
}

// GenerationEvent 遗传算法进化进度
type GenerationEvent struct {
	SessionID int64                     `json:"session_id"`
	Sequence  int                       `json:"sequence"`
	Stats     optimizer.GenerationStats `json:"stats"`
}

// SessionEvent 会话开始或结束
type SessionEvent struct {
	Session  models.DriveSession `json:"session"`
	Finished bool                `json:"finished"`
}

// Reporter 驾驶过程输出接口
type Reporter interface {
	ReportSession(event SessionEvent)
	ReportEnvironment(impact EnvironmentImpact)
	ReportStep(event StepEvent)
	ReportBattery(status BatteryStatus)
	ReportLowBattery(status BatteryStatus)
	ReportStrategy(event StrategyEvent)
	ReportGeneration(event GenerationEvent)
}

// Nop 丢弃所有事件
type Nop struct{}

func (Nop) ReportSession(SessionEvent)          {}
func (Nop) ReportEnvironment(EnvironmentImpact) {}
func (Nop) ReportStep(StepEvent)                {}
func (Nop) ReportBattery(BatteryStatus)         {}
func (Nop) ReportLowBattery(BatteryStatus)      {}
func (Nop) ReportStrategy(StrategyEvent)        {}
func (Nop) ReportGeneration(GenerationEvent)    {}

// Multi 将事件分发给多个 Reporter
type Multi []Reporter

func (m Multi) ReportSession(event SessionEvent) {
	for _, r := range m {
		r.ReportSession(event)
	}
}

func (m Multi) ReportEnvironment(impact EnvironmentImpact) {
	for _, r := range m {
		r.ReportEnvironment(impact)
	}
}

func (m Multi) ReportStep(event StepEvent) {
	for _, r := range m {
		r.ReportStep(event)
	}
}

func (m Multi) ReportBattery(status BatteryStatus) {
	for _, r := range m {
		r.ReportBattery(status)
	}
}

func (m Multi) ReportLowBattery(status BatteryStatus) {
	for _, r := range m {
		r.ReportLowBattery(status)
	}
}

func (m Multi) ReportStrategy(event StrategyEvent) {
	for _, r := range m {
		r.ReportStrategy(event)
	}
}

func (m Multi) ReportGeneration(event GenerationEvent) {
	for _, r := range m {
		r.ReportGeneration(event)
	}
}
