package vehicle

import (
	"fmt"
	"time"

	"github.com/langchou/ecodrive/internal/energy"
	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/report"
)

// 自动选择模式的速度阈值 (km/h)
const (
	EcoSpeedBelow         = 30.0
	PerformanceSpeedAbove = 80.0
)

// ModeForSpeed 根据车速自动选择驾驶模式
func ModeForSpeed(speed float64) models.DrivingMode {
	switch {
	case speed > PerformanceSpeedAbove:
		return models.ModePerformance
	case speed < EcoSpeedBelow:
		return models.ModeEconomy
	default:
		return models.ModeNormal
	}
}

// StepResult 单步执行结果
type StepResult struct {
	Action        models.Action `json:"action"`
	DistanceKm    float64       `json:"distance_km"`
	EnergyKwh     float64       `json:"energy_kwh"`
	TotalDistance float64       `json:"total_distance_km"`
	RemainingKwh  float64       `json:"remaining_kwh"`
	Percent       float64       `json:"percent"`
	Low           bool          `json:"low"`
}

// EnergyManagementSystem 能量管理系统，按动作消耗电量并上报状态
// 不可并发使用
type EnergyManagementSystem struct {
	sessionID     int64
	battery       *Battery
	mode          models.DrivingMode
	totalDistance float64
	reporter      report.Reporter
}

// NewEnergyManagementSystem 创建能量管理系统，初始为普通模式
func NewEnergyManagementSystem(sessionID int64, battery *Battery, reporter report.Reporter) *EnergyManagementSystem {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &EnergyManagementSystem{
		sessionID: sessionID,
		battery:   battery,
		mode:      models.ModeNormal,
		reporter:  reporter,
	}
}

// SwitchMode 切换驾驶模式
func (s *EnergyManagementSystem) SwitchMode(mode models.DrivingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("switch mode: unknown driving mode %d", int(mode))
	}
	s.mode = mode
	return nil
}

// Mode 当前驾驶模式
func (s *EnergyManagementSystem) Mode() models.DrivingMode {
	return s.mode
}

// Battery 电池
func (s *EnergyManagementSystem) Battery() *Battery {
	return s.battery
}

// TotalDistance 累计行驶距离 (km)
func (s *EnergyManagementSystem) TotalDistance() float64 {
	return s.totalDistance
}

// Cruise 以给定车速行驶一步，模式按车速自动选择
func (s *EnergyManagementSystem) Cruise(speed float64, step time.Duration, env models.Environment) (*StepResult, error) {
	return s.Drive(models.Action{Speed: speed, Mode: ModeForSpeed(speed)}, step, env)
}

// Drive 按动作行驶一步
// 电量不足时不消耗电量，上报未执行的一步并返回 ErrInsufficientCharge
func (s *EnergyManagementSystem) Drive(action models.Action, step time.Duration, env models.Environment) (*StepResult, error) {
	if err := s.SwitchMode(action.Mode); err != nil {
		return nil, err
	}
	distance, used := energy.Cost(action, env, step)

	if used > s.battery.Remaining() {
		s.reporter.ReportStep(report.StepEvent{
			SessionID:       s.sessionID,
			Action:          action,
			DistanceKm:      distance,
			TotalDistanceKm: s.totalDistance,
			EnergyKwh:       used,
			Executed:        false,
		})
		return nil, fmt.Errorf("%w: need %.4f kWh, have %.4f kWh",
			ErrInsufficientCharge, used, s.battery.Remaining())
	}

	s.battery.Consume(used)
	s.totalDistance += distance

	result := &StepResult{
		Action:        action,
		DistanceKm:    distance,
		EnergyKwh:     used,
		TotalDistance: s.totalDistance,
		RemainingKwh:  s.battery.Remaining(),
		Percent:       s.battery.Percentage(),
		Low:           s.battery.IsLow(),
	}

	s.reporter.ReportEnvironment(report.NewEnvironmentImpact(s.sessionID, env))
	s.reporter.ReportStep(report.StepEvent{
		SessionID:       s.sessionID,
		Action:          action,
		DistanceKm:      distance,
		TotalDistanceKm: s.totalDistance,
		EnergyKwh:       used,
		Executed:        true,
	})
	status := s.status(env)
	s.reporter.ReportBattery(status)
	if status.Low {
		s.reporter.ReportLowBattery(status)
	}
	return result, nil
}

// status 当前电池状态，续航按当前模式和环境估算
func (s *EnergyManagementSystem) status(env models.Environment) report.BatteryStatus {
	rate := s.mode.ConsumptionRate() * env.Multiplier()
	return report.BatteryStatus{
		SessionID:        s.sessionID,
		RemainingKwh:     s.battery.Remaining(),
		Percent:          s.battery.Percentage(),
		EstimatedRangeKm: s.battery.RemainingDistance(rate),
		Low:              s.battery.IsLow(),
	}
}
