package report

import (
	"go.uber.org/zap"
)

// LogReporter 通过 zap 输出驾驶过程
type LogReporter struct {
	logger *zap.Logger
}

// NewLogReporter 创建日志输出
func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// ReportSession 输出会话开始/结束
func (r *LogReporter) ReportSession(event SessionEvent) {
	session := event.Session
	if !event.Finished {
		r.logger.Info("Drive session started",
			zap.Int64("session_id", session.ID),
			zap.String("algorithm", string(session.Algorithm)),
			zap.Float64("capacity_kwh", session.CapacityKwh),
			zap.Uint64("seed", session.Seed))
		return
	}
	r.logger.Info("Drive session finished",
		zap.Int64("session_id", session.ID),
		zap.String("stop_reason", session.StopReason),
		zap.Int("strategies", session.StrategyCount),
		zap.Float64("distance_km", session.DistanceKm),
		zap.Int("steps_executed", session.StepsExecuted),
		zap.Int("steps_skipped", session.StepsSkipped))
}

// ReportEnvironment 输出环境影响
func (r *LogReporter) ReportEnvironment(impact EnvironmentImpact) {
	r.logger.Info("Environment",
		zap.Int64("session_id", impact.SessionID),
		zap.Stringer("terrain", impact.Environment.Terrain),
		zap.Float64("terrain_impact_percent", impact.TerrainImpact),
		zap.Float64("temperature", impact.Environment.Temperature),
		zap.Float64("temperature_impact_percent", impact.TemperatureImpact))
}

// ReportStep 输出单步行驶
func (r *LogReporter) ReportStep(event StepEvent) {
	fields := []zap.Field{
		zap.Int64("session_id", event.SessionID),
		zap.Float64("speed_kmh", event.Action.Speed),
		zap.Stringer("mode", event.Action.Mode),
		zap.Float64("distance_km", event.DistanceKm),
		zap.Float64("energy_kwh", event.EnergyKwh),
	}
	if !event.Executed {
		r.logger.Warn("Not enough battery for step", fields...)
		return
	}
	fields = append(fields, zap.Float64("total_distance_km", event.TotalDistanceKm))
	r.logger.Info("Drove step", fields...)
}

// ReportBattery 输出电池状态
func (r *LogReporter) ReportBattery(status BatteryStatus) {
	r.logger.Info("Battery",
		zap.Int64("session_id", status.SessionID),
		zap.Float64("remaining_kwh", status.RemainingKwh),
		zap.Float64("percent", status.Percent),
		zap.Float64("estimated_range_km", status.EstimatedRangeKm))
}

// ReportLowBattery 低电量警告
func (r *LogReporter) ReportLowBattery(status BatteryStatus) {
	r.logger.Warn("Battery low",
		zap.Int64("session_id", status.SessionID),
		zap.Float64("percent", status.Percent))
}

// ReportStrategy 输出策略执行结果
func (r *LogReporter) ReportStrategy(event StrategyEvent) {
	fields := []zap.Field{
		zap.Int64("session_id", event.SessionID),
		zap.Int("sequence", event.Sequence),
		zap.Int("steps_executed", event.StepsExecuted),
		zap.Int("steps_skipped", event.StepsSkipped),
	}
	if event.Plan != nil {
		fields = append(fields,
			zap.String("algorithm", string(event.Plan.Algorithm)),
			zap.Int("actions", len(event.Plan.Actions)),
			zap.Float64("planned_distance_km", event.Plan.Distance))
	}
	r.logger.Info("Strategy finished", fields...)
}

// ReportGeneration 输出进化进度
func (r *LogReporter) ReportGeneration(event GenerationEvent) {
	r.logger.Debug("Generation",
		zap.Int64("session_id", event.SessionID),
		zap.Int("sequence", event.Sequence),
		zap.Int("generation", event.Stats.Generation),
		zap.Float64("best", event.Stats.Best),
		zap.Float64("mean", event.Stats.Mean))
}
