package report

import (
	"github.com/langchou/ecodrive/pkg/ws"
)

// Broadcaster 按会话广播消息，由 ws.Hub 实现
type Broadcaster interface {
	BroadcastToSession(sessionID int64, msgType string, data interface{})
}

// HubReporter 将驾驶事件推送给 WebSocket 订阅者
type HubReporter struct {
	hub Broadcaster
}

// NewHubReporter 创建 WebSocket 输出
func NewHubReporter(hub Broadcaster) *HubReporter {
	return &HubReporter{hub: hub}
}

func (r *HubReporter) ReportSession(event SessionEvent) {
	msgType := ws.MsgTypeSessionStarted
	if event.Finished {
		msgType = ws.MsgTypeSessionFinished
	}
	r.hub.BroadcastToSession(event.Session.ID, msgType, event.Session)
}

func (r *HubReporter) ReportEnvironment(impact EnvironmentImpact) {
	r.hub.BroadcastToSession(impact.SessionID, ws.MsgTypeEnvironment, impact)
}

func (r *HubReporter) ReportStep(event StepEvent) {
	r.hub.BroadcastToSession(event.SessionID, ws.MsgTypeStep, event)
}

func (r *HubReporter) ReportBattery(status BatteryStatus) {
	r.hub.BroadcastToSession(status.SessionID, ws.MsgTypeBattery, status)
}

func (r *HubReporter) ReportLowBattery(status BatteryStatus) {
	r.hub.BroadcastToSession(status.SessionID, ws.MsgTypeLowBattery, status)
}

func (r *HubReporter) ReportStrategy(event StrategyEvent) {
	r.hub.BroadcastToSession(event.SessionID, ws.MsgTypeStrategy, event)
}

// ReportGeneration 每代都推送，前端据此绘制进化曲线
func (r *HubReporter) ReportGeneration(event GenerationEvent) {
	r.hub.BroadcastToSession(event.SessionID, ws.MsgTypeGeneration, event)
}
