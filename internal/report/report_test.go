package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/pkg/ws"
)

type broadcast struct {
	sessionID int64
	msgType   string
	data      interface{}
}

type fakeHub struct {
	sent []broadcast
}

func (h *fakeHub) BroadcastToSession(sessionID int64, msgType string, data interface{}) {
	h.sent = append(h.sent, broadcast{sessionID, msgType, data})
}

func TestHubReporter_MessageTypes(t *testing.T) {
	hub := &fakeHub{}
	r := NewHubReporter(hub)

	r.ReportSession(SessionEvent{Session: models.DriveSession{ID: 3}})
	r.ReportEnvironment(NewEnvironmentImpact(3, models.Environment{Terrain: models.TerrainUphill}))
	r.ReportStep(StepEvent{SessionID: 3, Executed: true})
	r.ReportBattery(BatteryStatus{SessionID: 3})
	r.ReportLowBattery(BatteryStatus{SessionID: 3, Low: true})
	r.ReportStrategy(StrategyEvent{SessionID: 3})
	r.ReportGeneration(GenerationEvent{SessionID: 3})
	r.ReportSession(SessionEvent{Session: models.DriveSession{ID: 3}, Finished: true})

	types := make([]string, 0, len(hub.sent))
	for _, b := range hub.sent {
		assert.Equal(t, int64(3), b.sessionID)
		types = append(types, b.msgType)
	}
	assert.Equal(t, []string{
		ws.MsgTypeSessionStarted,
		ws.MsgTypeEnvironment,
		ws.MsgTypeStep,
		ws.MsgTypeBattery,
		ws.MsgTypeLowBattery,
		ws.MsgTypeStrategy,
		ws.MsgTypeGeneration,
		ws.MsgTypeSessionFinished,
	}, types)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &fakeHub{}, &fakeHub{}
	m := Multi{NewHubReporter(a), Nop{}, NewHubReporter(b)}

	m.ReportStep(StepEvent{SessionID: 1})
	m.ReportStrategy(StrategyEvent{SessionID: 1})

	assert.Len(t, a.sent, 2)
	assert.Len(t, b.sent, 2)
}

func TestNewEnvironmentImpact(t *testing.T) {
	impact := NewEnvironmentImpact(1, models.Environment{Terrain: models.TerrainUphill, Temperature: 0})
	assert.InDelta(t, 20, impact.TerrainImpact, 1e-9)
	assert.InDelta(t, 10, impact.TemperatureImpact, 1e-9)
	assert.InDelta(t, 1.32, impact.OverallMultiplier, 1e-9)
}

func TestLogReporter_SkippedStepIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := NewLogReporter(zap.New(core))

	r.ReportStep(StepEvent{SessionID: 1, Executed: false})
	r.ReportStep(StepEvent{SessionID: 1, Executed: true})
	r.ReportLowBattery(BatteryStatus{SessionID: 1, Percent: 12})

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "Drove step", entries[1].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	}
}
