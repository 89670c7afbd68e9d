package models

import (
	"fmt"
	"strings"
)

// DrivingMode 驾驶模式
type DrivingMode int

// 驾驶模式常量
const (
	ModeEconomy DrivingMode = iota
	ModeNormal
	ModePerformance
)

// Modes 全部驾驶模式，顺序与随机生成时的取值一致
var Modes = []DrivingMode{ModeEconomy, ModeNormal, ModePerformance}

// ConsumptionRate 每公里能耗系数 (kWh)
func (m DrivingMode) ConsumptionRate() float64 {
	switch m {
	case ModeEconomy:
		return 0.09
	case ModeNormal:
		return 0.12
	case ModePerformance:
		return 0.15
	default:
		return 0
	}
}

// String 模式名称
func (m DrivingMode) String() string {
	switch m {
	case ModeEconomy:
		return "economy"
	case ModeNormal:
		return "normal"
	case ModePerformance:
		return "performance"
	default:
		return "unknown"
	}
}

// Valid 是否为已知模式
func (m DrivingMode) Valid() bool {
	return m >= ModeEconomy && m <= ModePerformance
}

// ParseDrivingMode 解析模式名称，兼容 EcoMode/NormalMode/SportMode 旧写法
func ParseDrivingMode(s string) (DrivingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "eco", "ecomode":
		return ModeEconomy, nil
	case "normal", "normalmode":
		return ModeNormal, nil
	case "performance", "sport", "sportmode":
		return ModePerformance, nil
	}
	return ModeNormal, fmt.Errorf("unknown driving mode %q", s)
}

// MarshalText 实现 encoding.TextMarshaler
func (m DrivingMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid driving mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *DrivingMode) UnmarshalText(text []byte) error {
	mode, err := ParseDrivingMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Action 单步驾驶决策
type Action struct {
	Speed float64     `json:"speed"` // km/h
	Mode  DrivingMode `json:"mode"`
}

// CountMode 统计序列中某个模式出现的次数
func CountMode(actions []Action, mode DrivingMode) int {
	n := 0
	for _, a := range actions {
		if a.Mode == mode {
			n++
		}
	}
	return n
}
