package models

import (
	"fmt"
	"math"
	"strings"
)

// Terrain 地形类型
type Terrain int

// 地形常量
const (
	TerrainFlat Terrain = iota
	TerrainUphill
	TerrainDownhill
)

// 温度阈值 (°C)
const (
	ColdThreshold = 4.0
	HotThreshold  = 46.0
)

// Factor 地形能耗系数
func (t Terrain) Factor() float64 {
	switch t {
	case TerrainUphill:
		return 1.2 // 上坡耗电更多
	case TerrainDownhill:
		return 0.8
	default:
		return 1.0
	}
}

// String 地形名称
func (t Terrain) String() string {
	switch t {
	case TerrainFlat:
		return "flat"
	case TerrainUphill:
		return "uphill"
	case TerrainDownhill:
		return "downhill"
	default:
		return "unknown"
	}
}

// ParseTerrain 解析地形名称
func ParseTerrain(s string) (Terrain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flat", "":
		return TerrainFlat, nil
	case "uphill":
		return TerrainUphill, nil
	case "downhill":
		return TerrainDownhill, nil
	}
	return TerrainFlat, fmt.Errorf("unknown terrain %q", s)
}

// MarshalText 实现 encoding.TextMarshaler
func (t Terrain) MarshalText() ([]byte, error) {
	if t < TerrainFlat || t > TerrainDownhill {
		return nil, fmt.Errorf("invalid terrain %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (t *Terrain) UnmarshalText(text []byte) error {
	terrain, err := ParseTerrain(string(text))
	if err != nil {
		return err
	}
	*t = terrain
	return nil
}

// Environment 行驶环境，一次优化过程中保持不变
type Environment struct {
	Terrain     Terrain `json:"terrain"`
	Temperature float64 `json:"temperature"` // °C
}

// Validate 地形必须是已知取值，温度必须是有限数
func (e Environment) Validate() error {
	if e.Terrain < TerrainFlat || e.Terrain > TerrainDownhill {
		return fmt.Errorf("invalid terrain %d", int(e.Terrain))
	}
	if math.IsNaN(e.Temperature) || math.IsInf(e.Temperature, 0) {
		return fmt.Errorf("invalid temperature %v", e.Temperature)
	}
	return nil
}

// TerrainFactor 地形系数
func (e Environment) TerrainFactor() float64 {
	return e.Terrain.Factor()
}

// TemperatureFactor 温度系数
func (e Environment) TemperatureFactor() float64 {
	switch {
	case e.Temperature < ColdThreshold:
		return 1.1
	case e.Temperature > HotThreshold:
		return 1.05
	default:
		return 1.0
	}
}

// Multiplier 综合能耗倍率 = 地形系数 × 温度系数
func (e Environment) Multiplier() float64 {
	return e.TerrainFactor() * e.TemperatureFactor()
}

// TerrainImpactPercent 地形对能耗的影响百分比，负值表示降低
func (e Environment) TerrainImpactPercent() float64 {
	return (e.TerrainFactor() - 1.0) * 100
}

// TemperatureImpactPercent 温度对能耗的影响百分比
func (e Environment) TemperatureImpactPercent() float64 {
	return (e.TemperatureFactor() - 1.0) * 100
}
