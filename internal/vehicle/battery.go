// Package vehicle 模拟电池和能量管理系统。
package vehicle

import (
	"errors"
	"fmt"
	"math"
)

// LowBatteryPercent 低电量阈值
const LowBatteryPercent = 20.0

// ErrInsufficientCharge 剩余电量不足以完成动作
var ErrInsufficientCharge = errors.New("vehicle: insufficient charge")

// Battery 电池，电量始终在 [0, capacity] 内
type Battery struct {
	capacity float64
	charge   float64
}

// NewBattery 创建满电电池
func NewBattery(capacity float64) (*Battery, error) {
	if math.IsNaN(capacity) || math.IsInf(capacity, 0) || capacity <= 0 {
		return nil, fmt.Errorf("battery capacity must be > 0, got %v", capacity)
	}
	return &Battery{capacity: capacity, charge: capacity}, nil
}

// Capacity 总容量 (kWh)
func (b *Battery) Capacity() float64 {
	return b.capacity
}

// Remaining 剩余电量 (kWh)
func (b *Battery) Remaining() float64 {
	return b.charge
}

// Percentage 剩余电量百分比
func (b *Battery) Percentage() float64 {
	return b.charge / b.capacity * 100
}

// Consume 扣减电量，最低到 0
func (b *Battery) Consume(amount float64) {
	if amount <= 0 {
		return
	}
	b.charge = math.Max(0, b.charge-amount)
}

// Recharge 充电，最高到容量
func (b *Battery) Recharge(amount float64) {
	if amount <= 0 {
		return
	}
	b.charge = math.Min(b.capacity, b.charge+amount)
}

// RemainingDistance 按每公里能耗 rate (kWh/km) 估算剩余续航
func (b *Battery) RemainingDistance(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return b.charge / rate
}

// IsLow 电量是否低于 LowBatteryPercent
func (b *Battery) IsLow() bool {
	return b.Percentage() < LowBatteryPercent
}
