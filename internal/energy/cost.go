// Package energy 实现单步驾驶的距离/能耗模型。
//
// 模型是纯函数：同样的输入总是得到同样的输出，不持有任何状态。
package energy

import (
	"time"

	"github.com/langchou/ecodrive/internal/models"
)

// secondsPerHour km/h 与秒之间的换算
const secondsPerHour = 3600.0

// Cost 计算一步行驶的距离 (km) 和能耗 (kWh)
// 速度或时长为负时按 0 处理，保证结果非负
func Cost(action models.Action, env models.Environment, step time.Duration) (distance, energy float64) {
	speed := action.Speed
	if speed < 0 {
		speed = 0
	}
	seconds := step.Seconds()
	if seconds < 0 {
		seconds = 0
	}

	distance = speed * seconds / secondsPerHour
	energy = action.Mode.ConsumptionRate() * distance * env.Multiplier()
	return distance, energy
}

// Sequence 累加整个动作序列的距离和能耗，不考虑电量限制
func Sequence(actions []models.Action, env models.Environment, step time.Duration) (distance, energy float64) {
	for _, a := range actions {
		d, e := Cost(a, env, step)
		distance += d
		energy += e
	}
	return distance, energy
}
