package optimizer

import (
	"math/rand/v2"

	"github.com/langchou/ecodrive/internal/models"
)

// 随机速度区间 [MinSpeed, MaxSpeed) km/h
const (
	MinSpeed = 30.0
	MaxSpeed = 120.0
)

// NewRand 创建随机源，seed 为 0 时使用随机种子
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// RandomAction 生成一个随机动作
func RandomAction(rng *rand.Rand) models.Action {
	return models.Action{
		Speed: MinSpeed + rng.Float64()*(MaxSpeed-MinSpeed),
		Mode:  models.Modes[rng.IntN(len(models.Modes))],
	}
}

// RandomActions 生成 n 个随机动作
func RandomActions(rng *rand.Rand, n int) []models.Action {
	if n <= 0 {
		return []models.Action{}
	}
	actions := make([]models.Action, n)
	for i := range actions {
		actions[i] = RandomAction(rng)
	}
	return actions
}
