package energy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/ecodrive/internal/models"
)

func TestCost_FlatMildTemperature(t *testing.T) {
	env := models.Environment{Terrain: models.TerrainFlat, Temperature: 25}
	require.Equal(t, 1.0, env.Multiplier())

	distance, energy := Cost(models.Action{Speed: 60, Mode: models.ModeNormal}, env, 60*time.Second)
	assert.InDelta(t, 1.0, distance, 1e-12)
	assert.InDelta(t, 0.12, energy, 1e-12)
}

func TestCost_UphillHot(t *testing.T) {
	env := models.Environment{Terrain: models.TerrainUphill, Temperature: 48}
	assert.Equal(t, 1.2, env.TerrainFactor())
	assert.Equal(t, 1.05, env.TemperatureFactor())
	assert.InDelta(t, 1.26, env.Multiplier(), 1e-12)

	distance, energy := Cost(models.Action{Speed: 60, Mode: models.ModeNormal}, env, 60*time.Second)
	assert.InDelta(t, 1.0, distance, 1e-12)
	assert.InDelta(t, 0.1512, energy, 1e-12)
}

func TestCost_Pure(t *testing.T) {
	envs := []models.Environment{
		{Terrain: models.TerrainFlat, Temperature: 25},
		{Terrain: models.TerrainUphill, Temperature: 0},
		{Terrain: models.TerrainDownhill, Temperature: 50},
	}
	for _, env := range envs {
		for _, mode := range models.Modes {
			for _, speed := range []float64{0, 30, 47.5, 119.9} {
				a := models.Action{Speed: speed, Mode: mode}
				d1, e1 := Cost(a, env, 45*time.Second)
				d2, e2 := Cost(a, env, 45*time.Second)
				assert.Equal(t, d1, d2)
				assert.Equal(t, e1, e2)
			}
		}
	}
}

func TestCost_NeverNegative(t *testing.T) {
	env := models.Environment{Terrain: models.TerrainDownhill, Temperature: -10}
	for _, mode := range models.Modes {
		for _, speed := range []float64{-20, 0, 80} {
			for _, step := range []time.Duration{-time.Second, 0, time.Minute} {
				d, e := Cost(models.Action{Speed: speed, Mode: mode}, env, step)
				assert.GreaterOrEqual(t, d, 0.0)
				assert.GreaterOrEqual(t, e, 0.0)
			}
		}
	}
}

func TestCost_TemperatureBands(t *testing.T) {
	cases := []struct {
		temp   float64
		factor float64
	}{
		{3.9, 1.1},
		{4, 1.0},
		{25, 1.0},
		{46, 1.0},
		{46.1, 1.05},
	}
	for _, c := range cases {
		env := models.Environment{Temperature: c.temp}
		assert.Equal(t, c.factor, env.TemperatureFactor(), "temperature %v", c.temp)
	}
}

func TestSequence(t *testing.T) {
	env := models.Environment{Terrain: models.TerrainDownhill, Temperature: 20}
	actions := []models.Action{
		{Speed: 60, Mode: models.ModeEconomy},
		{Speed: 120, Mode: models.ModePerformance},
	}
	distance, energy := Sequence(actions, env, time.Minute)
	assert.InDelta(t, 3.0, distance, 1e-12)
	assert.InDelta(t, (0.09*1+0.15*2)*0.8, energy, 1e-12)

	d, e := Sequence(nil, env, time.Minute)
	assert.Zero(t, d)
	assert.Zero(t, e)
}
