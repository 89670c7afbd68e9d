package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/report"
)

// GetEnvironment 查询环境系数及各模式的每公里能耗
func (h *Handler) GetEnvironment(c *gin.Context) {
	terrain, err := models.ParseTerrain(c.Query("terrain"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	temperature, err := strconv.ParseFloat(c.DefaultQuery("temperature", "25"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid temperature"})
		return
	}

	env := models.Environment{Terrain: terrain, Temperature: temperature}
	rates := make(map[string]float64, len(models.Modes))
	for _, m := range models.Modes {
		rates[m.String()] = m.ConsumptionRate() * env.Multiplier()
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"impact":             report.NewEnvironmentImpact(0, env),
			"terrain_factor":     env.TerrainFactor(),
			"temperature_factor": env.TemperatureFactor(),
			"kwh_per_km":         rates,
		},
	})
}
