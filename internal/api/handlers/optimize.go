package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/ecodrive/internal/chart"
	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/service"
)

// OptimizeDynamic 动态规划单次求解
func (h *Handler) OptimizeDynamic(c *gin.Context) {
	h.optimize(c, models.AlgorithmDynamic)
}

// OptimizeGenetic 遗传算法单次求解
func (h *Handler) OptimizeGenetic(c *gin.Context) {
	h.optimize(c, models.AlgorithmGenetic)
}

func (h *Handler) optimize(c *gin.Context, algorithm models.Algorithm) {
	var req service.OptimizeRequest
	if !bindOptional(c, &req) {
		return
	}
	req.Algorithm = algorithm

	result, err := h.strategies.Optimize(c.Request.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to optimize", zap.Error(err), zap.String("algorithm", string(algorithm)))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	// 遗传算法可以直接返回进化曲线图片
	if c.Query("chart") == "png" && len(result.History) > 0 {
		c.Header("Content-Type", "image/png")
		c.Status(http.StatusOK)
		title := fmt.Sprintf("%s seed=%d", algorithm, result.Seed)
		if err := chart.WriteFitnessHistory(c.Writer, title, result.History); err != nil {
			h.logger.Error("Failed to render fitness chart", zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// bindOptional 请求体可以为空
func bindOptional(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return false
	}
	return true
}
