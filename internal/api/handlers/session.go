package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/repository"
	"github.com/langchou/ecodrive/internal/service"
)

// CreateSession 运行驾驶会话
// ?async=true 时在后台运行并立即返回 202，进度通过 WebSocket 推送
func (h *Handler) CreateSession(c *gin.Context) {
	var req service.SessionRequest
	if !bindOptional(c, &req) {
		return
	}
	if req.Algorithm == "" {
		req.Algorithm = models.AlgorithmGenetic
	}

	if c.Query("async") == "true" {
		session, err := h.strategies.StartSession(req)
		if err != nil {
			h.sessionError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"data": session})
		return
	}

	session, err := h.strategies.RunSession(c.Request.Context(), req)
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": session})
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Failed to run drive session", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// ListSessions 获取会话列表，同时返回进行中的会话
func (h *Handler) ListSessions(c *gin.Context) {
	active := h.strategies.ActiveSessions()
	if h.sessions == nil {
		c.JSON(http.StatusOK, gin.H{
			"data":   []*models.DriveSession{},
			"active": active,
		})
		return
	}

	page, perPage, offset := pagination(c)
	sessions, err := h.sessions.List(c.Request.Context(), perPage, offset)
	if err != nil {
		h.logger.Error("Failed to list drive sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list drive sessions"})
		return
	}

	total, _ := h.sessions.Count(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"data":   sessions,
		"active": active,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetSession 获取会话详情，进行中的会话返回最新快照
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := parseID(c, "session")
	if !ok {
		return
	}

	for _, s := range h.strategies.ActiveSessions() {
		if s.ID == id {
			c.JSON(http.StatusOK, gin.H{"data": s, "active": true})
			return
		}
	}

	if h.sessions == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	session, err := h.sessions.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
			return
		}
		h.logger.Error("Failed to get drive session", zap.Error(err), zap.Int64("session_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get drive session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session, "active": false})
}

// ListSessionRuns 获取会话内的策略
func (h *Handler) ListSessionRuns(c *gin.Context) {
	id, ok := parseID(c, "session")
	if !ok {
		return
	}
	if h.runs == nil {
		persistenceDisabled(c)
		return
	}

	runs, err := h.runs.ListBySession(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list session runs", zap.Error(err), zap.Int64("session_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list session runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// ListRuns 获取策略列表
func (h *Handler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		persistenceDisabled(c)
		return
	}

	page, perPage, offset := pagination(c)
	runs, err := h.runs.List(c.Request.Context(), perPage, offset)
	if err != nil {
		h.logger.Error("Failed to list strategy runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list strategy runs"})
		return
	}

	total, _ := h.runs.Count(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"data": runs,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetRun 获取策略详情 (含步骤)
func (h *Handler) GetRun(c *gin.Context) {
	id, ok := parseID(c, "run")
	if !ok {
		return
	}
	if h.runs == nil {
		persistenceDisabled(c)
		return
	}

	run, err := h.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
			return
		}
		h.logger.Error("Failed to get strategy run", zap.Error(err), zap.Int64("run_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get strategy run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}
