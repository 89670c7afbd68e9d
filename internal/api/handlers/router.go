package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/ecodrive/internal/models"
	"github.com/langchou/ecodrive/internal/optimizer"
	"github.com/langchou/ecodrive/internal/repository"
	"github.com/langchou/ecodrive/internal/service"
	"github.com/langchou/ecodrive/pkg/ws"
)

// Strategies 策略服务，由 service.StrategyService 实现
type Strategies interface {
	Optimize(ctx context.Context, req service.OptimizeRequest) (*service.OptimizeResult, error)
	RunSession(ctx context.Context, req service.SessionRequest) (*models.DriveSession, error)
	StartSession(req service.SessionRequest) (*models.DriveSession, error)
	ActiveSessions() []models.DriveSession
}

// RunReader 策略记录查询
type RunReader interface {
	GetByID(ctx context.Context, id int64) (*models.StrategyRun, error)
	ListBySession(ctx context.Context, sessionID int64) ([]*models.StrategyRun, error)
	List(ctx context.Context, limit, offset int) ([]*models.StrategyRun, error)
	Count(ctx context.Context) (int64, error)
}

// SessionReader 会话查询
type SessionReader interface {
	GetByID(ctx context.Context, id int64) (*models.DriveSession, error)
	List(ctx context.Context, limit, offset int) ([]*models.DriveSession, error)
	Count(ctx context.Context) (int64, error)
}

// Handler HTTP 处理器
type Handler struct {
	logger     *zap.Logger
	strategies Strategies
	runs       RunReader     // nil 表示未启用持久化
	sessions   SessionReader // nil 表示未启用持久化
	wsHub      *ws.Hub
	upgrader   websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(
	logger *zap.Logger,
	strategies Strategies,
	runs RunReader,
	sessions SessionReader,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		logger:     logger,
		strategies: strategies,
		runs:       runs,
		sessions:   sessions,
		wsHub:      wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 单次求解
		api.POST("/optimize/dynamic", h.OptimizeDynamic)
		api.POST("/optimize/genetic", h.OptimizeGenetic)

		// 驾驶会话
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.GET("/sessions/:id/runs", h.ListSessionRuns)

		// 策略记录
		api.GET("/runs", h.ListRuns)
		api.GET("/runs/:id", h.GetRun)

		// 环境
		api.GET("/environment", h.GetEnvironment)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	client.Register()

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"ws_clients":      h.wsHub.ClientCount(),
		"active_sessions": len(h.strategies.ActiveSessions()),
		"persistence":     h.runs != nil && h.sessions != nil,
	})
}

// statusFor 错误对应的 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, optimizer.ErrInvalidConfig),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrUnknownAlgorithm):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrServiceStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseID 解析路径中的 id
func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID"})
		return 0, false
	}
	return id, true
}

// pagination 解析分页参数
func pagination(c *gin.Context) (page, perPage, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage, (page - 1) * perPage
}

// persistenceDisabled 未启用数据库时的响应
func persistenceDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Persistence is disabled"})
}
