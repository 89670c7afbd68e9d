package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType WebSocket 消息类型
const (
	MsgTypeInit            = "init"             // 初始化数据（进行中的会话）
	MsgTypeSubscribed      = "subscribed"       // 订阅确认
	MsgTypeSessionStarted  = "session_started"  // 会话开始
	MsgTypeSessionFinished = "session_finished" // 会话结束
	MsgTypeEnvironment     = "environment"      // 环境影响
	MsgTypeStep            = "step"             // 单步行驶
	MsgTypeBattery         = "battery"          // 电池状态
	MsgTypeLowBattery      = "low_battery"      // 低电量警告
	MsgTypeStrategy        = "strategy"         // 策略完成
	MsgTypeGeneration      = "generation"       // 进化进度
	MsgTypeError           = "error"            // 错误消息
)

// Message WebSocket 消息结构
type Message struct {
	Type      string      `json:"type"`
	SessionID int64       `json:"session_id,omitempty"`
	Data      interface{} `json:"data"`
}

// ClientRequest 客户端发来的订阅请求
type ClientRequest struct {
	Action    string `json:"action"` // subscribe / unsubscribe
	SessionID int64  `json:"session_id"`
}

// envelope 待广播的消息，sessionID 为 0 表示发给所有客户端
type envelope struct {
	sessionID int64
	data      []byte
}

// Client WebSocket 客户端
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	sendMu sync.Mutex // 保护 send 的写入与关闭
	closed bool

	mu       sync.RWMutex
	sessions map[int64]bool // 为空时接收所有会话
}

// Hub WebSocket 连接管理中心
type Hub struct {
	logger     *zap.Logger
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // Run 退出后关闭
	mu         sync.RWMutex

	// 初始数据提供者回调
	getInitData func() interface{}
}

// NewHub 创建 Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetInitDataProvider 设置初始数据提供者
func (h *Hub) SetInitDataProvider(provider func() interface{}) {
	h.getInitData = provider
}

// Run 运行 Hub，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				client.closeSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client connected", zap.Int("total_clients", total))

			// 发送初始数据
			h.sendInitData(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected", zap.Int("total_clients", total))

		case env := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(env.sessionID) {
					continue
				}
				if !client.deliver(env.data) {
					// 慢消费者，关闭连接
					client.closeSend()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// sendInitData 发送初始数据给新连接的客户端
func (h *Hub) sendInitData(client *Client) {
	if h.getInitData == nil {
		return
	}

	initData := h.getInitData()
	if initData == nil {
		h.logger.Warn("Init data provider returned nil")
		return
	}

	data, err := json.Marshal(Message{Type: MsgTypeInit, Data: initData})
	if err != nil {
		h.logger.Error("Failed to marshal init data", zap.Error(err))
		return
	}

	if client.deliver(data) {
		h.logger.Debug("Sent init data to client")
	} else {
		h.logger.Warn("Failed to send init data, client buffer full")
	}
}

// BroadcastToSession 广播某个会话的消息，订阅了该会话或未设置订阅的客户端会收到
// 广播队列已满时丢弃消息，不阻塞调用方
func (h *Hub) BroadcastToSession(sessionID int64, msgType string, data interface{}) {
	payload, err := json.Marshal(Message{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err), zap.String("type", msgType))
		return
	}

	select {
	case h.broadcast <- envelope{sessionID: sessionID, data: payload}:
	default:
		h.logger.Warn("Broadcast queue full, dropping message",
			zap.String("type", msgType),
			zap.Int64("session_id", sessionID))
	}
}

// BroadcastMessage 广播结构化消息给所有客户端
func (h *Hub) BroadcastMessage(msgType string, data interface{}) {
	h.BroadcastToSession(0, msgType, data)
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		sessions: make(map[int64]bool),
	}
}

// Register 注册客户端，Hub 已停止时直接关闭发送通道
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.done:
		c.closeSend()
	}
}

// Unregister 注销客户端
func (c *Client) Unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// deliver 非阻塞写入发送通道，通道已关闭或已满时返回 false
func (c *Client) deliver(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend 关闭发送通道，可重复调用
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// wants 是否需要接收某个会话的消息
func (c *Client) wants(sessionID int64) bool {
	if sessionID == 0 {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions) == 0 || c.sessions[sessionID]
}

// handleRequest 处理订阅请求
func (c *Client) handleRequest(req ClientRequest) {
	c.mu.Lock()
	switch req.Action {
	case "subscribe":
		c.sessions[req.SessionID] = true
	case "unsubscribe":
		delete(c.sessions, req.SessionID)
	default:
		c.mu.Unlock()
		c.reply(Message{Type: MsgTypeError, Data: "unknown action " + req.Action})
		return
	}
	subscribed := make([]int64, 0, len(c.sessions))
	for id := range c.sessions {
		subscribed = append(subscribed, id)
	}
	c.mu.Unlock()

	c.reply(Message{Type: MsgTypeSubscribed, Data: subscribed})
}

// reply 直接回复当前客户端
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.deliver(data)
}

// ReadPump 读取订阅请求（同时保持连接活跃）
func (c *Client) ReadPump() {
	defer func() {
		c.Unregister()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var req ClientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(Message{Type: MsgTypeError, Data: "invalid request"})
			continue
		}
		c.handleRequest(req)
	}
}

// WritePump 发送消息
func (c *Client) WritePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}
