package events

import (
	"net/http"
	"time"

	"ehs-backend/internal/permit"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler 通过 WebSocket 推送许可证与停工令事件
type WebSocketHandler struct {
	bus      *permit.EventBus
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建处理器
func NewWebSocketHandler(bus *permit.EventBus) *WebSocketHandler {
	return &WebSocketHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect 升级连接并开始推送。带 permit_id 参数时只推送该许可证的
// 事件，否则推送全部事件。
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if h == nil || h.bus == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "事件推送服务未就绪"})
		return
	}

	var (
		events <-chan permit.Event
		cancel func()
	)
	if permitID := c.Query("permit_id"); permitID != "" {
		events, cancel = h.bus.Subscribe(permitID)
	} else {
		events, cancel = h.bus.SubscribeAll()
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		return
	}

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	})

	_ = conn.WriteJSON(gin.H{
		"type":    "connected",
		"message": "事件推送已连接",
	})

	done := make(chan struct{})
	go h.readLoop(conn, done)
	go h.writeLoop(conn, events, cancel, done)
}

// readLoop 只为响应客户端的关闭与 ping，不处理业务消息
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, events <-chan permit.Event, cancel func(), done chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		cancel()
		_ = conn.Close()
	}()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
