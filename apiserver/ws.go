package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// clientMessage 客户端主动发来的消息
type clientMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// handleWebSocket 处理 WebSocket 连接
//
// 白名单外的 Origin 在握手阶段拒绝, 不会收到任何事件。
// 连接建立后客户端的 {type, data} 消息会原样转播给全部连接。
func (s *Server) handleWebSocket(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if !s.originAllowed(origin) {
		log.Warn().Str("origin", origin).Msg("拒绝来自未授权 Origin 的 WebSocket 连接")
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s.registry.Register(conn)
	s.monitor.SetConnections(s.registry.Count())
	defer func() {
		s.registry.Unregister(conn)
		s.monitor.SetConnections(s.registry.Count())
	}()

	log.Info().Str("origin", origin).Msg("新 WebSocket 客户端已连接")

	// 握手应答
	s.registry.Send(conn, "connection_status", map[string]any{
		"status":  "connected",
		"message": "Successfully connected to Forge WebSocket server",
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			// 对端断开或消息畸形都在这里结束连接
			log.Debug().Err(err).Msg("WebSocket 读取结束")
			return
		}

		if msg.Type == "" {
			continue
		}
		if msg.Data == nil {
			msg.Data = map[string]any{}
		}
		s.registry.Broadcast(msg.Type, msg.Data)
	}
}
