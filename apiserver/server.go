/*
Package apiserver - API 服务

负责处理业务层请求：
- HTTP/JSON REST API (任务提交 / 查询, Agent 目录)
- WebSocket 实时通道
- CORS 白名单
*/
package apiserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/forgeflow/kernel/agent"
	"github.com/forgeflow/kernel/config"
	"github.com/forgeflow/kernel/monitor"
	"github.com/forgeflow/kernel/realtime"
	"github.com/forgeflow/kernel/task"
)

// Server API 服务
type Server struct {
	cfg          config.ServerConfig
	httpServer   *http.Server
	store        *task.Store
	orchestrator *task.Orchestrator
	directory    *agent.Directory
	gateway      agent.Gateway
	registry     *realtime.Registry
	monitor      *monitor.Monitor
	upgrader     websocket.Upgrader
}

// New 创建 API 服务
func New(
	cfg config.ServerConfig,
	store *task.Store,
	orchestrator *task.Orchestrator,
	directory *agent.Directory,
	gateway agent.Gateway,
	registry *realtime.Registry,
	mon *monitor.Monitor,
) *Server {
	s := &Server{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		directory:    directory,
		gateway:      gateway,
		registry:     registry,
		monitor:      mon,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// Start 启动服务并阻塞到 ctx 结束
func (s *Server) Start(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.Timeout.Std(),
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP 服务错误")
		}
	}()

	log.Info().Str("http", s.cfg.HTTPAddr).Msg("API Server 已启动")

	<-ctx.Done()
	return s.shutdown()
}

// Router 组装路由
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggerMiddleware())
	r.Use(s.corsMiddleware())

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)
	r.GET("/tasks", s.handleListTasks)
	r.POST("/tasks", s.handleCreateTask)
	r.GET("/agents", s.handleListAgents)
	r.GET("/stats", s.handleStats)
	r.GET("/ws", s.handleWebSocket)

	return r
}

// shutdown 关闭服务
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// ============================================================================
// HTTP 处理器
// ============================================================================

// handleRoot 根端点
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "running",
		"api_ready": s.gateway.Available(),
	})
}

// handleHealth 健康检查, 恒定返回 healthy
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// handleListTasks 按插入顺序返回全部任务
func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.store.ListAll()})
}

// taskRequest 任务提交载荷
type taskRequest struct {
	Description string   `json:"description"`
	AgentID     string   `json:"agent_id"`
	Priority    int      `json:"priority"`
	Source      string   `json:"source"`
	Tags        []string `json:"tags"`
}

// handleCreateTask 提交任务并同步处理到终态
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := s.orchestrator.Submit(c.Request.Context(), task.SubmitRequest{
		Description: req.Description,
		AgentID:     req.AgentID,
		Priority:    req.Priority,
		Source:      req.Source,
		Tags:        req.Tags,
		ClientInfo:  c.ClientIP(),
	})
	if err != nil {
		if errors.Is(err, task.ErrAgentUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, view)
}

// handleListAgents 返回静态 Agent 目录
func (s *Server) handleListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"agents": s.directory.List()})
}

// handleStats 返回指标快照
func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.monitor.GetSnapshot())
}

// ============================================================================
// 中间件
// ============================================================================

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("请求")
	}
}

// corsMiddleware 只对白名单内的 Origin 回应 CORS 头
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.originListed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// originListed Origin 是否在白名单内
func (s *Server) originListed(origin string) bool {
	for _, allowed := range s.cfg.AllowOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}

// originAllowed WebSocket 握手的 Origin 校验
//
// 未声明 Origin 的非浏览器客户端放行; 声明了就必须在白名单内。
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	return s.originListed(origin)
}
