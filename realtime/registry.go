/*
Package realtime - 实时连接注册表

负责：
- 活跃 WebSocket 连接的注册 / 注销
- 生命周期事件向全部订阅者的尽力送达广播
- 死连接的广播内联清理 (无独立心跳)
*/
package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// 单连接发送队列长度, 写满视为对端已死
const sendQueueSize = 64

// Conn 连接句柄的窄接口, *websocket.Conn 天然满足
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Envelope 所有实时事件的统一信封
type Envelope struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

func newEnvelope(eventType string, data any) Envelope {
	return Envelope{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
}

// client 注册表内部的连接条目
//
// 独立的写协程保证: 单连接事件按调用顺序送达 (FIFO),
// 慢对端不会阻塞其他连接的送达。
type client struct {
	conn  Conn
	queue chan Envelope
	done  chan struct{}
	once  sync.Once
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// Registry 连接注册表
//
// 广播是 fire-and-forget: 不重试, 不缓冲超过队列长度,
// 送达失败的连接在同一次广播中被注销。
type Registry struct {
	mu      sync.RWMutex
	clients map[Conn]*client

	// 可选的信封镜像 (跨实例中继), 仅本地产生的事件会被镜像
	mirror func(Envelope)
}

// NewRegistry 创建注册表
func NewRegistry() *Registry {
	return &Registry{clients: make(map[Conn]*client)}
}

// SetMirror 设置信封镜像回调, 须在使用前调用一次
func (r *Registry) SetMirror(fn func(Envelope)) {
	r.mirror = fn
}

// Register 注册连接并启动其写协程, 对同一句柄幂等
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	if _, exists := r.clients[conn]; exists {
		r.mu.Unlock()
		return
	}
	c := &client{
		conn:  conn,
		queue: make(chan Envelope, sendQueueSize),
		done:  make(chan struct{}),
	}
	r.clients[conn] = c
	total := len(r.clients)
	r.mu.Unlock()

	go r.writeLoop(c)

	log.Info().Int("total", total).Msg("WebSocket 连接已注册")
}

// Unregister 注销连接, 不存在时为空操作
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	c, exists := r.clients[conn]
	if exists {
		delete(r.clients, conn)
	}
	remaining := len(r.clients)
	r.mu.Unlock()

	if !exists {
		return
	}
	c.stop()

	log.Info().Int("remaining", remaining).Msg("WebSocket 连接已注销")
}

// Count 当前活跃连接数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// writeLoop 单连接写协程
func (r *Registry) writeLoop(c *client) {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.queue:
			if err := c.conn.WriteJSON(env); err != nil {
				log.Warn().Err(err).Str("type", env.Type).Msg("发送消息失败, 清理连接")
				r.Unregister(c.conn)
				return
			}
		}
	}
}

// Broadcast 构造信封并广播给全部连接
//
// 永不向调用方报错; 单个连接的失败只影响它自己。
func (r *Registry) Broadcast(eventType string, data any) {
	env := newEnvelope(eventType, data)
	r.deliver(env)

	if r.mirror != nil {
		r.mirror(env)
	}
}

// Forward 投递来自其他实例的信封, 不再镜像
func (r *Registry) Forward(env Envelope) {
	r.deliver(env)
}

// Send 向单个已注册连接投递事件 (连接握手应答等定向消息)
//
// 经由该连接的队列投递, 与广播在同一连接上保持顺序。
func (r *Registry) Send(conn Conn, eventType string, data any) {
	r.mu.RLock()
	c, exists := r.clients[conn]
	r.mu.RUnlock()
	if !exists {
		return
	}
	r.enqueue(c, newEnvelope(eventType, data))
}

// deliver 向每个连接独立投递
func (r *Registry) deliver(env Envelope) {
	r.mu.RLock()
	clients := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, c := range clients {
		r.enqueue(c, env)
	}
}

// enqueue 非阻塞入队, 队列满视为死连接并注销
func (r *Registry) enqueue(c *client, env Envelope) {
	select {
	case c.queue <- env:
	case <-c.done:
	default:
		log.Warn().Str("type", env.Type).Msg("连接发送队列已满, 清理连接")
		r.Unregister(c.conn)
	}
}

// ============================================================================
// 固定事件封装
// ============================================================================

// BroadcastAgentActivity 广播 Agent 活动事件
func (r *Registry) BroadcastAgentActivity(agentID, activity string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	r.Broadcast("agent_activity", map[string]any{
		"agent_id": agentID,
		"activity": activity,
		"details":  details,
	})
}

// BroadcastTaskProgress 广播任务进度事件
func (r *Registry) BroadcastTaskProgress(taskID string, progress float64, status, currentAction string) {
	r.Broadcast("task_progress", map[string]any{
		"task_id":        taskID,
		"progress":       progress,
		"status":         status,
		"current_action": currentAction,
	})
}
