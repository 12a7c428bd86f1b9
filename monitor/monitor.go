/*
Package monitor - 指标收集

负责：
- 任务完成 / 失败计数与进程运行时长
- Prometheus 指标暴露
*/
package monitor

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/forgeflow/kernel/config"
)

// Monitor 指标收集器
//
// 计数只由编排器在终态转换时递增, 每个任务恰好一次。
type Monitor struct {
	cfg config.MonitorConfig

	tasksCompleted int64
	tasksFailed    int64
	uptimeStart    time.Time

	// Prometheus 指标
	registry      *prometheus.Registry
	taskCounter   *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	wsConnections prometheus.Gauge
}

// Snapshot 指标快照
type Snapshot struct {
	TasksCompleted int64   `json:"tasks_completed"`
	TasksFailed    int64   `json:"tasks_failed"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// New 创建监控器
func New(cfg config.MonitorConfig) *Monitor {
	m := &Monitor{
		cfg:         cfg,
		uptimeStart: time.Now(),
		registry:    prometheus.NewRegistry(),
	}

	m.taskCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forge_tasks_total",
			Help: "Total number of tasks by terminal status",
		},
		[]string{"status"},
	)

	m.taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "forge_task_duration_seconds",
			Help:    "Task processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent"},
	)

	m.wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "forge_ws_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	m.registry.MustRegister(
		m.taskCounter,
		m.taskDuration,
		m.wsConnections,
	)

	return m
}

// Start 启动指标 HTTP 服务
func (m *Monitor) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle(m.cfg.Path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:    m.cfg.Addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("addr", m.cfg.Addr).Msg("Prometheus 指标服务启动")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("指标服务错误")
		}
	}()
}

// RecordTaskCompleted 记录任务完成
func (m *Monitor) RecordTaskCompleted() {
	atomic.AddInt64(&m.tasksCompleted, 1)
	m.taskCounter.WithLabelValues("completed").Inc()
}

// RecordTaskFailed 记录任务失败
func (m *Monitor) RecordTaskFailed() {
	atomic.AddInt64(&m.tasksFailed, 1)
	m.taskCounter.WithLabelValues("failed").Inc()
}

// ObserveTaskDuration 记录任务处理耗时
func (m *Monitor) ObserveTaskDuration(agentID string, d time.Duration) {
	m.taskDuration.WithLabelValues(agentID).Observe(d.Seconds())
}

// SetConnections 设置活跃连接数
func (m *Monitor) SetConnections(n int) {
	m.wsConnections.Set(float64(n))
}

// GetSnapshot 返回指标快照, 纯读取无副作用
func (m *Monitor) GetSnapshot() Snapshot {
	return Snapshot{
		TasksCompleted: atomic.LoadInt64(&m.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&m.tasksFailed),
		UptimeSeconds:  time.Since(m.uptimeStart).Seconds(),
	}
}
