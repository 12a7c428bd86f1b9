package task

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/forgeflow/kernel/agent"
	"github.com/forgeflow/kernel/monitor"
	"github.com/forgeflow/kernel/realtime"
)

// ErrAgentUnavailable 处理能力整体不可用, 提交本身被拒绝, 任务不会创建
var ErrAgentUnavailable = errors.New("task processing functionality is unavailable at this moment")

// SubmitRequest 任务提交请求
type SubmitRequest struct {
	Description string
	AgentID     string
	Priority    int
	Source      string
	Tags        []string
	ClientInfo  string
}

// Orchestrator 任务编排器
//
// 提交与处理在同一个请求周期内完成: 调用方拿到的永远是终态快照,
// 不是排队回执。单个任务内各步骤串行, 不同任务之间互不竞争。
type Orchestrator struct {
	store     *Store
	registry  *realtime.Registry
	gateway   agent.Gateway
	directory *agent.Directory
	monitor   *monitor.Monitor
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	store *Store,
	registry *realtime.Registry,
	gateway agent.Gateway,
	directory *agent.Directory,
	mon *monitor.Monitor,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		registry:  registry,
		gateway:   gateway,
		directory: directory,
		monitor:   mon,
	}
}

// Submit 创建任务并驱动其到终态
//
// 只有能力不可用会作为错误返回; 任务创建之后的处理失败
// 全部吸收进任务自身的 failed 终态, 不再向调用方报错。
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (View, error) {
	if !o.gateway.Available() {
		return View{}, ErrAgentUnavailable
	}

	if req.AgentID == "" {
		req.AgentID = "assistant"
	}
	if req.Priority == 0 {
		req.Priority = 1
	}
	if req.Source == "" {
		req.Source = "api"
	}

	t := New(req.Description, req.AgentID, req.Priority, Metadata{
		ClientInfo: req.ClientInfo,
		Source:     req.Source,
		Tags:       req.Tags,
	})
	o.store.Append(t)

	// 创建事件先于处理
	o.registry.Broadcast("task_created", t.Snapshot())
	o.registry.BroadcastTaskProgress(t.ID, 0.1, "started", "Initializing task processing")

	log.Info().
		Str("task_id", t.ID).
		Str("agent_id", t.AgentID).
		Msg("开始处理任务")

	start := time.Now()
	result, err := o.process(ctx, t)
	o.monitor.ObserveTaskDuration(t.AgentID, time.Since(start))

	if err != nil {
		log.Error().Err(err).Str("task_id", t.ID).Msg("任务处理失败")
		t.Fail(err.Error())
		o.monitor.RecordTaskFailed()

		o.registry.BroadcastTaskProgress(t.ID, 1.0, "failed", "Task failed: "+err.Error())
		o.registry.Broadcast("task_update", t.Snapshot())
		return t.Snapshot(), nil
	}

	t.Complete(result)
	o.monitor.RecordTaskCompleted()

	o.registry.BroadcastTaskProgress(t.ID, 1.0, "completed", "Task completed successfully")
	o.registry.Broadcast("task_update", t.Snapshot())
	return t.Snapshot(), nil
}

// process 解析 Agent 并完成同步调用
//
// 未知 agent_id 走默认路径: 不广播活动, 结果不加前缀, 也不拒绝。
func (o *Orchestrator) process(ctx context.Context, t *Task) (string, error) {
	profile, known := o.directory.Lookup(t.AgentID)
	if known {
		o.registry.BroadcastAgentActivity(t.AgentID, profile.Activity, nil)
	}

	result, err := o.gateway.Process(ctx, t.ID, t.Description)
	if err != nil {
		return "", err
	}

	if known {
		result = profile.Decorate(result)
	}
	return result, nil
}
