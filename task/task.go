/*
Package task - 任务生命周期核心

负责：
- Task 数据模型与状态机
- 内存任务存储
- 任务编排 (创建 → 广播 → Agent 调用 → 终态)
*/
package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status 任务状态
//
// 状态只能单向前进: in_progress → completed / failed。
// pending 为线上协议保留值, 当前设计中任务创建即进入 in_progress,
// 对外永远观察不到 pending。
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal 是否为终态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Metadata 任务来源信息, 创建后不再变更
type Metadata struct {
	ClientInfo string   `json:"client_info"`
	Source     string   `json:"source"`
	Tags       []string `json:"tags"`
}

// Task 任务记录
//
// 处理期间仅由编排器变更; 进入终态后冻结, 只读。
type Task struct {
	ID          string
	Description string
	AgentID     string
	Priority    int
	Metadata    Metadata

	mu        sync.RWMutex
	status    Status
	result    *string
	createdAt time.Time
	updatedAt time.Time
}

// New 创建处于 in_progress 的新任务
func New(description, agentID string, priority int, meta Metadata) *Task {
	now := time.Now()
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	return &Task{
		ID:          uuid.New().String(),
		Description: description,
		AgentID:     agentID,
		Priority:    priority,
		Metadata:    meta,
		status:      StatusInProgress,
		createdAt:   now,
		updatedAt:   now,
	}
}

// Status 当前状态
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Complete 写入结果并进入 completed, 已终态时为空操作
func (t *Task) Complete(result string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.result = &result
	t.status = StatusCompleted
	t.updatedAt = time.Now()
}

// Fail 写入错误文本并进入 failed, 已终态时为空操作
func (t *Task) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.Terminal() {
		return
	}
	t.result = &message
	t.status = StatusFailed
	t.updatedAt = time.Now()
}

// View 任务的线上快照
type View struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Result      *string  `json:"result"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
	AgentID     string   `json:"agent_id"`
	Priority    int      `json:"priority"`
	Metadata    Metadata `json:"metadata"`
}

// Snapshot 返回当前时刻的快照
func (t *Task) Snapshot() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return View{
		ID:          t.ID,
		Description: t.Description,
		Status:      t.status,
		Result:      t.result,
		CreatedAt:   t.createdAt.Format(time.RFC3339Nano),
		UpdatedAt:   t.updatedAt.Format(time.RFC3339Nano),
		AgentID:     t.AgentID,
		Priority:    t.Priority,
		Metadata:    t.Metadata,
	}
}

// CreatedAt 创建时间
func (t *Task) CreatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.createdAt
}

// UpdatedAt 最近状态变更时间
func (t *Task) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}
