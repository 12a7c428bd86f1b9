package task

import "sync"

// Store 内存任务存储
//
// 仅追加, 不删除; 历史随进程生命周期存在, 不做持久化。
type Store struct {
	mu    sync.RWMutex
	tasks []*Task
}

// NewStore 创建任务存储
func NewStore() *Store {
	return &Store{}
}

// Append 追加任务
func (s *Store) Append(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, t)
}

// ListAll 按插入顺序返回全部任务快照
func (s *Store) ListAll() []View {
	s.mu.RLock()
	tasks := make([]*Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.RUnlock()

	views := make([]View, len(tasks))
	for i, t := range tasks {
		views[i] = t.Snapshot()
	}
	return views
}

// Len 当前任务数
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}
