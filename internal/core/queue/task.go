package queue

import (
	"context"
	"sync"
	"time"
)

// Kind 任務類型
type Kind string

const (
	KindIngest Kind = "ingest"
	KindEmbed  Kind = "embed"
)

// TaskStatus 任務狀態
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
)

// Job 待執行的工作
type Job struct {
	Kind Kind
	// Name 方便辨識的描述，例如關鍵字
	Name string
	Run  func(ctx context.Context) (any, error)
}

// TaskInfo 任務快照
type TaskInfo struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Name       string     `json:"name,omitempty"`
	Status     TaskStatus `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Task 已排入隊列的工作
type Task struct {
	job  Job
	done chan struct{}

	mu   sync.RWMutex
	info TaskInfo
}

func newTask(id string, job Job) *Task {
	return &Task{
		job:  job,
		done: make(chan struct{}),
		info: TaskInfo{
			ID:        id,
			Kind:      job.Kind,
			Name:      job.Name,
			Status:    StatusPending,
			CreatedAt: time.Now(),
		},
	}
}

// ID 任務 id
func (t *Task) ID() string {
	return t.info.ID
}

// Info 返回目前狀態
func (t *Task) Info() TaskInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info
}

// Done 任務結束時關閉
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait 阻塞到任務結束或 ctx 取消
func (t *Task) Wait(ctx context.Context) (TaskInfo, error) {
	select {
	case <-t.done:
		return t.Info(), nil
	case <-ctx.Done():
		return t.Info(), ctx.Err()
	}
}

func (t *Task) start() {
	now := time.Now()
	t.mu.Lock()
	t.info.Status = StatusRunning
	t.info.StartedAt = &now
	t.mu.Unlock()
}

func (t *Task) finish(result any, err error) {
	now := time.Now()
	t.mu.Lock()
	t.info.FinishedAt = &now
	t.info.Result = result
	if err != nil {
		t.info.Status = StatusFailed
		t.info.Error = err.Error()
	} else {
		t.info.Status = StatusSucceeded
	}
	t.mu.Unlock()
	close(t.done)
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
