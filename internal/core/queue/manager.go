// Package queue runs ingestion and embedding jobs on a bounded pool of
// background workers and keeps their status observable.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"recipe-recommender/internal/infrastructure/config"
	"recipe-recommender/internal/infrastructure/metrics"
	"recipe-recommender/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxRetainedTasks 保留查詢的任務上限，超過時移除最舊的已完成任務
const maxRetainedTasks = 1000

var (
	// ErrQueueFull 隊列已滿
	ErrQueueFull = common.ErrQueueFull
	// ErrQueueClosed 隊列已關閉
	ErrQueueClosed = errors.New("queue: manager is closed")
)

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	FailedCount    int64 `json:"failed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 隊列管理器
type Manager struct {
	config    config.QueueConfig
	queue     chan *Task
	ctx       context.Context
	cancel    context.CancelFunc
	workers   *errgroup.Group
	processed int64
	failed    int64

	mu     sync.RWMutex
	closed bool
	tasks  map[string]*Task
	order  []string
}

// NewManager 創建隊列管理器並啟動 worker
func NewManager(cfg config.QueueConfig) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:  cfg,
		queue:   make(chan *Task, cfg.MaxSize),
		ctx:     ctx,
		cancel:  cancel,
		workers: &errgroup.Group{},
		tasks:   make(map[string]*Task),
	}
	for i := 0; i < cfg.Workers; i++ {
		m.workers.Go(func() error {
			m.work()
			return nil
		})
	}
	return m
}

// Enqueue 將工作加入隊列，隊列滿時立即返回 ErrQueueFull
func (m *Manager) Enqueue(ctx context.Context, job Job) (*Task, error) {
	if job.Run == nil {
		return nil, fmt.Errorf("queue: job %q has no run function", job.Kind)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrQueueClosed
	}

	task := newTask(uuid.NewString(), job)
	select {
	case m.queue <- task:
	default:
		return nil, ErrQueueFull
	}

	m.tasks[task.ID()] = task
	m.order = append(m.order, task.ID())
	m.pruneLocked()
	metrics.QueueDepth.Set(float64(len(m.queue)))

	common.LogInfo("任務已加入隊列",
		zap.String("task_id", task.ID()),
		zap.String("kind", string(job.Kind)),
		zap.String("name", job.Name),
		zap.Int("queue_length", len(m.queue)),
		zap.Int("max_queue_size", m.config.MaxSize),
	)
	return task, nil
}

// Get 依 id 查詢任務
func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Status 獲取隊列狀態
func (m *Manager) Status() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		FailedCount:    atomic.LoadInt64(&m.failed),
		MaxQueueSize:   m.config.MaxSize,
		Workers:        m.config.Workers,
	}
}

// Close 停止接收新工作，等待已排入的工作執行完畢
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	err := m.workers.Wait()
	m.cancel()
	return err
}

func (m *Manager) work() {
	for task := range m.queue {
		metrics.QueueDepth.Set(float64(len(m.queue)))
		m.run(task)
	}
}

func (m *Manager) run(task *Task) {
	ctx := m.ctx
	if m.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.JobTimeout)
		defer cancel()
	}

	task.start()
	start := time.Now()
	result, err := safeRun(ctx, task.job)
	task.finish(result, err)

	atomic.AddInt64(&m.processed, 1)
	status := StatusSucceeded
	if err != nil {
		atomic.AddInt64(&m.failed, 1)
		status = StatusFailed
		common.LogError("背景任務失敗",
			zap.String("task_id", task.ID()),
			zap.String("kind", string(task.job.Kind)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	} else {
		common.LogInfo("背景任務完成",
			zap.String("task_id", task.ID()),
			zap.String("kind", string(task.job.Kind)),
			zap.Duration("duration", time.Since(start)),
		)
	}
	metrics.JobsTotal.WithLabelValues(string(task.job.Kind), string(status)).Inc()
}

// safeRun 將 panic 轉為錯誤，避免 worker 中止
func safeRun(ctx context.Context, job Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// pruneLocked 移除最舊的已完成任務，需持有寫鎖
func (m *Manager) pruneLocked() {
	for len(m.order) > maxRetainedTasks {
		pruned := false
		for i, id := range m.order {
			if t := m.tasks[id]; t == nil || t.finished() {
				delete(m.tasks, id)
				m.order = append(m.order[:i], m.order[i+1:]...)
				pruned = true
				break
			}
		}
		if !pruned {
			return
		}
	}
}
