package core

import (
	"context"
	"fmt"
	"insights-gateway/models"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultWorkers       = 10
	DefaultQueueCapacity = 50
	DefaultTimeoutText   = "The request took too long to complete. Please try again."
)

// ExecutorConfig 异步执行器配置
type ExecutorConfig struct {
	Workers       int
	QueueCapacity int
	// Deadline 总体截止时间 (0 表示不限制)，到期后 Future 以占位结果完成
	Deadline    time.Duration
	TimeoutText string
}

// Future 一次异步调度的结果
type Future struct {
	done   chan struct{}
	once   sync.Once
	result *models.DispatchResult
	err    error
	cancel context.CancelFunc
	timer  *time.Timer
}

func newFuture(cancel context.CancelFunc) *Future {
	return &Future{done: make(chan struct{}), cancel: cancel}
}

// complete 只有第一次调用生效
func (f *Future) complete(result *models.DispatchResult, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Done 完成时关闭
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await 等待结果，ctx 只控制等待本身
func (f *Future) Await(ctx context.Context) (*models.DispatchResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel 取消调度，进行中的 HTTP 请求由 transport 中断
func (f *Future) Cancel() {
	f.cancel()
}

type dispatchTask struct {
	ctx    context.Context
	req    *models.DispatchRequest
	future *Future
}

// AsyncExecutor 有界工作池，调度的对外入口
type AsyncExecutor struct {
	backend Backend
	cfg     ExecutorConfig
	queue   chan *dispatchTask
	logger  *logrus.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncExecutor(backend Backend, cfg ExecutorConfig, logger *logrus.Logger) (*AsyncExecutor, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: executor requires a backend", ErrConfiguration)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}
	if cfg.TimeoutText == "" {
		cfg.TimeoutText = DefaultTimeoutText
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := &AsyncExecutor{
		backend: backend,
		cfg:     cfg,
		queue:   make(chan *dispatchTask, cfg.QueueCapacity),
		logger:  logger,
	}
	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			for task := range e.queue {
				e.run(task)
			}
		}()
	}
	return e, nil
}

// Execute 提交调度请求，队列已满时 Future 立即以 ErrQueueFull 完成
func (e *AsyncExecutor) Execute(ctx context.Context, req *models.DispatchRequest) *Future {
	taskCtx, cancel := context.WithCancel(ctx)
	future := newFuture(cancel)

	if e.cfg.Deadline > 0 {
		kind := req.Kind()
		future.timer = time.AfterFunc(e.cfg.Deadline, func() {
			future.complete(&models.DispatchResult{
				Kind:     kind,
				Text:     e.cfg.TimeoutText,
				TimedOut: true,
			}, nil)
			cancel()
		})
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.finish(future, nil, ErrExecutorClosed)
		return future
	}

	select {
	case e.queue <- &dispatchTask{ctx: taskCtx, req: req, future: future}:
	default:
		e.logger.Warnf("Dispatch queue full (%d), rejecting request %s", e.cfg.QueueCapacity, req.ID)
		e.finish(future, nil, ErrQueueFull)
	}
	return future
}

func (e *AsyncExecutor) run(task *dispatchTask) {
	if err := task.ctx.Err(); err != nil {
		e.finish(task.future, nil, fmt.Errorf("dispatch %s: %w", task.req.ID, err))
		return
	}

	result, err := e.backend.Dispatch(task.ctx, task.req)
	if err != nil {
		err = fmt.Errorf("dispatch %s (%s): %w", task.req.ID, task.req.Kind(), err)
	}
	e.finish(task.future, result, err)
}

func (e *AsyncExecutor) finish(f *Future, result *models.DispatchResult, err error) {
	if f.timer != nil {
		f.timer.Stop()
	}
	f.complete(result, err)
	f.cancel()
}

// Close 停止接收新请求，等待队列中的请求执行完毕
func (e *AsyncExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	e.wg.Wait()
}
