package core

import (
	"context"
	"errors"
	"fmt"
	"insights-gateway/models"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// FailoverOrchestrator 按优先级尝试后端链
// 仅在 ErrBackendExhausted 时切换到下一个后端，成功的后端成为新的起点
type FailoverOrchestrator struct {
	chain       []Backend
	activeIndex atomic.Int64
	logger      *logrus.Logger
}

func NewFailoverOrchestrator(backends []Backend, logger *logrus.Logger) (*FailoverOrchestrator, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: backend chain is empty", ErrConfiguration)
	}
	for i, b := range backends {
		if b == nil {
			return nil, fmt.Errorf("%w: backend #%d is nil", ErrConfiguration, i)
		}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	chain := make([]Backend, len(backends))
	copy(chain, backends)
	return &FailoverOrchestrator{chain: chain, logger: logger}, nil
}

func (o *FailoverOrchestrator) Name() string {
	return "failover"
}

// Dispatch 从当前活跃后端开始尝试，其它错误原样返回
func (o *FailoverOrchestrator) Dispatch(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResult, error) {
	start := int(o.activeIndex.Load())

	for i := start; i < len(o.chain); i++ {
		backend := o.chain[i]
		result, err := backend.Dispatch(ctx, req)
		if err == nil {
			if i != start {
				o.promote(i)
				o.logger.Infof("🔀 Switched active backend to %s (index %d)", backend.Name(), i)
			}
			return result, nil
		}

		if !errors.Is(err, ErrBackendExhausted) {
			return nil, err
		}
		o.logger.Warnf("⚠️ Backend %s exhausted, trying next backend", backend.Name())
	}

	return nil, ErrAllBackendsFailed
}

// promote 活跃索引只前进，不回退
// 并发写入时保留较大的索引
func (o *FailoverOrchestrator) promote(index int) {
	next := int64(index)
	for {
		cur := o.activeIndex.Load()
		if next <= cur {
			return
		}
		if o.activeIndex.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (o *FailoverOrchestrator) ActiveIndex() int {
	return int(o.activeIndex.Load())
}

func (o *FailoverOrchestrator) ActiveBackend() string {
	return o.chain[o.ActiveIndex()].Name()
}

// Backends 按优先级返回后端名称
func (o *FailoverOrchestrator) Backends() []string {
	names := make([]string, len(o.chain))
	for i, b := range o.chain {
		names[i] = b.Name()
	}
	return names
}
