package core

import (
	"context"
	"fmt"
	"insights-gateway/core/adapter"
	"insights-gateway/core/utils"
	"insights-gateway/models"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultConnectTimeout = 200 * time.Second
	maxResponseBytes      = 8 << 20
	maxErrorBodyBytes     = 1024
)

// DispatcherConfig 单后端调度器配置
type DispatcherConfig struct {
	BaseURL string
	// Timeout 单次尝试的总超时，与重试循环无关 (0 表示不限制)
	Timeout  time.Duration
	Client   *http.Client
	Recorder DispatchRecorder
}

// BackendDispatcher 单后端调度器
// 在一个后端的凭证池内按 429 轮换凭证，其它失败立即返回
type BackendDispatcher struct {
	adapter  adapter.ModelAdapter
	keys     KeyRotator
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	recorder DispatchRecorder
	logger   *logrus.Logger
}

func NewBackendDispatcher(a adapter.ModelAdapter, keys KeyRotator, cfg DispatcherConfig, logger *logrus.Logger) (*BackendDispatcher, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: dispatcher requires an adapter", ErrConfiguration)
	}
	if keys == nil || keys.KeyCount() == 0 {
		return nil, fmt.Errorf("%w: backend %q has no API keys", ErrConfiguration, a.Name())
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: backend %q has no URL", ErrConfiguration, a.Name())
	}
	if cfg.Client == nil {
		cfg.Client = NewHTTPClient(defaultConnectTimeout)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &BackendDispatcher{
		adapter:  a,
		keys:     keys,
		baseURL:  cfg.BaseURL,
		timeout:  cfg.Timeout,
		client:   cfg.Client,
		recorder: cfg.Recorder,
		logger:   logger,
	}, nil
}

func (d *BackendDispatcher) Name() string {
	return d.adapter.Name()
}

// Dispatch 阻塞执行，最多尝试 KeyCount 次
func (d *BackendDispatcher) Dispatch(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResult, error) {
	body, err := d.adapter.BuildRequest(req)
	if err != nil {
		return nil, err
	}

	maxAttempts := d.keys.KeyCount()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("dispatch to %s cancelled: %w", d.Name(), err)
		}

		// 每次尝试都重新读取，其它请求可能已经推进了游标
		key := d.keys.CurrentKey()
		start := time.Now()
		status, respBody, err := d.execute(ctx, key, body)
		elapsed := time.Since(start)

		if err != nil {
			d.record(req, key, attempt, 0, models.OutcomeTransportError, elapsed, err)
			return nil, fmt.Errorf("backend %s request failed: %w: %w", d.Name(), ErrUpstreamUnreachable, err)
		}

		switch {
		case status >= 200 && status < 300:
			text, err := d.adapter.ExtractText(respBody)
			if err != nil {
				d.record(req, key, attempt, status, models.OutcomeError, elapsed, err)
				return nil, err
			}
			d.record(req, key, attempt, status, models.OutcomeSuccess, elapsed, nil)
			return &models.DispatchResult{Kind: req.Kind(), Text: text, Backend: d.Name()}, nil

		case status == http.StatusTooManyRequests:
			d.record(req, key, attempt, status, models.OutcomeRateLimited, elapsed, nil)
			// 最后一次尝试不再推进游标
			if attempt < maxAttempts {
				d.keys.AdvancePast(key)
			}
			d.logger.Warnf("⚠️ [%s] key %s rate limited (attempt %d/%d)", d.Name(), utils.MaskKey(key), attempt, maxAttempts)

		default:
			backendErr := &BackendError{
				Backend:    d.Name(),
				StatusCode: status,
				Body:       truncateBody(respBody),
			}
			d.record(req, key, attempt, status, models.OutcomeError, elapsed, backendErr)
			return nil, backendErr
		}
	}

	return nil, fmt.Errorf("backend %s: %w", d.Name(), ErrBackendExhausted)
}

// execute 单次 HTTP 尝试，拥有独立的超时
func (d *BackendDispatcher) execute(ctx context.Context, key string, body []byte) (int, []byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	httpReq, err := d.adapter.NewHTTPRequest(ctx, d.baseURL, key, body)
	if err != nil {
		return 0, nil, err
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

func (d *BackendDispatcher) record(req *models.DispatchRequest, key string, attempt, status int, outcome string, elapsed time.Duration, err error) {
	if d.recorder == nil {
		return
	}
	entry := &models.DispatchLog{
		CreatedAt:  time.Now(),
		RequestID:  req.ID,
		Kind:       req.Kind().String(),
		Backend:    d.Name(),
		MaskedKey:  utils.MaskKey(key),
		Attempt:    attempt,
		StatusCode: status,
		Outcome:    outcome,
		Duration:   elapsed.Milliseconds(),
	}
	if err != nil {
		entry.ErrorMsg = err.Error()
	}
	d.recorder.Record(entry)
}

func truncateBody(b []byte) string {
	if len(b) <= maxErrorBodyBytes {
		return string(b)
	}
	return string(b[:maxErrorBodyBytes]) + "...(truncated)"
}
