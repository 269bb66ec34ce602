package core

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration 空凭证池或空后端链，在构造时失败
	ErrConfiguration = errors.New("configuration error")
	// ErrBackendExhausted 单个后端的所有凭证都被限流
	ErrBackendExhausted = errors.New("all available API keys used")
	// ErrAllBackendsFailed 后端链全部耗尽
	ErrAllBackendsFailed = errors.New("all configured backends failed to process the request")
	// ErrQueueFull 执行队列已满
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrExecutorClosed 执行器已关闭
	ErrExecutorClosed = errors.New("dispatch executor is closed")
	// ErrInvalidInput 调用方输入为空或格式错误
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamUnreachable 网络层失败 (连接被拒绝、超时等)，未拿到 HTTP 响应
	ErrUpstreamUnreachable = errors.New("upstream unreachable")
	// ErrTimedOut 总体截止时间已到，结果为超时占位文本
	ErrTimedOut = errors.New("request timed out")
)

// BackendError 后端返回了非 2xx 且非 429 的状态码
type BackendError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}
