package models

import (
	"encoding/json"
	"time"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail 错误详情
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status        string   `json:"status"`
	Gateway       string   `json:"gateway"`
	Backends      []string `json:"backends"`
	ActiveBackend string   `json:"active_backend"`
	Timestamp     int64    `json:"timestamp"`
}

// StatsResponse 管理员统计响应
type StatsResponse struct {
	ActiveBackend string             `json:"active_backend"`
	ActiveIndex   int                `json:"active_index"`
	Backends      []BackendStatsView `json:"backends"`
	Timestamp     int64              `json:"timestamp"`
}

// BackendStatsView 单个后端统计
type BackendStatsView struct {
	Backend      string  `json:"backend"`
	Success      int64   `json:"success"`
	RateLimited  int64   `json:"rate_limited"`
	Error        int64   `json:"error"`
	AvgLatency   float64 `json:"avg_latency"`
	RequestCount int64   `json:"request_count"`
}

// DescribeRequest 图片描述请求 (JSON 形式)
type DescribeRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	MimeType    string `json:"mime_type"`
}

// RegularizeRequest 图形规整请求
type RegularizeRequest struct {
	Shape json.RawMessage `json:"shape" binding:"required"`
}

// ChatRequest 聊天数据请求 (情感分析 / 行动项)
type ChatRequest struct {
	Chat json.RawMessage `json:"chat" binding:"required"`
}

// SummarizeRequest 摘要请求
type SummarizeRequest struct {
	Content json.RawMessage `json:"content" binding:"required"`
}

// QuestionRequest 问答请求
type QuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

// APIResponse 通用API响应
type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(message string, data interface{}) *APIResponse {
	return &APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(message, errType string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{Message: message, Type: errType},
	}
}
