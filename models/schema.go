package models

import (
	"time"

	"gorm.io/gorm"
)

// BackendKey 后端凭证 (可加密存储)
type BackendKey struct {
	gorm.Model
	Backend  string `gorm:"index;not null" json:"backend"`
	KeyValue string `gorm:"not null" json:"key_value"`
	Position int    `gorm:"default:0" json:"position"` // 轮换顺序
}

// DispatchLog 单次调度尝试的记录 (仅审计，不回读到运行时状态)
type DispatchLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	RequestID  string    `gorm:"index" json:"request_id"`
	Kind       string    `json:"kind"`
	Backend    string    `gorm:"index" json:"backend"`
	MaskedKey  string    `json:"masked_key"`
	Attempt    int       `json:"attempt"`
	StatusCode int       `json:"status_code"`
	Outcome    string    `json:"outcome"` // success / rate_limited / error / transport_error
	Duration   int64     `json:"duration_ms"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
}

// 调度结果分类
const (
	OutcomeSuccess        = "success"
	OutcomeRateLimited    = "rate_limited"
	OutcomeError          = "error"
	OutcomeTransportError = "transport_error"
)

// BackendStats 后端统计信息
type BackendStats struct {
	gorm.Model
	Backend      string  `gorm:"uniqueIndex;not null" json:"backend"`
	Success      int64   `gorm:"default:0" json:"success"`
	RateLimited  int64   `gorm:"default:0" json:"rate_limited"`
	Error        int64   `gorm:"default:0" json:"error"`
	TotalLatency float64 `gorm:"default:0" json:"total_latency"` // 毫秒
	RequestCount int64   `gorm:"default:0" json:"request_count"`
}

// AvgLatency 平均延迟 (毫秒)
func (s BackendStats) AvgLatency() float64 {
	if s.RequestCount == 0 {
		return 0
	}
	return s.TotalLatency / float64(s.RequestCount)
}

// AutoMigrate 自动迁移数据库结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&BackendKey{},
		&DispatchLog{},
		&BackendStats{},
	)
}
