package core

import (
	"context"
	"insights-gateway/models"
)

// Backend 可调度的后端 (单后端调度器或故障转移编排器)
type Backend interface {
	// Name 返回后端名称，如 "gemini", "ollama"
	Name() string

	// Dispatch 阻塞执行一次调度
	Dispatch(ctx context.Context, req *models.DispatchRequest) (*models.DispatchResult, error)
}

// KeyRotator 抽象凭证轮换 (DI)
// KeyRotationManager 实现此接口
type KeyRotator interface {
	CurrentKey() string
	AdvancePast(failedKey string) bool
	KeyCount() int
}

// DispatchRecorder 接收每次调度尝试的记录
// AsyncDispatchLogger 实现此接口
type DispatchRecorder interface {
	Record(entry *models.DispatchLog)
}

// SecretProvider 抽象密钥加解密
// 用于读取数据库中的后端凭证时自动解密
type SecretProvider interface {
	Decrypt(ciphertext string) (string, error)
	Encrypt(plaintext string) (string, error)
}
