package core

import (
	"fmt"
	"sync/atomic"
)

// KeyRotationManager 单个后端的凭证轮换管理器 (线程安全，无锁)
// 凭证池构造后不可变，游标只通过 CAS 前进
type KeyRotationManager struct {
	keys   []string
	cursor atomic.Uint64
}

func NewKeyRotationManager(backend string, keys []string) (*KeyRotationManager, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: backend %q has no API keys", ErrConfiguration, backend)
	}
	for i, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: backend %q key #%d is empty", ErrConfiguration, backend, i)
		}
	}

	pool := make([]string, len(keys))
	copy(pool, keys)
	return &KeyRotationManager{keys: pool}, nil
}

// CurrentKey 返回游标指向的凭证，无副作用
func (m *KeyRotationManager) CurrentKey() string {
	return m.keys[m.cursor.Load()%uint64(len(m.keys))]
}

// AdvancePast 仅当当前凭证仍是 failedKey 时前进一位
// 并发调用方报告同一个被限流的凭证时只有一个会生效
func (m *KeyRotationManager) AdvancePast(failedKey string) bool {
	cur := m.cursor.Load()
	if m.keys[cur%uint64(len(m.keys))] != failedKey {
		return false
	}
	return m.cursor.CompareAndSwap(cur, cur+1)
}

func (m *KeyRotationManager) KeyCount() int {
	return len(m.keys)
}

// Cursor 游标原始值 (累计前进次数)
func (m *KeyRotationManager) Cursor() uint64 {
	return m.cursor.Load()
}
