package core

import (
	"fmt"
	"insights-gateway/models"
	"strings"

	"gorm.io/gorm"
)

// KeyStore 数据库中的后端凭证，环境变量未配置时的回退来源
type KeyStore struct {
	db      *gorm.DB
	secrets SecretProvider
}

func NewKeyStore(db *gorm.DB, secrets SecretProvider) *KeyStore {
	if secrets == nil {
		secrets = NewNoOpSecretProvider()
	}
	return &KeyStore{db: db, secrets: secrets}
}

// Keys 按轮换顺序返回解密后的凭证
func (s *KeyStore) Keys(backend string) ([]string, error) {
	var rows []models.BackendKey
	if err := s.db.Where("backend = ?", backend).Order("position asc, id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load keys for %s: %w", backend, err)
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		plain, err := s.secrets.Decrypt(row.KeyValue)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt key #%d for %s: %w", row.ID, backend, err)
		}
		keys = append(keys, plain)
	}
	return keys, nil
}

// Add 加密后保存凭证，追加到轮换顺序末尾
func (s *KeyStore) Add(backend, key string) (*models.BackendKey, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	key = strings.TrimSpace(key)
	if backend == "" || key == "" {
		return nil, fmt.Errorf("%w: backend and key are required", ErrInvalidInput)
	}

	sealed, err := s.secrets.Encrypt(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt key: %w", err)
	}

	var count int64
	if err := s.db.Model(&models.BackendKey{}).Where("backend = ?", backend).Count(&count).Error; err != nil {
		return nil, err
	}

	row := &models.BackendKey{Backend: backend, KeyValue: sealed, Position: int(count)}
	if err := s.db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to save key: %w", err)
	}
	return row, nil
}
