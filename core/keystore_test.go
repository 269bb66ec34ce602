package core

import (
	"insights-gateway/core/security"
	"insights-gateway/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStore_AddAndKeysInOrder(t *testing.T) {
	db := setupTestDB(t)
	store := NewKeyStore(db, nil)

	_, err := store.Add(" Gemini ", "k1")
	require.NoError(t, err)
	_, err = store.Add("gemini", "k2")
	require.NoError(t, err)
	_, err = store.Add("openai", "sk-1")
	require.NoError(t, err)

	keys, err := store.Keys("gemini")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, keys)

	keys, err = store.Keys("claude")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestKeyStore_EncryptsAtRest(t *testing.T) {
	db := setupTestDB(t)
	aes, err := security.NewAESSecretProvider("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	store := NewKeyStore(db, aes)

	row, err := store.Add("claude", "ak-secret")
	require.NoError(t, err)
	assert.NotEqual(t, "ak-secret", row.KeyValue)

	var stored models.BackendKey
	require.NoError(t, db.First(&stored, row.ID).Error)
	assert.NotContains(t, stored.KeyValue, "ak-secret")

	keys, err := store.Keys("claude")
	require.NoError(t, err)
	assert.Equal(t, []string{"ak-secret"}, keys)

	// 错误的主密钥无法解密
	wrong, err := security.NewAESSecretProvider("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	_, err = NewKeyStore(db, wrong).Keys("claude")
	assert.ErrorIs(t, err, security.ErrCiphertext)
}

func TestKeyStore_AddRejectsEmpty(t *testing.T) {
	store := NewKeyStore(setupTestDB(t), nil)

	_, err := store.Add("gemini", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = store.Add("", "k1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
