package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCiphertext 存储的凭证无法解密 (密钥错误或数据损坏)
var ErrCiphertext = errors.New("invalid ciphertext")

// AESSecretProvider 基于 AES-GCM 加解密数据库中的后端凭证
// 密文格式: base64(nonce || sealed)
type AESSecretProvider struct {
	aead cipher.AEAD
}

// NewAESSecretProvider keyStr 必须是 16, 24 或 32 字节 (AES-128/192/256)
func NewAESSecretProvider(keyStr string) (*AESSecretProvider, error) {
	key := []byte(keyStr)
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("invalid key length: %d. Must be 16, 24, or 32 bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESSecretProvider{aead: aead}, nil
}

func (p *AESSecretProvider) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := p.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (p *AESSecretProvider) Decrypt(ciphertextBase64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}

	nonceSize := p.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: too short", ErrCiphertext)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := p.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}

	return string(plaintext), nil
}
