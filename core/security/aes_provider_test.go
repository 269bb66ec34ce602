package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESSecretProvider_RoundTrip(t *testing.T) {
	p, err := NewAESSecretProvider("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	sealed, err := p.Encrypt("AIzaSy-secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "AIzaSy-secret")

	plain, err := p.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "AIzaSy-secret", plain)

	// 随机 nonce，两次加密结果不同
	again, err := p.Encrypt("AIzaSy-secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestAESSecretProvider_Errors(t *testing.T) {
	_, err := NewAESSecretProvider("short")
	assert.Error(t, err)

	p, err := NewAESSecretProvider("0123456789abcdef")
	require.NoError(t, err)

	_, err = p.Decrypt("not base64!")
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = p.Decrypt("AAAA")
	assert.ErrorIs(t, err, ErrCiphertext)

	other, err := NewAESSecretProvider("fedcba9876543210")
	require.NoError(t, err)
	sealed, err := other.Encrypt("k1")
	require.NoError(t, err)
	_, err = p.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrCiphertext)
}
