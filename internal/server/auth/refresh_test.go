package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRefreshSecret(t *testing.T) {
	secret, hash, err := NewRefreshSecret()
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(secret)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Len(t, hash, 64)
	assert.Equal(t, HashRefreshSecret(secret), hash)

	other, _, err := NewRefreshSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestHashRefreshSecret_Stable(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		HashRefreshSecret("hello"))
}
