package cryptoutil

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestAESGCMSealer_SealOpen(t *testing.T) {
	s, err := NewAESGCMSealer(testKey())
	require.NoError(t, err)

	plaintext := []byte(`{"refreshToken":"r-1"}`)
	sealed, err := s.Seal(plaintext)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sealed), "v1:"))
	assert.NotContains(t, string(sealed), "r-1")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	// Random nonces make every seal distinct.
	again, err := s.Seal(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestAESGCMSealer_InvalidKey(t *testing.T) {
	_, err := NewAESGCMSealer([]byte("short"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be 32 bytes")

	_, err = NewAESGCMSealer(make([]byte, 64))
	require.Error(t, err)
}

func TestAESGCMSealer_OpenRejects(t *testing.T) {
	s, err := NewAESGCMSealer(testKey())
	require.NoError(t, err)

	_, err = s.Open([]byte(`{"plain":true}`))
	require.ErrorIs(t, err, ErrNotSealed)

	_, err = s.Open([]byte("v1:!!!invalid!!!"))
	require.Error(t, err)

	_, err = s.Open([]byte("v1:" + base64.StdEncoding.EncodeToString([]byte("x"))))
	require.Error(t, err)

	other, err := NewAESGCMSealer(make([]byte, 32))
	require.NoError(t, err)
	sealed, err := other.Seal([]byte("secret"))
	require.NoError(t, err)
	_, err = s.Open(sealed)
	require.Error(t, err)
}

func TestPlainSealer(t *testing.T) {
	var p PlainSealer
	out, err := p.Seal([]byte("value"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), out)

	out, err = p.Open([]byte("value"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), out)

	_, err = p.Open([]byte("v1:abc"))
	require.ErrorIs(t, err, ErrSealed)
}

func TestKeyFromString(t *testing.T) {
	hexKey := strings.Repeat("ab", 32)
	assert.Len(t, KeyFromString(hexKey), 32)
	assert.Equal(t, byte(0xab), KeyFromString(hexKey)[0])

	derived := KeyFromString("correct horse battery staple")
	assert.Len(t, derived, 32)
	assert.Equal(t, derived, KeyFromString("correct horse battery staple"))
}
