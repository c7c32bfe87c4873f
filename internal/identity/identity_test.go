package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKeyDeterministic(t *testing.T) {
	a := StorageKey("42")
	b := StorageKey("42")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, StorageKey("43"))
}

func TestCurrentKeyNeverLooksLegacy(t *testing.T) {
	for _, uid := range []string{"42", "abc", "user-with-long-id-0123456789"} {
		require.False(t, IsLegacyKey(StorageKey(uid)), "uid=%s", uid)
	}
}

func TestIsLegacyKeyShape(t *testing.T) {
	assert.True(t, IsLegacyKey("settings:42"))
	assert.True(t, IsLegacyKey("settings:2676991677"))
	assert.False(t, IsLegacyKey("settings:a1b2c3d4e5f67890"))
	assert.False(t, IsLegacyKey("settings:"))
	assert.False(t, IsLegacyKey("settings:12345678901"))
	assert.False(t, IsLegacyKey("other:123"))
}

func TestLegacySchemeMatchesCRC32(t *testing.T) {
	k := StorageKeyLegacy("42")
	assert.True(t, IsLegacyKey(k))
	s := SecretLegacy("42")
	assert.Len(t, s, 8)
}
