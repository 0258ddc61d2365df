package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("senha-secreta")
	require.NoError(t, err)
	assert.NotEqual(t, "senha-secreta", hash)

	assert.True(t, Verify("senha-secreta", hash))
	assert.False(t, Verify("senha-errada", hash))
	assert.False(t, Verify("senha-secreta", "not-a-bcrypt-hash"))
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	b := HashToken("token-b")

	// Deterministic and collision-free for distinct inputs
	assert.Equal(t, a, HashToken("token-a"))
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
