package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := hasher.Hash("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, hasher.Verify("hunter22", hash))
	assert.False(t, hasher.Verify("hunter23", hash))
	assert.False(t, hasher.Verify("hunter22", "not-a-bcrypt-hash"))

	hasher.Burn("anything")
}

func TestPasswordHasherRejectsBadCost(t *testing.T) {
	_, err := NewPasswordHasher(2)
	assert.Error(t, err)
}
