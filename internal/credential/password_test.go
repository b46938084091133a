package credential

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, rehash := VerifyPassword("correct horse battery staple", hash)
	assert.True(t, ok)
	assert.False(t, rehash)

	ok, _ = VerifyPassword("wrong password", hash)
	assert.False(t, ok)
}

func TestVerifyPassword_FlagsLowerCostForRehash(t *testing.T) {
	weak, err := bcrypt.GenerateFromPassword([]byte("hunter2"), BcryptCost-2)
	require.NoError(t, err)

	ok, needsRehash := VerifyPassword("hunter2", string(weak))
	assert.True(t, ok)
	assert.True(t, needsRehash)
}
