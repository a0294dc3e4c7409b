package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)
	assert.NoError(t, h.Compare(hash, "correct horse battery"))
	assert.Error(t, h.Compare(hash, "wrong password"))
}

func TestBcryptHasherRejectsShortPasswords(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestBcryptHasherRejectsLongPasswords(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash(strings.Repeat("a", MaxPasswordLen+1))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestNeedsRehash(t *testing.T) {
	cheap := NewBcryptHasher(bcrypt.MinCost)
	hash, err := cheap.Hash("correct horse battery")
	require.NoError(t, err)

	assert.False(t, cheap.NeedsRehash(hash))
	assert.True(t, NewBcryptHasher(bcrypt.MinCost+1).NeedsRehash(hash))
	assert.True(t, cheap.NeedsRehash("not-a-bcrypt-hash"))
}
