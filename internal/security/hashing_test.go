package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash([]byte("correct horse"))
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	assert.NoError(t, h.Compare(hash, []byte("correct horse")))
	assert.ErrorIs(t, h.Compare(hash, []byte("battery staple")), bcrypt.ErrMismatchedHashAndPassword)
	assert.Error(t, h.Compare("not-a-bcrypt-hash", []byte("correct horse")))
}

func TestNewHasher_ClampsCost(t *testing.T) {
	for in, want := range map[int]int{
		-1:  bcrypt.DefaultCost,
		0:   bcrypt.DefaultCost,
		2:   bcrypt.MinCost,
		12:  12,
		100: bcrypt.MaxCost,
	} {
		assert.Equal(t, want, NewHasher(in).Cost, "cost %d", in)
	}
}

func TestHasher_DummyCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	assert.NotPanics(t, func() {
		h.DummyCompare([]byte("anything"))
		h.DummyCompare(nil)
	})
	assert.NotEmpty(t, h.dummyHash)
}
