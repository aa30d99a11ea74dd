package common

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedFromCreator(t *testing.T) {
	seed := SeedFromCreator("A1")
	assert.Equal(t, seed, SeedFromCreator("A1"))
	assert.NotEqual(t, seed, SeedFromCreator("B1"))
	assert.True(t, IsValidSeed(seed))

	raw, err := DecodeSeed(seed)
	require.NoError(t, err)
	want := sha256.Sum256([]byte("A1"))
	assert.Equal(t, want[:], raw)
}

func TestDecodeSeedRejectsGarbage(t *testing.T) {
	assert.False(t, IsValidSeed("0OIl"))
	assert.False(t, IsValidSeed("abc"))
}
