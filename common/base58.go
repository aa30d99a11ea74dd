package common

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// SeedFromCreator derives the chain seed: base58 of sha256(creator).
func SeedFromCreator(creator string) string {
	sum := sha256.Sum256([]byte(creator))
	return base58.Encode(sum[:])
}

// DecodeSeed returns the raw 32 bytes behind a chain seed.
func DecodeSeed(seed string) ([]byte, error) {
	bytes, err := base58.Decode(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 seed: %w", err)
	}
	if len(bytes) != sha256.Size {
		return nil, fmt.Errorf("seed decodes to %d bytes, want %d", len(bytes), sha256.Size)
	}
	return bytes, nil
}

// IsValidSeed checks that seed is a well-formed chain seed.
func IsValidSeed(seed string) bool {
	_, err := DecodeSeed(seed)
	return err == nil
}
