package types

import (
	"fmt"
	"strings"
	"unicode/utf8"

	zerrors "github.com/mezonai/zakat/errors"
	"golang.org/x/text/unicode/norm"
)

const MaxNodeIDLength = 64

// Reserved identifiers. They appear as senders of system-issued transactions
// and can never be registered as participants.
const (
	GenesisSender NodeID = "Genesis"
	NetworkSender NodeID = "Network"
)

// NodeID is an opaque participant identifier (a roll number such as C001 in
// practice). Use ParseNodeID to obtain a validated value.
type NodeID string

// ParseNodeID normalizes raw to NFC and checks it is a usable identifier:
// non-empty, bounded, and restricted to characters that cannot collide with
// the block digest encoding.
func ParseNodeID(raw string) (NodeID, error) {
	s := norm.NFC.String(strings.TrimSpace(raw))
	if s == "" {
		return "", zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "identifier is empty")
	}
	if utf8.RuneCountInString(s) > MaxNodeIDLength {
		return "", zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "identifier exceeds %d characters", MaxNodeIDLength)
	}
	for _, r := range s {
		if !isIDRune(r) {
			return "", zerrors.Errorf(zerrors.ErrCodeInvalidIdentifier, "identifier %q contains invalid character %q", s, r)
		}
	}
	return NodeID(s), nil
}

// MustNodeID is ParseNodeID for constants and tests.
func MustNodeID(raw string) NodeID {
	id, err := ParseNodeID(raw)
	if err != nil {
		panic(fmt.Sprintf("invalid node id %q: %v", raw, err))
	}
	return id
}

func (id NodeID) String() string {
	return string(id)
}

// IsSentinel reports whether id is one of the reserved system senders.
func (id NodeID) IsSentinel() bool {
	return id == GenesisSender || id == NetworkSender
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.':
		return true
	}
	return false
}
