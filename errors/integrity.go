package errors

import "fmt"

// IntegrityKind classifies a finding of chain or balance verification.
type IntegrityKind string

const (
	HashMismatch IntegrityKind = "hash_mismatch"
	LinkBreak    IntegrityKind = "link_break"
	BalanceDrift IntegrityKind = "balance_drift"
)

// IntegrityError is the diagnostic result of an integrity check. Index is the
// first block at which a check failed; it is -1 for balance drift, which is a
// property of the registry rather than of a single block.
type IntegrityError struct {
	Kind   IntegrityKind
	Index  int64
	Detail string
}

func (e *IntegrityError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s at block %d: %s", e.Kind, e.Index, e.Detail)
}

func (e *IntegrityError) Is(target error) bool {
	t, ok := target.(*IntegrityError)
	return ok && t.Kind == e.Kind && (t.Index < 0 || t.Index == e.Index)
}

func NewHashMismatch(index uint64, detail string) *IntegrityError {
	return &IntegrityError{Kind: HashMismatch, Index: int64(index), Detail: detail}
}

func NewLinkBreak(index uint64, detail string) *IntegrityError {
	return &IntegrityError{Kind: LinkBreak, Index: int64(index), Detail: detail}
}

func NewBalanceDrift(detail string) *IntegrityError {
	return &IntegrityError{Kind: BalanceDrift, Index: -1, Detail: detail}
}

// Sentinels for errors.Is comparisons that ignore the block index.
var (
	ErrHashMismatch = &IntegrityError{Kind: HashMismatch, Index: -1}
	ErrLinkBreak    = &IntegrityError{Kind: LinkBreak, Index: -1}
	ErrBalanceDrift = &IntegrityError{Kind: BalanceDrift, Index: -1}
)
