package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/mezonai/zakat/jsonx"
)

// ErrorCode represents standardized error codes for ledger operations
type ErrorCode string

const (
	ErrCodeInternal ErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidIdentifier ErrorCode = "invalid_identifier"
	ErrCodeInvalidAmount     ErrorCode = "invalid_amount"

	// Business logic errors
	ErrCodeUnknownParticipant   ErrorCode = "unknown_participant"
	ErrCodeDuplicateParticipant ErrorCode = "duplicate_participant"
	ErrCodeParticipantInactive  ErrorCode = "participant_inactive"
	ErrCodeInsufficientFunds    ErrorCode = "insufficient_funds"
	ErrCodeMempoolFull          ErrorCode = "mempool_full"

	// Mining errors
	ErrCodeMiningTimeout     ErrorCode = "mining_timeout"
	ErrCodeMiningCanceled    ErrorCode = "mining_canceled"
	ErrCodeStaleCandidate    ErrorCode = "stale_candidate"
	ErrCodeInvalidDifficulty ErrorCode = "invalid_difficulty"

	// Transport errors
	ErrCodeBadRequest  ErrorCode = "bad_request"
	ErrCodeRateLimited ErrorCode = "rate_limited"
)

// Error message constants
const (
	ErrMsgInvalidIdentifier    = "Participant identifier is invalid"
	ErrMsgInvalidAmount        = "Amount is invalid or zero"
	ErrMsgUnknownParticipant   = "Participant is not registered"
	ErrMsgDuplicateParticipant = "Participant is already registered"
	ErrMsgParticipantInactive  = "Participant has been deactivated"
	ErrMsgInsufficientFunds    = "Not enough balance to cover amount and levy"
	ErrMsgMempoolFull          = "Pending queue is full"
	ErrMsgMiningTimeout        = "No valid seal found within the search bound"
	ErrMsgMiningCanceled       = "Mining was canceled by the caller"
	ErrMsgStaleCandidate       = "Another block was committed at this index first"
	ErrMsgInvalidDifficulty    = "Difficulty is outside the accepted range"
	ErrMsgInternal             = "Internal ledger error"
)

// LedgerError represents a standardized ledger error. Two LedgerErrors match
// under errors.Is when their codes are equal, so callers can compare against
// the sentinel values below regardless of the message.
type LedgerError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *LedgerError) Error() string {
	out, _ := jsonx.Marshal(LedgerError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(out)
}

func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Code == e.Code
}

// NewError creates a new LedgerError and returns it as error interface
func NewError(code ErrorCode, message string) error {
	return &LedgerError{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a LedgerError with a formatted message.
func Errorf(code ErrorCode, format string, args ...interface{}) error {
	return NewError(code, fmt.Sprintf(format, args...))
}

var (
	ErrInvalidIdentifier    = NewError(ErrCodeInvalidIdentifier, ErrMsgInvalidIdentifier)
	ErrInvalidAmount        = NewError(ErrCodeInvalidAmount, ErrMsgInvalidAmount)
	ErrUnknownParticipant   = NewError(ErrCodeUnknownParticipant, ErrMsgUnknownParticipant)
	ErrDuplicateParticipant = NewError(ErrCodeDuplicateParticipant, ErrMsgDuplicateParticipant)
	ErrParticipantInactive  = NewError(ErrCodeParticipantInactive, ErrMsgParticipantInactive)
	ErrInsufficientFunds    = NewError(ErrCodeInsufficientFunds, ErrMsgInsufficientFunds)
	ErrMempoolFull          = NewError(ErrCodeMempoolFull, ErrMsgMempoolFull)
	ErrMiningTimeout        = NewError(ErrCodeMiningTimeout, ErrMsgMiningTimeout)
	ErrMiningCanceled       = NewError(ErrCodeMiningCanceled, ErrMsgMiningCanceled)
	ErrStaleCandidate       = NewError(ErrCodeStaleCandidate, ErrMsgStaleCandidate)
	ErrInvalidDifficulty    = NewError(ErrCodeInvalidDifficulty, ErrMsgInvalidDifficulty)
)

// CodeOf extracts the error code of a LedgerError anywhere in err's chain.
func CodeOf(err error) ErrorCode {
	var le *LedgerError
	if stderrors.As(err, &le) {
		return le.Code
	}
	return ""
}
