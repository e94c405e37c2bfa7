package reserves

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	PROOF_ERR_MALFORMED          ErrorCode = "PROOF_ERR_MALFORMED"
	PROOF_ERR_UNFINALIZED        ErrorCode = "PROOF_ERR_UNFINALIZED"
	PROOF_ERR_WRONG_OUTPUT_COUNT ErrorCode = "PROOF_ERR_WRONG_OUTPUT_COUNT"

	PROOF_ERR_NO_INPUTS          ErrorCode = "PROOF_ERR_NO_INPUTS"
	PROOF_ERR_BAD_CHALLENGE      ErrorCode = "PROOF_ERR_BAD_CHALLENGE"
	PROOF_ERR_UNCLAIMED_ADDRESS  ErrorCode = "PROOF_ERR_UNCLAIMED_ADDRESS"
	PROOF_ERR_INVALID_SIGNATURE  ErrorCode = "PROOF_ERR_INVALID_SIGNATURE"
	PROOF_ERR_OVERFLOW           ErrorCode = "PROOF_ERR_OVERFLOW"
	PROOF_ERR_VALUE_CONSERVATION ErrorCode = "PROOF_ERR_VALUE_CONSERVATION"
	PROOF_ERR_INVALID_OUTPUT     ErrorCode = "PROOF_ERR_INVALID_OUTPUT"

	PROOF_ERR_NO_ADDRESSES    ErrorCode = "PROOF_ERR_NO_ADDRESSES"
	PROOF_ERR_INVALID_ADDRESS ErrorCode = "PROOF_ERR_INVALID_ADDRESS"
)

// ErrorKind separates failures to read the proof from proofs that were read
// and found wanting.
type ErrorKind int

const (
	KindDecode ErrorKind = iota
	KindRejection
)

func (k ErrorKind) String() string {
	if k == KindDecode {
		return "decode"
	}
	return "rejection"
}

func (c ErrorCode) Kind() ErrorKind {
	switch c {
	case PROOF_ERR_MALFORMED, PROOF_ERR_UNFINALIZED, PROOF_ERR_WRONG_OUTPUT_COUNT:
		return KindDecode
	default:
		return KindRejection
	}
}

// Description is the human-readable reason surfaced to callers.
func (c ErrorCode) Description() string {
	switch c {
	case PROOF_ERR_MALFORMED:
		return "proof is not a valid PSBT encoding"
	case PROOF_ERR_UNFINALIZED:
		return "input lacks finalized unlocking data"
	case PROOF_ERR_WRONG_OUTPUT_COUNT:
		return "proof must have exactly one output"
	case PROOF_ERR_NO_INPUTS:
		return "proof has no inputs"
	case PROOF_ERR_BAD_CHALLENGE:
		return "first input does not match the message challenge"
	case PROOF_ERR_UNCLAIMED_ADDRESS:
		return "input spends from an address that was not claimed"
	case PROOF_ERR_INVALID_SIGNATURE:
		return "input signature verification failed"
	case PROOF_ERR_OVERFLOW:
		return "spendable total exceeds the representable amount"
	case PROOF_ERR_VALUE_CONSERVATION:
		return "output value exceeds total input value"
	case PROOF_ERR_INVALID_OUTPUT:
		return "output does not pay the unspendable proof script"
	case PROOF_ERR_NO_ADDRESSES:
		return "no address provided"
	case PROOF_ERR_INVALID_ADDRESS:
		return "invalid address"
	default:
		return string(c)
	}
}

// ProofError is the single error type returned by the verifier. Input is the
// offending input index, or -1 when the failure is not tied to an input.
type ProofError struct {
	Code  ErrorCode
	Input int
	Msg   string
}

func (e *ProofError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Code.Description()
	}
	if e.Input >= 0 {
		return fmt.Sprintf("%s: input %d: %s", e.Code, e.Input, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func prooferr(code ErrorCode, msg string) error {
	return &ProofError{Code: code, Input: -1, Msg: msg}
}

func inputerr(code ErrorCode, idx int, msg string) error {
	return &ProofError{Code: code, Input: idx, Msg: msg}
}

// CodeOf returns the ErrorCode carried by err, or "" when err is not a
// *ProofError.
func CodeOf(err error) ErrorCode {
	var pe *ProofError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// atInput re-tags a *ProofError with the index of the input it concerns.
func atInput(err error, idx int) error {
	var pe *ProofError
	if errors.As(err, &pe) {
		return &ProofError{Code: pe.Code, Input: idx, Msg: pe.Msg}
	}
	return err
}
