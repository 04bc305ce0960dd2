package kre

import (
	"fmt"

	"github.com/pkg/errors"
)

// CryptoFailure wraps an error surfaced by the crypto capability (share
// combine, key mismatch). It is always fatal: the driver emits Abort.
type CryptoFailure struct {
	Err error
}

func (e *CryptoFailure) Error() string {
	return fmt.Sprintf("kre: crypto failure: %v", e.Err)
}

func (e *CryptoFailure) Unwrap() error { return e.Err }

// RangeViolation is raised when a decrypted aggregate exceeds N, which can
// only happen under DP noise or a crypto failure.
type RangeViolation struct {
	SumLT, SumGT, N int
}

func (e *RangeViolation) Error() string {
	return fmt.Sprintf("kre: range violation: sum_lt=%d sum_gt=%d N=%d", e.SumLT, e.SumGT, e.N)
}

// TransportFailure wraps a delivery or deadline failure from the networked
// driver.
type TransportFailure struct {
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("kre: transport failure: %v", e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// RoundCapExceeded is raised when the search has not converged within the
// configured round cap.
type RoundCapExceeded struct {
	Rounds, Cap int
}

func (e *RoundCapExceeded) Error() string {
	return fmt.Sprintf("kre: round cap exceeded: ran %d rounds, cap is %d", e.Rounds, e.Cap)
}

// InputInvalid is returned at construction time, never during a round.
type InputInvalid struct {
	Reason string
}

func (e *InputInvalid) Error() string {
	return fmt.Sprintf("kre: invalid input: %s", e.Reason)
}

func wrapCrypto(err error, context string) error {
	return &CryptoFailure{Err: errors.Wrap(err, context)}
}
