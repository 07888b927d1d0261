// Package capsuleerr defines the failure kinds surfaced by the capsule client.
package capsuleerr

import (
	"errors"
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
	"golang.org/x/xerrors"

	"github.com/DianaJonathan/timecapsule/actors/builtin/capsule"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmptyContent       = errors.New("empty content")
	ErrInvalidSchedule    = errors.New("release time is not in the future")
	ErrInvalidProof       = errors.New("ciphertext proof rejected")
	ErrNotFound           = errors.New("capsule not found")
	ErrAlreadyUnlocked    = errors.New("capsule already unlocked")
	ErrTooEarly           = errors.New("release time not reached")
	ErrUnauthorized       = errors.New("caller is neither owner nor heir")
	ErrSignatureDenied    = errors.New("session signature denied")
	ErrContentUnavailable = errors.New("ciphertext handles not loaded")
	ErrEngineFailure      = errors.New("encryption engine failure")
	ErrLedgerFailure      = errors.New("ledger failure")
)

// Error classifies a cause under one of the sentinel kinds above.
// errors.Is matches both the kind and anything in the cause chain.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Wrap classifies err under kind. Errors already classified are returned unchanged.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// Wrapf classifies a formatted message under kind.
func Wrapf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: xerrors.Errorf(format, args...)}
}

// Kind returns the sentinel an error is classified under, or nil.
func Kind(err error) error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

var kinds = []error{
	ErrInvalidInput, ErrEmptyContent, ErrInvalidSchedule, ErrInvalidProof, ErrNotFound, ErrAlreadyUnlocked,
	ErrTooEarly, ErrUnauthorized, ErrSignatureDenied, ErrContentUnavailable, ErrEngineFailure, ErrLedgerFailure,
}

// KindForExitCode maps the exit code of a failed capsule store message to a failure kind.
func KindForExitCode(code exitcode.ExitCode) error {
	switch code {
	case capsule.ErrInvalidSchedule:
		return ErrInvalidSchedule
	case capsule.ErrEmptyContent:
		return ErrEmptyContent
	case capsule.ErrInvalidProof:
		return ErrInvalidProof
	case capsule.ErrAlreadyUnlocked:
		return ErrAlreadyUnlocked
	case capsule.ErrTooEarly:
		return ErrTooEarly
	case exitcode.ErrNotFound:
		return ErrNotFound
	case exitcode.ErrForbidden, exitcode.SysErrForbidden:
		return ErrUnauthorized
	case exitcode.ErrIllegalArgument:
		return ErrInvalidInput
	default:
		return ErrLedgerFailure
	}
}

// FromExitCode classifies a failed message receipt.
func FromExitCode(code exitcode.ExitCode, cause error) error {
	if cause == nil {
		cause = xerrors.Errorf("exit code %d", code)
	}
	return &Error{Kind: KindForExitCode(code), Err: cause}
}
