package records

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorizedIdentity indicates the caller could not be resolved to an active user.
	ErrUnauthorizedIdentity = errors.New("records: unauthorized identity")
	// ErrRecordNotFound indicates a single-record lookup matched nothing.
	ErrRecordNotFound = errors.New("records: record not found")
	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("records: validation failed")
	// ErrPersistence indicates the store failed for infrastructural reasons.
	ErrPersistence = errors.New("records: persistence failure")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIdentities = errors.New("identity resolver is required")
	errMissingIDProvider = errors.New("id provider is required")
	errInvalidDescriptor = errors.New("descriptor is incomplete")
)

// ServiceError carries a stable "records.<op>.<reason>" code alongside the error kind.
type ServiceError struct {
	code string
	kind error
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *ServiceError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

func (e *ServiceError) Code() string {
	return e.code
}

func (e *ServiceError) Kind() error {
	return e.kind
}

func newServiceError(operation, reason string, kind, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, kind: kind, err: cause}
}

// KindOf reports which error kind err belongs to. Unclassified errors are persistence failures.
func KindOf(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnauthorizedIdentity):
		return ErrUnauthorizedIdentity
	case errors.Is(err, ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, ErrValidation):
		return ErrValidation
	default:
		return ErrPersistence
	}
}
