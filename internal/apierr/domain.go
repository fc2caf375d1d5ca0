package apierr

import "errors"

// ErrAdminRequired is the domain failure for any 403 on an admin route.
var ErrAdminRequired = errors.New("Admin access required")

// DomainError re-labels a failure with a service-specific message while
// keeping the normalized error reachable through errors.As.
type DomainError struct {
	Message string
	Kind    error // optional sentinel matched by errors.Is
	Err     error
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Err }

func (e *DomainError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Wrap re-labels err with msg. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &DomainError{Message: msg, Err: err}
}

// AdminRequired turns a 403 into ErrAdminRequired; anything else passes
// through unchanged.
func AdminRequired(err error) error {
	if d := GetDetails(err); d != nil && d.Status == 403 {
		return &DomainError{Message: ErrAdminRequired.Error(), Kind: ErrAdminRequired, Err: err}
	}
	return err
}
