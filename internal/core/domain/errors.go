package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrTerminalState        = errors.New("order is in a terminal state")
	ErrActionNotPermitted   = errors.New("action not permitted for viewer")
	ErrVendorProfileMissing = errors.New("vendor profile missing")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrCollaboratorFailure  = errors.New("collaborator failure")

	ErrOrderNotFound       = errors.New("order not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrVendorNotFound      = errors.New("vendor not found")
	ErrVendorNotApproved   = errors.New("vendor not approved")
	ErrVendorExists        = errors.New("vendor profile already exists")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item unavailable")
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrAlreadyReviewed     = errors.New("order already reviewed")
	ErrImmutableField      = errors.New("field is immutable")
	ErrInvalidInput        = errors.New("invalid input")
)

// CollaboratorError wraps a failure of the data or auth collaborator.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaboratorFailure
}

// Collaborator wraps err as a CollaboratorError unless it is nil or already
// wrapped.
func Collaborator(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		return err
	}
	return &CollaboratorError{Op: op, Err: err}
}
