package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the caller may not perform the action.
	ErrForbidden = errors.New("forbidden")
	// ErrTenantRequired indicates a tenant-scoped handler ran without a tenant bound to the request.
	ErrTenantRequired = errors.New("tenant required")
	// ErrTenantSuspended indicates the tenant is blocked from transacting.
	ErrTenantSuspended = errors.New("tenant suspended")
)
