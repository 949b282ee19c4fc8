// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/lokapos/lokapos/internal/shared"
)

// HTTPError is implemented by domain errors that carry their own status
// code and client-facing hint, such as provisioning failures.
type HTTPError interface {
	error
	HTTPStatus() int
	Hint() string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var httpErr HTTPError
	switch {
	case errors.As(err, &httpErr):
		Problem(w, httpErr.HTTPStatus(), httpErr.Error(), httpErr.Hint())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrTenantRequired):
		Problem(w, http.StatusBadRequest, "Tenant Required", err.Error())
	case errors.Is(err, shared.ErrTenantSuspended):
		Problem(w, http.StatusForbidden, "Tenant Suspended", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
