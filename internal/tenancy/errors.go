package tenancy

import (
	"fmt"
	"net/http"
)

// Provisioning failure codes.
const (
	CodePermissionDenied = "permission-denied"
	CodeConnectionFailed = "connection-failed"
	CodeCreateFailed     = "create-failed"
	CodeMigrationFailed  = "migration-failed"
	CodeUnresolvable     = "unresolvable-connection"
)

// ProvisionError wraps a tenant database provisioning failure with a
// machine-readable code and an operator hint. It is replayed from the
// failure cache during the retry backoff window.
type ProvisionError struct {
	Subdomain string
	Code      string
	Err       error
}

func (e *ProvisionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provision tenant %s: %s", e.Subdomain, e.Code)
	}
	return fmt.Sprintf("provision tenant %s: %s: %v", e.Subdomain, e.Code, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// HTTPStatus reports provisioning failures as service-unavailable.
func (e *ProvisionError) HTTPStatus() int {
	return http.StatusServiceUnavailable
}

// Hint returns an actionable message for the operator.
func (e *ProvisionError) Hint() string {
	switch e.Code {
	case CodePermissionDenied:
		return "the provisioning role lacks the CREATEDB privilege; grant it with ALTER ROLE ... CREATEDB or point TENANT_DATABASE_ADMIN_URL at a role that has it"
	case CodeConnectionFailed:
		return "the database server was unreachable with the admin credentials; verify TENANT_DATABASE_ADMIN_URL"
	case CodeCreateFailed:
		return "CREATE DATABASE failed; check server capacity and database limits"
	case CodeMigrationFailed:
		return "the tenant database was created but schema sync failed; it will be retried after the backoff window"
	case CodeUnresolvable:
		return "no connection override found in tenant settings or environment, and auto-provisioning is disabled (TENANT_DB_AUTO_PROVISION=false)"
	}
	return "tenant database provisioning failed; it will be retried after the backoff window"
}

func newProvisionError(subdomain, code string, err error) *ProvisionError {
	return &ProvisionError{Subdomain: subdomain, Code: code, Err: err}
}
