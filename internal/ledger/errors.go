package ledger

import (
	"fmt"

	"github.com/lokapos/lokapos/internal/shared"
)

// BalanceError reports a journal whose debit and credit totals diverge
// after rounding to two decimals. Nothing is persisted when it fires.
type BalanceError struct {
	Debit  float64
	Credit float64
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("ledger: journal unbalanced: debit %.2f vs credit %.2f", e.Debit, e.Credit)
}

// Unwrap lets callers treat a balance violation as a validation error.
func (e *BalanceError) Unwrap() error {
	return shared.ErrValidation
}

// AccountError reports a journal line naming a code that neither the
// default chart nor the tenant database defines.
type AccountError struct {
	Code string
}

func (e *AccountError) Error() string {
	return fmt.Sprintf("ledger: account %s is not defined", e.Code)
}

func (e *AccountError) Unwrap() error {
	return shared.ErrValidation
}
