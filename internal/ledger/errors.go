// Package ledger defines the typed failures of the stock ledger. Every
// failure below is recoverable and returned to the caller; the core never
// logs or swallows them.
package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity is returned for non-positive movement quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")

	// ErrNotFound is returned when a referenced medicine, batch or order
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInsufficientStock is the sentinel matched by errors.Is for both the
	// medicine-level availability check and the per-batch write guard.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrAlreadyFinalized is returned when a delivered or cancelled order is
	// asked to transition again. The order is left untouched.
	ErrAlreadyFinalized = errors.New("order is already finalized")

	// ErrInconsistentState is reserved for invariant violations that should
	// never surface while mutations stay serialized per medicine.
	ErrInconsistentState = errors.New("ledger state is inconsistent")
)

// InsufficientStockError carries the shortfall of a rejected dispense.
type InsufficientStockError struct {
	MedicineID string
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %s: requested %d, available %d (short %d)",
		e.MedicineID, e.Requested, e.Available, e.Shortfall())
}

// Shortfall is the quantity that could not be covered.
func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
