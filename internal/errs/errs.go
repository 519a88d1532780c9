// Package errs holds the sentinel errors shared by the service and storage
// layers. Handlers map them to HTTP statuses with errors.Is.
package errs

import "errors"

var (
	// ErrNotFound covers dereferencing a nonexistent event, showing,
	// booking or ticket id.
	ErrNotFound = errors.New("not found")

	// ErrCapacity means a reservation asked for more tickets than the
	// showing currently has available. Nothing is created.
	ErrCapacity = errors.New("insufficient availability")

	// ErrStaleCart means the cart references tickets that have expired or
	// vanished. The caller must sweep and re-render instead of continuing.
	ErrStaleCart = errors.New("cart changed")

	// ErrPermission is returned for ownership failures. It carries no
	// detail about the resource's true owner.
	ErrPermission = errors.New("permission denied")

	// ErrValidation covers malformed or missing input.
	ErrValidation = errors.New("invalid input")
)
