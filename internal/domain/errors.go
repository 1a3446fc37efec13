package domain

import "errors"

var (
	// ErrSchema reports that a field required to attribute or join records is
	// absent from the whole record set. It is always fatal for the run.
	ErrSchema = errors.New("required field missing from schema")

	// ErrUnsupportedCRS reports a boundary layer in a reference system that
	// cannot be projected for area computation.
	ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")
)
