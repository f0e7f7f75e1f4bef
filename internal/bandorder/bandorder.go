// Package bandorder models the user's chosen sequence of 1-indexed band
// numbers and the rules a sequence must satisfy before preview or export.
package bandorder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxPreviewBands is the largest selection a preview can compose.
const MaxPreviewBands = 3

// ErrEmpty reports an order with no bands.
var ErrEmpty = errors.New("no bands selected")

// Order is an ordered selection of 1-indexed band numbers.
type Order []int

// Default returns the ascending order 1..n.
func Default(n int) Order {
	if n < 1 {
		return Order{}
	}
	out := make(Order, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Reset restores the ascending order of a raster with n bands.
func (o Order) Reset(n int) Order {
	return Default(n)
}

// Parse reads a comma or space separated list such as "3,1,2".
func Parse(raw string) (Order, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, &ValidationError{Reason: ErrEmpty.Error(), Err: ErrEmpty}
	}
	out := make(Order, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("band %q is not a number", field), Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

// String renders the order in the form Parse accepts.
func (o Order) String() string {
	parts := make([]string, len(o))
	for i, b := range o {
		parts[i] = strconv.Itoa(b)
	}
	return strings.Join(parts, ",")
}

// Clone returns an independent copy.
func (o Order) Clone() Order {
	return append(Order(nil), o...)
}

// ValidateSubset checks that o is a non-empty, duplicate-free selection of
// bands from a raster with n bands.
func (o Order) ValidateSubset(n int) error {
	if len(o) == 0 {
		return &ValidationError{Order: o.Clone(), Reason: ErrEmpty.Error(), Err: ErrEmpty}
	}
	seen := make(map[int]bool, len(o))
	for _, b := range o {
		if b < 1 || b > n {
			return &ValidationError{Order: o.Clone(), Band: b, Reason: fmt.Sprintf("band %d out of range 1..%d", b, n)}
		}
		if seen[b] {
			return &ValidationError{Order: o.Clone(), Band: b, Reason: fmt.Sprintf("band %d selected more than once", b)}
		}
		seen[b] = true
	}
	return nil
}

// ValidatePermutation checks that o reorders every band of an n-band raster.
func (o Order) ValidatePermutation(n int) error {
	if err := o.ValidateSubset(n); err != nil {
		return err
	}
	if len(o) != n {
		return &ValidationError{Order: o.Clone(), Reason: fmt.Sprintf("order has %d bands, raster has %d", len(o), n)}
	}
	return nil
}

// ValidatePreview checks that o selects one to three bands of an n-band
// raster.
func (o Order) ValidatePreview(n int) error {
	if len(o) > MaxPreviewBands {
		return &ValidationError{Order: o.Clone(), Reason: fmt.Sprintf("preview takes 1 to %d bands, got %d", MaxPreviewBands, len(o))}
	}
	return o.ValidateSubset(n)
}

// ValidationError reports a band selection rejected before any I/O.
type ValidationError struct {
	Order  Order
	Band   int
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Order) > 0 {
		return fmt.Sprintf("invalid band order [%s]: %s", e.Order, e.Reason)
	}
	return "invalid band order: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for presentation.
func (e *ValidationError) ErrorKind() string { return "validation" }
