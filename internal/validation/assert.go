// Package validation provides contract-enforcement helpers for wiring code.
package validation

import "fmt"

// AssertNotNil panics if the provided pointer is nil. It is intended for
// constructors whose dependencies are mandatory: a nil there is a programmer
// error, not a runtime condition.
//
// Usage:
//
//	validation.AssertNotNil(db, "database pool")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}
