package condition

import "errors"

// Construction errors. Both are raised when a tree is built from its tagged
// JSON shape, never at evaluation time: a tree that fails to build is rejected
// outright rather than silently evaluating to a constant (fail closed).
var (
	// ErrUnknownKind is returned when a payload names a discriminator tag
	// that has no registered constructor.
	ErrUnknownKind = errors.New("unknown condition kind")

	// ErrMalformedPayload is returned when a payload is not valid JSON, is
	// missing required fields, or carries fields of the wrong shape.
	ErrMalformedPayload = errors.New("malformed condition payload")
)
