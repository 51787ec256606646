// Package lookup verifies that externally-created resources referenced by a
// stack, but not managed by it, actually exist. The core graph logic only
// sees the Verifier interface; concrete cloud adapters live next to it.
package lookup

import "context"

// Result of an existence check.
type Result int

const (
	// Exists: the resource was found.
	Exists Result = iota
	// Missing: the provider authoritatively reported no such resource.
	Missing
	// Unknown: the check could not be completed (network, permissions,
	// unsupported kind). Treated as a soft outcome, never an error.
	Unknown
)

func (r Result) String() string {
	switch r {
	case Exists:
		return "exists"
	case Missing:
		return "missing"
	default:
		return "unknown"
	}
}

// Verifier checks whether a resource of the given kind and physical
// identifier exists in the target environment.
type Verifier interface {
	VerifyExists(ctx context.Context, kind, identifier string) (Result, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, kind, identifier string) (Result, error)

func (f VerifierFunc) VerifyExists(ctx context.Context, kind, identifier string) (Result, error) {
	return f(ctx, kind, identifier)
}
