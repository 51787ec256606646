package constraint

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	RequiredFieldMissing  ErrorKind = "RequiredFieldMissing"
	PatternMismatch       ErrorKind = "PatternMismatch"
	OutOfRange            ErrorKind = "OutOfRange"
	MutualExclusion       ErrorKind = "MutualExclusion"
	DuplicateIdentity     ErrorKind = "DuplicateIdentity"
	UnresolvableReference ErrorKind = "UnresolvableReference"
	CyclicDependency      ErrorKind = "CyclicDependency"
	InvalidTag            ErrorKind = "InvalidTag"
	UnknownResource       ErrorKind = "UnknownResource"
)

// ValidationError is a local, deterministic configuration failure. It is
// always surfaced synchronously and never retried.
type ValidationError struct {
	Kind       ErrorKind
	ResourceID string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.ResourceID != "" {
		fmt.Fprintf(&b, " [%s]", e.ResourceID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// Violations aggregates every validation failure found in one finalize or
// build pass. Callers get the complete set, not just the first hit.
type Violations []*ValidationError

func (v Violations) Error() string {
	if len(v) == 1 {
		return v[0].Error()
	}
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(v), strings.Join(parts, "\n  - "))
}

// Add appends err if it is non-nil. Violations and single errors both flatten.
func (v *Violations) Add(err *ValidationError) {
	if err != nil {
		*v = append(*v, err)
	}
}

// Merge appends all entries of other.
func (v *Violations) Merge(other Violations) {
	*v = append(*v, other...)
}

// OrNil returns the aggregate as an error, or nil when empty.
func (v Violations) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Finalize stamps the resource id on every violation missing one and
// returns the aggregate as an error, or nil when clean. Builders call this
// at the end of their finalize step.
func (v Violations) Finalize(resourceID string) error {
	for _, e := range v {
		if e.ResourceID == "" {
			e.ResourceID = resourceID
		}
	}
	return v.OrNil()
}

// Has reports whether any violation of the given kind is present.
func (v Violations) Has(kind ErrorKind) bool {
	for _, e := range v {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
