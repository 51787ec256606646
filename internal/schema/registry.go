// Package schema holds the shared table of resource-kind descriptors.
// The stack assembler, template synthesizer, diff engine and lookup verifier
// all consult this one table instead of carrying kind-specific code paths.
package schema

import (
	"sort"
	"sync"
)

// Descriptor describes one resource kind.
type Descriptor struct {
	// Kind is the provisioning-API type tag, e.g. "AWS::DynamoDB::Table".
	Kind string
	// Attributes are the names resolvable through attribute references
	// (beyond the literal identifier, which every kind supports).
	Attributes []string
	// IdentityAffecting lists property paths whose change cannot be applied
	// in place and forces delete+create. Sourced from the provider's
	// documented update semantics, not invented.
	IdentityAffecting []string
}

var (
	mu          sync.RWMutex
	descriptors = make(map[string]Descriptor)
)

// Register adds a kind descriptor. Resource packages call this from init();
// registering the same kind twice is a programming error.
func Register(d Descriptor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := descriptors[d.Kind]; exists {
		panic("schema: duplicate descriptor for kind " + d.Kind)
	}
	descriptors[d.Kind] = d
}

// Lookup returns the descriptor for a kind.
func Lookup(kind string) (Descriptor, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := descriptors[kind]
	return d, ok
}

// HasAttribute reports whether a kind exposes the named attribute.
// An empty attribute name means the literal identifier, valid for any kind.
// Unknown kinds are permissive: their attributes cannot be checked locally.
func HasAttribute(kind, attribute string) bool {
	if attribute == "" {
		return true
	}
	d, ok := Lookup(kind)
	if !ok {
		return true
	}
	for _, a := range d.Attributes {
		if a == attribute {
			return true
		}
	}
	return false
}

// IdentityAffecting reports whether changing the property path forces
// replacement for the kind. Unknown kinds report false and diff falls back
// to plain modification.
func IdentityAffecting(kind, path string) bool {
	d, ok := Lookup(kind)
	if !ok {
		return false
	}
	for _, p := range d.IdentityAffecting {
		if p == path {
			return true
		}
	}
	return false
}

// Kinds returns all registered kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(descriptors))
	for k := range descriptors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
