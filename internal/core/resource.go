package core

import "sort"

// Resource is a single declared infrastructure object: a caller-chosen
// logical id, a kind tag, validated properties, and the set of logical ids
// it depends on (derived from the references its properties embed).
//
// A Resource only comes out of a builder's finalize step and is immutable
// from then on.
type Resource struct {
	id           string
	kind         string
	props        map[string]Value
	dependsOn    []string
	explicitDeps []string
}

// NewResource constructs a finalized resource. Dependencies are derived from
// references embedded in props; extraDeps adds explicit ordering edges on top.
func NewResource(id, kind string, props map[string]Value, extraDeps ...string) *Resource {
	cp := make(map[string]Value, len(props))
	for k, v := range props {
		cp[k] = v
	}

	seen := make(map[string]bool)
	var deps []string
	add := func(target string) {
		if target != "" && target != id && !seen[target] {
			seen[target] = true
			deps = append(deps, target)
		}
	}
	for _, v := range cp {
		for _, ref := range v.References() {
			add(ref.LogicalID)
		}
	}
	var explicit []string
	for _, d := range extraDeps {
		if d != "" && d != id {
			explicit = append(explicit, d)
		}
		add(d)
	}
	sort.Strings(deps)
	sort.Strings(explicit)

	return &Resource{id: id, kind: kind, props: cp, dependsOn: deps, explicitDeps: explicit}
}

// ID returns the logical id, unique within a stack.
func (r *Resource) ID() string { return r.id }

// Kind returns the resource-kind tag.
func (r *Resource) Kind() string { return r.kind }

// Property returns the named property value.
func (r *Resource) Property(name string) (Value, bool) {
	v, ok := r.props[name]
	return v, ok
}

// PropertyNames returns the property names in sorted order.
func (r *Resource) PropertyNames() []string {
	names := make([]string, 0, len(r.props))
	for k := range r.props {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DependsOn returns the logical ids this resource depends on, sorted.
func (r *Resource) DependsOn() []string {
	out := make([]string, len(r.dependsOn))
	copy(out, r.dependsOn)
	return out
}

// ExplicitDependsOn returns ordering edges added beyond those derived from
// references. These are emitted into the template as an explicit clause.
// Nil when there are none, so a synthesized template and its re-parsed form
// carry the same value.
func (r *Resource) ExplicitDependsOn() []string {
	if len(r.explicitDeps) == 0 {
		return nil
	}
	out := make([]string, len(r.explicitDeps))
	copy(out, r.explicitDeps)
	return out
}

// References returns every reference embedded in the resource's properties.
func (r *Resource) References() []Reference {
	var refs []Reference
	for _, name := range r.PropertyNames() {
		refs = append(refs, r.props[name].References()...)
	}
	return refs
}
