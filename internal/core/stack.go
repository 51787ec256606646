package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/logging"
	"github.com/mason-iac/mason/internal/lookup"
	"github.com/mason-iac/mason/internal/schema"
)

const maxStackTags = 50

// ErrBuilderFinalized is returned when a StackBuilder is used after Build.
var ErrBuilderFinalized = errors.New("stack builder already finalized")

// External declares a resource that exists outside the stack but is
// referenced by it, subject to verification at build time.
type External struct {
	Kind       string
	Identifier string
}

// StackBuilder collects finalized resources and assembles them into a Stack.
// It is single-use: after Build succeeds or fails it rejects further calls.
type StackBuilder struct {
	resources map[string]*Resource
	tags      map[string]string
	tagOrder  []string
	externals []External
	assets    []Asset

	verifier lookup.Verifier
	strict   bool

	finalized bool
}

// NewStackBuilder returns an empty stack builder.
func NewStackBuilder() *StackBuilder {
	return &StackBuilder{
		resources: make(map[string]*Resource),
		tags:      make(map[string]string),
	}
}

// WithVerifier installs an external-resource verifier. In strict mode a
// resource the verifier reports missing fails the build; otherwise it only
// logs a warning. Unknown outcomes are always soft.
func (b *StackBuilder) WithVerifier(v lookup.Verifier, strict bool) *StackBuilder {
	b.verifier = v
	b.strict = strict
	return b
}

// Add inserts a finalized resource, failing with DuplicateIdentity when the
// logical id is already taken.
func (b *StackBuilder) Add(r *Resource) error {
	if b.finalized {
		return ErrBuilderFinalized
	}
	if _, exists := b.resources[r.ID()]; exists {
		return constraint.Violations{{
			Kind:       constraint.DuplicateIdentity,
			ResourceID: r.ID(),
			Reason:     "logical id already present in stack",
		}}
	}
	b.resources[r.ID()] = r
	return nil
}

// AddTag records a deploy-time stack tag. Tags are applied by the
// provisioning API, not embedded in the template.
func (b *StackBuilder) AddTag(key, value string) *StackBuilder {
	if _, exists := b.tags[key]; !exists {
		b.tagOrder = append(b.tagOrder, key)
	}
	b.tags[key] = value
	return b
}

// AddExternal records an externally-managed resource to verify at build time.
func (b *StackBuilder) AddExternal(kind, identifier string) *StackBuilder {
	b.externals = append(b.externals, External{Kind: kind, Identifier: identifier})
	return b
}

// AddAsset records an artifact to stage before deployment. Called by
// resource builders whose properties point at local files.
func (b *StackBuilder) AddAsset(a Asset) {
	b.assets = append(b.assets, a)
}

// Build is the terminal assembly step: it resolves every reference, builds
// the dependency graph, rejects cycles, computes deployment order, and runs
// stack-wide checks. On failure it returns the complete set of violations
// and no Stack; a partially valid stack is never exposed.
func (b *StackBuilder) Build(ctx context.Context) (*Stack, error) {
	if b.finalized {
		return nil, ErrBuilderFinalized
	}
	b.finalized = true

	var violations constraint.Violations

	// Every reference must resolve within this stack, against a real
	// attribute of the target kind. Checked eagerly, never deferred to
	// deployment.
	ids := make([]string, 0, len(b.resources))
	for id := range b.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, ref := range b.resources[id].References() {
			target, ok := b.resources[ref.LogicalID]
			if !ok {
				violations.Add(&constraint.ValidationError{
					Kind:       constraint.UnresolvableReference,
					ResourceID: id,
					Field:      ref.String(),
					Reason:     fmt.Sprintf("references %q which is not in the stack", ref.LogicalID),
				})
				continue
			}
			if !schema.HasAttribute(target.Kind(), ref.Attribute) {
				violations.Add(&constraint.ValidationError{
					Kind:       constraint.UnresolvableReference,
					ResourceID: id,
					Field:      ref.String(),
					Reason:     fmt.Sprintf("kind %s has no attribute %q", target.Kind(), ref.Attribute),
				})
			}
		}
	}

	g, graphViolations := buildGraph(b.resources)
	violations.Merge(graphViolations)

	if len(b.tags) > maxStackTags {
		violations.Add(&constraint.ValidationError{
			Kind:   constraint.InvalidTag,
			Reason: fmt.Sprintf("stack carries %d tags, maximum is %d", len(b.tags), maxStackTags),
		})
	}
	for _, key := range b.tagOrder {
		violations.Add(constraint.ValidTag(key, b.tags[key]))
	}

	violations.Merge(b.verifyExternals(ctx))

	if err := violations.OrNil(); err != nil {
		return nil, err
	}

	tags := make(map[string]string, len(b.tags))
	for k, v := range b.tags {
		tags[k] = v
	}
	return &Stack{resources: b.resources, tags: tags, graph: g, assets: b.assets}, nil
}

// BuildStack lets a StackBuilder be handed directly to the orchestrator,
// which runs assembly as its validation stage.
func (b *StackBuilder) BuildStack(ctx context.Context) (*Stack, error) {
	return b.Build(ctx)
}

// verifyExternals checks declared external resources against the verifier.
// Failure to verify is a warning unless strict mode is on.
func (b *StackBuilder) verifyExternals(ctx context.Context) constraint.Violations {
	if b.verifier == nil || len(b.externals) == 0 {
		return nil
	}
	var violations constraint.Violations
	for _, ext := range b.externals {
		result, err := b.verifier.VerifyExists(ctx, ext.Kind, ext.Identifier)
		if err != nil {
			result = lookup.Unknown
		}
		switch result {
		case lookup.Exists:
			// fine
		case lookup.Missing:
			if b.strict {
				violations.Add(&constraint.ValidationError{
					Kind:       constraint.UnknownResource,
					ResourceID: ext.Identifier,
					Field:      ext.Kind,
					Reason:     "external resource does not exist",
				})
			} else {
				logging.Warn("external resource not found", "kind", ext.Kind, "identifier", ext.Identifier)
			}
		case lookup.Unknown:
			logging.Warn("could not verify external resource", "kind", ext.Kind, "identifier", ext.Identifier, "error", err)
		}
	}
	return violations
}

// Stack is a validated, acyclic, immutable collection of resources deployed
// and diffed as one unit. Safe to share read-only across goroutines.
type Stack struct {
	resources map[string]*Resource
	tags      map[string]string
	graph     *graph
	assets    []Asset
}

// BuildStack returns the stack itself: an already-built stack needs no
// further validation.
func (s *Stack) BuildStack(ctx context.Context) (*Stack, error) {
	return s, nil
}

// Resource returns the resource with the given logical id.
func (s *Stack) Resource(id string) (*Resource, bool) {
	r, ok := s.resources[id]
	return r, ok
}

// ResourceIDs returns all logical ids in sorted order.
func (s *Stack) ResourceIDs() []string {
	ids := make([]string, 0, len(s.resources))
	for id := range s.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeployOrder returns logical ids dependencies-first.
func (s *Stack) DeployOrder() []string { return s.graph.deployOrder() }

// DestroyOrder returns logical ids dependents-first.
func (s *Stack) DestroyOrder() []string { return s.graph.destroyOrder() }

// Dependencies returns the logical ids the given resource depends on within
// the stack.
func (s *Stack) Dependencies(id string) []string { return s.graph.dependencies(id) }

// Assets returns the artifacts to stage before submitting this stack.
func (s *Stack) Assets() []Asset {
	out := make([]Asset, len(s.assets))
	copy(out, s.assets)
	return out
}

// Tags returns the deploy-time stack tags.
func (s *Stack) Tags() map[string]string {
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}
