// Package diff compares two canonical templates and classifies per-resource
// changes. It is a pure value comparison: no external calls, no side effects.
package diff

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mason-iac/mason/internal/schema"
	"github.com/mason-iac/mason/internal/synth"
)

// ChangeKind classifies one logical id's change between two templates.
type ChangeKind string

const (
	Unchanged ChangeKind = "unchanged"
	Added     ChangeKind = "added"
	Removed   ChangeKind = "removed"
	Modified  ChangeKind = "modified"
)

// ResourceDiff describes the change to one logical id.
type ResourceDiff struct {
	LogicalID string
	Kind      string // resource kind in next (or prev for removals)
	Change    ChangeKind
	// Paths lists the changed property paths for modifications.
	Paths []string
	// Replaced marks a modification that cannot be applied in place and
	// forces delete+create, per the kind's identity-affecting field table.
	Replaced bool
}

// Result is the computed delta between a previously deployed template and a
// newly synthesized one. Produced fresh per deploy attempt, never persisted.
type Result struct {
	byID  map[string]ResourceDiff
	order []string
}

// Entries returns all per-resource diffs in logical-id order.
func (r *Result) Entries() []ResourceDiff {
	out := make([]ResourceDiff, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Entry returns the diff for one logical id.
func (r *Result) Entry(id string) (ResourceDiff, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Changed reports whether anything differs; false means the deploy is a no-op.
func (r *Result) Changed() bool {
	for _, d := range r.byID {
		if d.Change != Unchanged {
			return true
		}
	}
	return false
}

// Summary counts entries per change kind, with replacements counted apart
// from in-place modifications.
func (r *Result) Summary() (added, removed, modified, replaced, unchanged int) {
	for _, d := range r.byID {
		switch d.Change {
		case Added:
			added++
		case Removed:
			removed++
		case Modified:
			if d.Replaced {
				replaced++
			} else {
				modified++
			}
		case Unchanged:
			unchanged++
		}
	}
	return
}

// Diff compares prev against next. A nil prev means no template was ever
// deployed: every logical id in next is Added. A nil next marks everything
// Removed. Diff(t, t) is always empty.
func Diff(prev, next *synth.Template) *Result {
	result := &Result{byID: make(map[string]ResourceDiff)}

	ids := make(map[string]bool)
	if prev != nil {
		for id := range prev.Resources {
			ids[id] = true
		}
	}
	if next != nil {
		for id := range next.Resources {
			ids[id] = true
		}
	}
	for id := range ids {
		result.order = append(result.order, id)
	}
	sort.Strings(result.order)

	for _, id := range result.order {
		var prevRes, nextRes synth.TemplateResource
		var inPrev, inNext bool
		if prev != nil {
			prevRes, inPrev = prev.Resources[id]
		}
		if next != nil {
			nextRes, inNext = next.Resources[id]
		}

		switch {
		case !inPrev:
			result.byID[id] = ResourceDiff{LogicalID: id, Kind: nextRes.Type, Change: Added}
		case !inNext:
			result.byID[id] = ResourceDiff{LogicalID: id, Kind: prevRes.Type, Change: Removed}
		default:
			result.byID[id] = compareResource(id, prevRes, nextRes)
		}
	}

	return result
}

// compareResource classifies one logical id present in both templates.
func compareResource(id string, prev, next synth.TemplateResource) ResourceDiff {
	if prev.Type != next.Type {
		// A kind change is always a replacement.
		return ResourceDiff{
			LogicalID: id,
			Kind:      next.Type,
			Change:    Modified,
			Paths:     []string{"Type"},
			Replaced:  true,
		}
	}

	var paths []string
	comparePaths("", prev.Properties, next.Properties, &paths)
	if !sameDependsOn(prev.DependsOn, next.DependsOn) {
		paths = append(paths, "DependsOn")
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return ResourceDiff{LogicalID: id, Kind: next.Type, Change: Unchanged}
	}

	d := ResourceDiff{LogicalID: id, Kind: next.Type, Change: Modified, Paths: paths}
	for _, p := range paths {
		if schema.IdentityAffecting(next.Type, rootOf(p)) {
			d.Replaced = true
			break
		}
	}
	return d
}

// sameDependsOn compares DependsOn clauses, treating an absent clause and an
// empty one as equal: omitempty drops the empty clause on serialization, so a
// re-parsed template carries nil where the synthesized one had zero entries.
func sameDependsOn(prev, next []string) bool {
	if len(prev) == 0 && len(next) == 0 {
		return true
	}
	return reflect.DeepEqual(prev, next)
}

// comparePaths walks both property trees and records the paths that differ.
// Maps recurse per key; anything else compares as a whole value.
func comparePaths(prefix string, prev, next map[string]any, paths *[]string) {
	keys := make(map[string]bool, len(prev)+len(next))
	for k := range prev {
		keys[k] = true
	}
	for k := range next {
		keys[k] = true
	}

	for k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		pv, inPrev := prev[k]
		nv, inNext := next[k]

		if !inPrev || !inNext {
			*paths = append(*paths, path)
			continue
		}

		pm, pOK := pv.(map[string]any)
		nm, nOK := nv.(map[string]any)
		if pOK && nOK && !isIntrinsic(pm) && !isIntrinsic(nm) {
			comparePaths(path, pm, nm, paths)
			continue
		}

		if !reflect.DeepEqual(pv, nv) {
			*paths = append(*paths, path)
		}
	}
}

// isIntrinsic reports whether a map node is a reserved intrinsic-function
// node rather than a user property map. Intrinsics compare atomically.
func isIntrinsic(m map[string]any) bool {
	if len(m) != 1 {
		return false
	}
	for k := range m {
		if k == "Ref" || strings.HasPrefix(k, "Fn::") {
			return true
		}
	}
	return false
}

// rootOf returns the top-level property name of a dotted path; the
// identity-affecting table is keyed by top-level properties.
func rootOf(path string) string {
	if i := strings.Index(path, "."); i >= 0 {
		return path[:i]
	}
	return path
}

// Format renders a plan-style listing of the result.
func Format(r *Result) string {
	var b strings.Builder
	for _, d := range r.Entries() {
		switch d.Change {
		case Added:
			fmt.Fprintf(&b, "  + %s (%s)\n", d.LogicalID, d.Kind)
		case Removed:
			fmt.Fprintf(&b, "  - %s (%s)\n", d.LogicalID, d.Kind)
		case Modified:
			symbol := "  ~"
			if d.Replaced {
				symbol = "-/+"
			}
			fmt.Fprintf(&b, "%s %s (%s): %s\n", symbol, d.LogicalID, d.Kind, strings.Join(d.Paths, ", "))
		}
	}
	if b.Len() == 0 {
		return "  no changes\n"
	}
	return b.String()
}
