// Package core holds the resource model: property values, cross-resource
// references, finalized resources, and the stack assembler that turns them
// into a validated, acyclic, deployable unit.
package core

import (
	"encoding/json"
	"strconv"
)

// valueKind tags the Value union.
type valueKind int

const (
	kindInvalid valueKind = iota
	kindString
	kindInt
	kindBool
	kindList
	kindMap
	kindRef
)

// Value is a tagged union over the property types a resource can carry:
// string, integer, boolean, list, nested map, or a reference to another
// resource. Values are immutable; constructors are the only way to make one.
type Value struct {
	kind    valueKind
	str     string
	num     int64
	boolean bool
	list    []Value
	object  map[string]Value
	ref     Reference
}

// String makes a string value.
func String(s string) Value { return Value{kind: kindString, str: s} }

// Int makes an integer value.
func Int(n int64) Value { return Value{kind: kindInt, num: n} }

// Bool makes a boolean value.
func Bool(b bool) Value { return Value{kind: kindBool, boolean: b} }

// List makes a list value.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: kindList, list: cp}
}

// Map makes a nested object value.
func Map(entries map[string]Value) Value {
	cp := make(map[string]Value, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Value{kind: kindMap, object: cp}
}

// Ref makes a reference value. It holds no concrete data; it is resolved
// structurally during assembly and textually during synthesis.
func Ref(r Reference) Value { return Value{kind: kindRef, ref: r} }

// IsValid reports whether the value was produced by a constructor.
func (v Value) IsValid() bool { return v.kind != kindInvalid }

// References returns every reference embedded in the value, depth-first.
func (v Value) References() []Reference {
	var refs []Reference
	v.walk(func(r Reference) {
		refs = append(refs, r)
	})
	return refs
}

func (v Value) walk(fn func(Reference)) {
	switch v.kind {
	case kindRef:
		fn(v.ref)
	case kindList:
		for _, item := range v.list {
			item.walk(fn)
		}
	case kindMap:
		for _, item := range v.object {
			item.walk(fn)
		}
	}
}

// RefEncoder lowers a reference into its document form. The synthesizer
// supplies the intrinsic-function encoding; the model stays agnostic of it.
type RefEncoder func(Reference) any

// Encode converts the value into a plain JSON-compatible tree, lowering
// references through enc.
func (v Value) Encode(enc RefEncoder) any {
	switch v.kind {
	case kindString:
		return v.str
	case kindInt:
		// json.Number keeps the numeric representation canonical, so a
		// synthesized template and a re-parsed one compare equal.
		return json.Number(strconv.FormatInt(v.num, 10))
	case kindBool:
		return v.boolean
	case kindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Encode(enc)
		}
		return out
	case kindMap:
		out := make(map[string]any, len(v.object))
		for k, item := range v.object {
			out[k] = item.Encode(enc)
		}
		return out
	case kindRef:
		return enc(v.ref)
	default:
		return nil
	}
}
