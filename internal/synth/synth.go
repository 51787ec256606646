// Package synth turns a validated stack into its canonical declarative
// template. Synthesis is pure and infallible: everything that can go wrong
// was rejected during assembly. The output is deterministic so that two
// synths of the same stack are byte-identical and diffable.
package synth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mason-iac/mason/internal/core"
)

// Intrinsic-function keys reserved in the template document. Reference
// values lower to one of these instead of a literal.
const (
	refKey    = "Ref"
	getAttKey = "Fn::GetAtt"
)

// TemplateResource is one logical-id entry in a template.
type TemplateResource struct {
	Type       string         `json:"Type"`
	Properties map[string]any `json:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty"`
}

// Template is the canonical synthesized document for a stack. It is an
// immutable value: produced once, then only compared or transmitted.
type Template struct {
	Resources map[string]TemplateResource `json:"Resources"`
}

// Synth transforms a stack into its template.
func Synth(stack *core.Stack) *Template {
	t := &Template{Resources: make(map[string]TemplateResource)}
	for _, id := range stack.ResourceIDs() {
		res, _ := stack.Resource(id)
		t.Resources[id] = TemplateResource{
			Type:       res.Kind(),
			Properties: encodeProperties(res),
			DependsOn:  res.ExplicitDependsOn(),
		}
	}
	return t
}

func encodeProperties(res *core.Resource) map[string]any {
	names := res.PropertyNames()
	if len(names) == 0 {
		return nil
	}
	props := make(map[string]any, len(names))
	for _, name := range names {
		v, _ := res.Property(name)
		props[name] = v.Encode(encodeReference)
	}
	return props
}

// encodeReference lowers a reference to its intrinsic-function node: a
// literal-identifier reference becomes {"Ref": id}, an attribute reference
// becomes {"Fn::GetAtt": [id, attribute]}.
func encodeReference(r core.Reference) any {
	if r.Attribute == "" {
		return map[string]any{refKey: r.LogicalID}
	}
	return map[string]any{getAttKey: []any{r.LogicalID, r.Attribute}}
}

// CanonicalJSON renders the template with lexicographic key order and fixed
// numeric formatting. Synthesizing the same stack twice yields identical
// bytes, which is what makes template equality meaningful.
func (t *Template) CanonicalJSON() []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	// Templates are built from validated stacks or parsed JSON; neither can
	// contain unmarshalable values.
	if err := enc.Encode(t); err != nil {
		panic(fmt.Sprintf("synth: template not marshalable: %v", err))
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

// Parse reads a previously synthesized or deployed template document.
// Numbers are kept as json.Number so parsed and synthesized templates
// compare equal.
func Parse(data []byte) (*Template, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var t Template
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if t.Resources == nil {
		t.Resources = make(map[string]TemplateResource)
	}
	return &t, nil
}

// LogicalIDs returns the template's logical ids, sorted.
func (t *Template) LogicalIDs() []string {
	ids := make([]string, 0, len(t.Resources))
	for id := range t.Resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
