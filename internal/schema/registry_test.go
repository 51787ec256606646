package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func init() {
	Register(Descriptor{
		Kind:              "Test::Schema::Widget",
		Attributes:        []string{"Arn", "Endpoint"},
		IdentityAffecting: []string{"WidgetName"},
	})
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(Descriptor{Kind: "Test::Schema::Widget"})
	})
}

func TestHasAttribute(t *testing.T) {
	assert.True(t, HasAttribute("Test::Schema::Widget", "Arn"))
	assert.False(t, HasAttribute("Test::Schema::Widget", "Nope"))

	// The empty attribute is the literal identifier, valid for any kind.
	assert.True(t, HasAttribute("Test::Schema::Widget", ""))

	// Unknown kinds cannot be checked locally and are permissive.
	assert.True(t, HasAttribute("Test::Schema::Unregistered", "Anything"))
}

func TestIdentityAffecting(t *testing.T) {
	assert.True(t, IdentityAffecting("Test::Schema::Widget", "WidgetName"))
	assert.False(t, IdentityAffecting("Test::Schema::Widget", "Color"))
	assert.False(t, IdentityAffecting("Test::Schema::Unregistered", "Anything"))
}

func TestLookup(t *testing.T) {
	d, ok := Lookup("Test::Schema::Widget")
	assert.True(t, ok)
	assert.Equal(t, []string{"Arn", "Endpoint"}, d.Attributes)

	_, ok = Lookup("Test::Schema::Unregistered")
	assert.False(t, ok)

	assert.Contains(t, Kinds(), "Test::Schema::Widget")
}
