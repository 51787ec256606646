// Package secretsmanager provides the validated builder for secrets.
package secretsmanager

import (
	"fmt"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
)

// Kind is the resource-kind tag for secrets.
const Kind = "AWS::SecretsManager::Secret"

func init() {
	schema.Register(schema.Descriptor{
		Kind:              Kind,
		Attributes:        []string{"Id"},
		IdentityAffecting: []string{"Name"},
	})
}

// SecretBuilder accumulates secret configuration. Single-use.
type SecretBuilder struct {
	id             string
	name           string
	description    string
	generateLength int64
	built          bool
}

// NewSecret starts a secret builder for the given logical id.
func NewSecret(id string) *SecretBuilder {
	return &SecretBuilder{id: id}
}

// Name overrides the generated physical name.
func (b *SecretBuilder) Name(name string) *SecretBuilder {
	b.name = name
	return b
}

// Description documents the secret.
func (b *SecretBuilder) Description(d string) *SecretBuilder {
	b.description = d
	return b
}

// GeneratePassword makes the service generate a random value of the given
// length instead of storing a provided one.
func (b *SecretBuilder) GeneratePassword(length int64) *SecretBuilder {
	b.generateLength = length
	return b
}

// Build validates and registers the secret with the stack.
func (b *SecretBuilder) Build(sb *core.StackBuilder) (SecretRef, error) {
	if b.built {
		return SecretRef{}, fmt.Errorf("secret builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	if b.name != "" {
		v.Add(constraint.MaxLength("name", b.name, 512))
	}
	if b.generateLength != 0 {
		v.Add(constraint.Range("generateLength", b.generateLength, 8, 4096))
	}
	if err := v.Finalize(b.id); err != nil {
		return SecretRef{}, err
	}

	props := map[string]core.Value{}
	if b.name != "" {
		props["Name"] = core.String(b.name)
	}
	if b.description != "" {
		props["Description"] = core.String(b.description)
	}
	if b.generateLength != 0 {
		props["GenerateSecretString"] = core.Map(map[string]core.Value{
			"PasswordLength": core.Int(b.generateLength),
		})
	}

	if err := sb.Add(core.NewResource(b.id, Kind, props)); err != nil {
		return SecretRef{}, err
	}
	return SecretRef{LogicalID: b.id}, nil
}

// SecretRef is the typed handle to a built secret.
type SecretRef struct {
	LogicalID string
}

// Ref resolves to the secret ARN at deployment.
func (r SecretRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// Id resolves to the secret's id attribute at deployment.
func (r SecretRef) Id() core.Value { return core.Ref(core.AttOf(r.LogicalID, "Id")) }
