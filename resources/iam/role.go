// Package iam provides the validated builder for IAM roles.
package iam

import (
	"fmt"
	"strings"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
)

// Kind is the resource-kind tag for IAM roles.
const Kind = "AWS::IAM::Role"

func init() {
	schema.Register(schema.Descriptor{
		Kind:              Kind,
		Attributes:        []string{"Arn", "RoleId"},
		IdentityAffecting: []string{"RoleName"},
	})
}

// Statement is one policy statement. Resources may be literals or
// references to other resources' ARNs.
type Statement struct {
	Actions   []string
	Resources []core.Value
}

// RoleBuilder accumulates role configuration. Single-use.
type RoleBuilder struct {
	id                string
	roleName          string
	servicePrincipal  string
	managedPolicyArns []string
	statements        []Statement
	built             bool
}

// NewRole starts a role builder assumable by the given service principal,
// e.g. "lambda.amazonaws.com".
func NewRole(id, servicePrincipal string) *RoleBuilder {
	return &RoleBuilder{id: id, servicePrincipal: servicePrincipal}
}

// RoleName overrides the generated physical name.
func (b *RoleBuilder) RoleName(name string) *RoleBuilder {
	b.roleName = name
	return b
}

// ManagedPolicy attaches a managed policy by ARN.
func (b *RoleBuilder) ManagedPolicy(arn string) *RoleBuilder {
	b.managedPolicyArns = append(b.managedPolicyArns, arn)
	return b
}

// Allow adds an inline policy statement granting actions on resources.
func (b *RoleBuilder) Allow(s Statement) *RoleBuilder {
	b.statements = append(b.statements, s)
	return b
}

// Build validates and registers the role with the stack.
func (b *RoleBuilder) Build(sb *core.StackBuilder) (RoleRef, error) {
	if b.built {
		return RoleRef{}, fmt.Errorf("role builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	v.Add(constraint.NonEmpty("servicePrincipal", b.servicePrincipal))
	if b.servicePrincipal != "" && !strings.HasSuffix(b.servicePrincipal, ".amazonaws.com") {
		v.Add(&constraint.ValidationError{
			Kind:   constraint.PatternMismatch,
			Field:  "servicePrincipal",
			Reason: fmt.Sprintf("%q must be a service principal ending in .amazonaws.com", b.servicePrincipal),
		})
	}
	if b.roleName != "" {
		v.Add(constraint.Pattern("roleName", b.roleName, constraint.AlphanumericHyphen, "alphanumerics and hyphens"))
		v.Add(constraint.MaxLength("roleName", b.roleName, 64))
	}
	for i, arn := range b.managedPolicyArns {
		if !strings.HasPrefix(arn, "arn:") {
			v.Add(&constraint.ValidationError{
				Kind:   constraint.PatternMismatch,
				Field:  fmt.Sprintf("managedPolicyArns[%d]", i),
				Reason: fmt.Sprintf("%q is not an ARN", arn),
			})
		}
	}
	for i, s := range b.statements {
		v.Add(constraint.Required(fmt.Sprintf("statements[%d].actions", i), len(s.Actions) > 0))
		v.Add(constraint.Required(fmt.Sprintf("statements[%d].resources", i), len(s.Resources) > 0))
	}
	if err := v.Finalize(b.id); err != nil {
		return RoleRef{}, err
	}

	props := map[string]core.Value{
		"AssumeRolePolicyDocument": core.Map(map[string]core.Value{
			"Version": core.String("2012-10-17"),
			"Statement": core.List(core.Map(map[string]core.Value{
				"Effect": core.String("Allow"),
				"Principal": core.Map(map[string]core.Value{
					"Service": core.String(b.servicePrincipal),
				}),
				"Action": core.String("sts:AssumeRole"),
			})),
		}),
	}
	if b.roleName != "" {
		props["RoleName"] = core.String(b.roleName)
	}
	if len(b.managedPolicyArns) > 0 {
		arns := make([]core.Value, len(b.managedPolicyArns))
		for i, arn := range b.managedPolicyArns {
			arns[i] = core.String(arn)
		}
		props["ManagedPolicyArns"] = core.List(arns...)
	}
	if len(b.statements) > 0 {
		stmts := make([]core.Value, len(b.statements))
		for i, s := range b.statements {
			actions := make([]core.Value, len(s.Actions))
			for j, a := range s.Actions {
				actions[j] = core.String(a)
			}
			stmts[i] = core.Map(map[string]core.Value{
				"Effect":   core.String("Allow"),
				"Action":   core.List(actions...),
				"Resource": core.List(s.Resources...),
			})
		}
		props["Policies"] = core.List(core.Map(map[string]core.Value{
			"PolicyName": core.String(b.id + "-policy"),
			"PolicyDocument": core.Map(map[string]core.Value{
				"Version":   core.String("2012-10-17"),
				"Statement": core.List(stmts...),
			}),
		}))
	}

	if err := sb.Add(core.NewResource(b.id, Kind, props)); err != nil {
		return RoleRef{}, err
	}
	return RoleRef{LogicalID: b.id}, nil
}

// RoleRef is the typed handle to a built role.
type RoleRef struct {
	LogicalID string
}

// Ref resolves to the role name at deployment.
func (r RoleRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// Arn resolves to the role ARN at deployment.
func (r RoleRef) Arn() core.Value { return core.Ref(core.AttOf(r.LogicalID, "Arn")) }
