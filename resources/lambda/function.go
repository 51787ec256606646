// Package lambda provides the validated builder for Lambda functions.
//
// A function's code comes from exactly one source: an inline snippet or a
// staged archive. Setting both is a mutual-exclusion violation naming both
// fields, reported at finalize.
package lambda

import (
	"fmt"
	"path"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
	"github.com/mason-iac/mason/resources/iam"
)

// Kind is the resource-kind tag for Lambda functions.
const Kind = "AWS::Lambda::Function"

func init() {
	schema.Register(schema.Descriptor{
		Kind:              Kind,
		Attributes:        []string{"Arn"},
		IdentityAffecting: []string{"FunctionName"},
	})
}

// FunctionBuilder accumulates function configuration. Single-use.
type FunctionBuilder struct {
	id           string
	functionName string
	runtime      string
	handler      string
	role         *iam.RoleRef

	inlineCode  string
	assetPath   string
	assetBucket string

	memorySize int64
	timeout    int64
	env        map[string]core.Value

	built bool
}

// NewFunction starts a function builder for the given logical id.
func NewFunction(id, runtime, handler string) *FunctionBuilder {
	return &FunctionBuilder{id: id, runtime: runtime, handler: handler}
}

// FunctionName overrides the generated physical name.
func (b *FunctionBuilder) FunctionName(name string) *FunctionBuilder {
	b.functionName = name
	return b
}

// Role sets the function's execution role.
func (b *FunctionBuilder) Role(role iam.RoleRef) *FunctionBuilder {
	b.role = &role
	return b
}

// InlineCode provides the function body inline. Mutually exclusive with
// CodeFromAsset.
func (b *FunctionBuilder) InlineCode(code string) *FunctionBuilder {
	b.inlineCode = code
	return b
}

// CodeFromAsset stages a local archive into the given bucket at deploy time
// and points the function at it. Mutually exclusive with InlineCode.
func (b *FunctionBuilder) CodeFromAsset(stagingBucket, localPath string) *FunctionBuilder {
	b.assetBucket = stagingBucket
	b.assetPath = localPath
	return b
}

// MemorySize sets memory in MB.
func (b *FunctionBuilder) MemorySize(mb int64) *FunctionBuilder {
	b.memorySize = mb
	return b
}

// Timeout sets the execution timeout in seconds.
func (b *FunctionBuilder) Timeout(seconds int64) *FunctionBuilder {
	b.timeout = seconds
	return b
}

// Env adds a literal environment variable.
func (b *FunctionBuilder) Env(key, value string) *FunctionBuilder {
	return b.EnvValue(key, core.String(value))
}

// EnvValue adds an environment variable whose value may be a reference,
// e.g. another resource's name or ARN.
func (b *FunctionBuilder) EnvValue(key string, value core.Value) *FunctionBuilder {
	if b.env == nil {
		b.env = make(map[string]core.Value)
	}
	b.env[key] = value
	return b
}

// Build validates and registers the function with the stack.
func (b *FunctionBuilder) Build(sb *core.StackBuilder) (FunctionRef, error) {
	if b.built {
		return FunctionRef{}, fmt.Errorf("function builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	v.Add(constraint.NonEmpty("runtime", b.runtime))
	v.Add(constraint.NonEmpty("handler", b.handler))
	v.Add(constraint.Required("role", b.role != nil))
	v.Add(constraint.MutuallyExclusive("inlineCode", b.inlineCode != "", "codeAsset", b.assetPath != ""))
	v.Add(constraint.Required("code (inlineCode or codeAsset)", b.inlineCode != "" || b.assetPath != ""))
	if b.functionName != "" {
		v.Add(constraint.Pattern("functionName", b.functionName, constraint.AlphanumericHyphen, "alphanumerics and hyphens"))
		v.Add(constraint.MaxLength("functionName", b.functionName, 64))
	}
	if b.memorySize != 0 {
		v.Add(constraint.Range("memorySize", b.memorySize, 128, 10240))
	}
	if b.timeout != 0 {
		v.Add(constraint.Range("timeout", b.timeout, 1, 900))
	}
	if err := v.Finalize(b.id); err != nil {
		return FunctionRef{}, err
	}

	props := map[string]core.Value{
		"Runtime": core.String(b.runtime),
		"Handler": core.String(b.handler),
		"Role":    b.role.Arn(),
	}
	if b.functionName != "" {
		props["FunctionName"] = core.String(b.functionName)
	}
	if b.inlineCode != "" {
		props["Code"] = core.Map(map[string]core.Value{
			"ZipFile": core.String(b.inlineCode),
		})
	} else {
		key := b.id + "/" + path.Base(b.assetPath)
		props["Code"] = core.Map(map[string]core.Value{
			"S3Bucket": core.String(b.assetBucket),
			"S3Key":    core.String(key),
		})
		sb.AddAsset(core.Asset{Bucket: b.assetBucket, Key: key, Path: b.assetPath})
	}
	if b.memorySize != 0 {
		props["MemorySize"] = core.Int(b.memorySize)
	}
	if b.timeout != 0 {
		props["Timeout"] = core.Int(b.timeout)
	}
	if len(b.env) > 0 {
		props["Environment"] = core.Map(map[string]core.Value{
			"Variables": core.Map(b.env),
		})
	}

	if err := sb.Add(core.NewResource(b.id, Kind, props)); err != nil {
		return FunctionRef{}, err
	}
	return FunctionRef{LogicalID: b.id}, nil
}

// FunctionRef is the typed handle to a built function.
type FunctionRef struct {
	LogicalID string
}

// Ref resolves to the function name at deployment.
func (r FunctionRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// Arn resolves to the function ARN at deployment.
func (r FunctionRef) Arn() core.Value { return core.Ref(core.AttOf(r.LogicalID, "Arn")) }
