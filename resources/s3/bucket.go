// Package s3 provides the validated builder for S3 buckets.
package s3

import (
	"fmt"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
)

// Kind is the resource-kind tag for S3 buckets.
const Kind = "AWS::S3::Bucket"

func init() {
	schema.Register(schema.Descriptor{
		Kind:              Kind,
		Attributes:        []string{"Arn", "DomainName", "RegionalDomainName"},
		IdentityAffecting: []string{"BucketName"},
	})
}

// StorageClass is a lifecycle transition target.
type StorageClass string

const (
	StorageStandardIA  StorageClass = "STANDARD_IA"
	StorageIntelligent StorageClass = "INTELLIGENT_TIERING"
	StorageGlacier     StorageClass = "GLACIER"
	StorageDeepArchive StorageClass = "DEEP_ARCHIVE"
)

type transition struct {
	class StorageClass
	days  int64
}

// BucketBuilder accumulates bucket configuration. Single-use.
type BucketBuilder struct {
	id          string
	bucketName  string
	versioned   bool
	transitions []transition
	built       bool
}

// NewBucket starts a bucket builder for the given logical id.
func NewBucket(id string) *BucketBuilder {
	return &BucketBuilder{id: id}
}

// BucketName overrides the generated physical name.
func (b *BucketBuilder) BucketName(name string) *BucketBuilder {
	b.bucketName = name
	return b
}

// Versioned enables object versioning.
func (b *BucketBuilder) Versioned() *BucketBuilder {
	b.versioned = true
	return b
}

// TransitionAfter adds a lifecycle rule moving objects to the given storage
// class after the given number of days.
func (b *BucketBuilder) TransitionAfter(class StorageClass, days int64) *BucketBuilder {
	b.transitions = append(b.transitions, transition{class: class, days: days})
	return b
}

// Build validates and registers the bucket with the stack.
func (b *BucketBuilder) Build(sb *core.StackBuilder) (BucketRef, error) {
	if b.built {
		return BucketRef{}, fmt.Errorf("bucket builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	if b.bucketName != "" {
		v.Add(constraint.Pattern("bucketName", b.bucketName, constraint.BucketName,
			"lowercase alphanumerics, dots and hyphens, starting and ending alphanumeric"))
		v.Add(constraint.Range("bucketName length", int64(len(b.bucketName)), 3, 63))
	}
	for i, t := range b.transitions {
		field := fmt.Sprintf("transitions[%d].days", i)
		v.Add(constraint.Range(field, t.days, 1, 3650))
		v.Add(constraint.OneOf(fmt.Sprintf("transitions[%d].storageClass", i), t.class,
			StorageStandardIA, StorageIntelligent, StorageGlacier, StorageDeepArchive))
	}
	if err := v.Finalize(b.id); err != nil {
		return BucketRef{}, err
	}

	props := map[string]core.Value{}
	if b.bucketName != "" {
		props["BucketName"] = core.String(b.bucketName)
	}
	if b.versioned {
		props["VersioningConfiguration"] = core.Map(map[string]core.Value{
			"Status": core.String("Enabled"),
		})
	}
	if len(b.transitions) > 0 {
		rules := make([]core.Value, len(b.transitions))
		for i, t := range b.transitions {
			rules[i] = core.Map(map[string]core.Value{
				"Status": core.String("Enabled"),
				"Transitions": core.List(core.Map(map[string]core.Value{
					"StorageClass":     core.String(string(t.class)),
					"TransitionInDays": core.Int(t.days),
				})),
			})
		}
		props["LifecycleConfiguration"] = core.Map(map[string]core.Value{
			"Rules": core.List(rules...),
		})
	}

	if err := sb.Add(core.NewResource(b.id, Kind, props)); err != nil {
		return BucketRef{}, err
	}
	return BucketRef{LogicalID: b.id}, nil
}

// BucketRef is the typed handle to a built bucket.
type BucketRef struct {
	LogicalID string
}

// Ref resolves to the bucket name at deployment.
func (r BucketRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// Arn resolves to the bucket ARN at deployment.
func (r BucketRef) Arn() core.Value { return core.Ref(core.AttOf(r.LogicalID, "Arn")) }

// DomainName resolves to the bucket's domain name at deployment.
func (r BucketRef) DomainName() core.Value { return core.Ref(core.AttOf(r.LogicalID, "DomainName")) }
