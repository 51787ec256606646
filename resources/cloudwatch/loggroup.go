// Package cloudwatch provides the validated builder for CloudWatch log
// groups.
package cloudwatch

import (
	"fmt"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
)

// Kind is the resource-kind tag for log groups.
const Kind = "AWS::Logs::LogGroup"

func init() {
	schema.Register(schema.Descriptor{
		Kind:              Kind,
		Attributes:        []string{"Arn"},
		IdentityAffecting: []string{"LogGroupName"},
	})
}

// Retention periods accepted by the service; arbitrary day counts are not.
var validRetentionDays = []int64{1, 3, 5, 7, 14, 30, 60, 90, 120, 150, 180, 365, 400, 545, 731, 1096, 1827, 2192, 2557, 2922, 3288, 3653}

// LogGroupBuilder accumulates log group configuration. Single-use.
type LogGroupBuilder struct {
	id            string
	logGroupName  string
	retentionDays int64
	built         bool
}

// NewLogGroup starts a log group builder for the given logical id.
func NewLogGroup(id string) *LogGroupBuilder {
	return &LogGroupBuilder{id: id}
}

// LogGroupName overrides the generated physical name.
func (b *LogGroupBuilder) LogGroupName(name string) *LogGroupBuilder {
	b.logGroupName = name
	return b
}

// RetentionDays sets how long events are kept; only the service's fixed set
// of day counts is legal.
func (b *LogGroupBuilder) RetentionDays(days int64) *LogGroupBuilder {
	b.retentionDays = days
	return b
}

// Build validates and registers the log group with the stack.
func (b *LogGroupBuilder) Build(sb *core.StackBuilder) (LogGroupRef, error) {
	if b.built {
		return LogGroupRef{}, fmt.Errorf("log group builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	if b.logGroupName != "" {
		v.Add(constraint.MaxLength("logGroupName", b.logGroupName, 512))
	}
	if b.retentionDays != 0 {
		v.Add(constraint.OneOf("retentionDays", b.retentionDays, validRetentionDays...))
	}
	if err := v.Finalize(b.id); err != nil {
		return LogGroupRef{}, err
	}

	props := map[string]core.Value{}
	if b.logGroupName != "" {
		props["LogGroupName"] = core.String(b.logGroupName)
	}
	if b.retentionDays != 0 {
		props["RetentionInDays"] = core.Int(b.retentionDays)
	}

	if err := sb.Add(core.NewResource(b.id, Kind, props)); err != nil {
		return LogGroupRef{}, err
	}
	return LogGroupRef{LogicalID: b.id}, nil
}

// LogGroupRef is the typed handle to a built log group.
type LogGroupRef struct {
	LogicalID string
}

// Ref resolves to the log group name at deployment.
func (r LogGroupRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// Arn resolves to the log group ARN at deployment.
func (r LogGroupRef) Arn() core.Value { return core.Ref(core.AttOf(r.LogicalID, "Arn")) }
