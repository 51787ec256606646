// Package sns provides the validated builders for SNS topics and queue
// subscriptions.
package sns

import (
	"fmt"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
	"github.com/mason-iac/mason/resources/sqs"
)

// Kind tags for SNS resources.
const (
	Kind             = "AWS::SNS::Topic"
	SubscriptionKind = "AWS::SNS::Subscription"
)

func init() {
	schema.Register(schema.Descriptor{
		Kind:              Kind,
		Attributes:        []string{"TopicArn", "TopicName"},
		IdentityAffecting: []string{"TopicName", "FifoTopic"},
	})
	schema.Register(schema.Descriptor{
		Kind:              SubscriptionKind,
		Attributes:        []string{"Arn"},
		IdentityAffecting: []string{"TopicArn", "Protocol", "Endpoint"},
	})
}

// TopicBuilder accumulates topic configuration. Single-use.
type TopicBuilder struct {
	id        string
	topicName string
	fifo      bool
	built     bool
}

// NewTopic starts a topic builder for the given logical id.
func NewTopic(id string) *TopicBuilder {
	return &TopicBuilder{id: id}
}

// TopicName overrides the generated physical name.
func (b *TopicBuilder) TopicName(name string) *TopicBuilder {
	b.topicName = name
	return b
}

// Fifo makes the topic FIFO-ordered.
func (b *TopicBuilder) Fifo() *TopicBuilder {
	b.fifo = true
	return b
}

// Build validates and registers the topic with the stack.
func (b *TopicBuilder) Build(sb *core.StackBuilder) (TopicRef, error) {
	if b.built {
		return TopicRef{}, fmt.Errorf("topic builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	if b.topicName != "" {
		v.Add(constraint.Pattern("topicName", b.topicName, constraint.AlphanumericHyphen, "alphanumerics and hyphens"))
		v.Add(constraint.MaxLength("topicName", b.topicName, 256))
	}
	if err := v.Finalize(b.id); err != nil {
		return TopicRef{}, err
	}

	props := map[string]core.Value{}
	if b.topicName != "" {
		props["TopicName"] = core.String(b.topicName)
	}
	if b.fifo {
		props["FifoTopic"] = core.Bool(true)
	}

	if err := sb.Add(core.NewResource(b.id, Kind, props)); err != nil {
		return TopicRef{}, err
	}
	return TopicRef{LogicalID: b.id}, nil
}

// TopicRef is the typed handle to a built topic.
type TopicRef struct {
	LogicalID string
}

// Ref resolves to the topic ARN at deployment.
func (r TopicRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// TopicName resolves to the physical topic name at deployment.
func (r TopicRef) TopicName() core.Value { return core.Ref(core.AttOf(r.LogicalID, "TopicName")) }

// SubscribeQueue subscribes an SQS queue to the topic, adding dependency
// edges to both the topic and the queue.
func SubscribeQueue(sb *core.StackBuilder, id string, topic TopicRef, queue sqs.QueueRef) error {
	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", id))
	if err := v.Finalize(id); err != nil {
		return err
	}

	props := map[string]core.Value{
		"TopicArn": topic.Ref(),
		"Protocol": core.String("sqs"),
		"Endpoint": queue.Arn(),
	}
	return sb.Add(core.NewResource(id, SubscriptionKind, props))
}
