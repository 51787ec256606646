// Package sqs provides the validated builder for SQS queues.
//
// Standard and FIFO queues admit different field sets: deduplication and
// FIFO throughput settings are only legal on FIFO queues, and the check runs
// across the whole accumulated configuration at finalize.
package sqs

import (
	"fmt"
	"strings"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
)

// Kind is the resource-kind tag for SQS queues.
const Kind = "AWS::SQS::Queue"

const fifoSuffix = ".fifo"

func init() {
	schema.Register(schema.Descriptor{
		Kind:              Kind,
		Attributes:        []string{"Arn", "QueueName", "QueueUrl"},
		IdentityAffecting: []string{"QueueName", "FifoQueue", "ContentBasedDeduplication"},
	})
}

// DeduplicationScope controls where FIFO deduplication applies.
type DeduplicationScope string

const (
	DeduplicationPerQueue        DeduplicationScope = "queue"
	DeduplicationPerMessageGroup DeduplicationScope = "messageGroup"
)

// ThroughputLimit controls how FIFO throughput quota is granted.
type ThroughputLimit string

const (
	ThroughputPerQueue          ThroughputLimit = "perQueue"
	ThroughputPerMessageGroupID ThroughputLimit = "perMessageGroupId"
)

type queueMode string

const (
	modeUnset    queueMode = ""
	modeStandard queueMode = "standard"
	modeFifo     queueMode = "fifo"
)

// QueueBuilder accumulates queue configuration; Build validates the whole
// set and registers the queue with the stack. Single-use.
type QueueBuilder struct {
	id        string
	queueName string
	mode      queueMode

	delaySeconds           int64
	maximumMessageSize     int64
	messageRetentionPeriod int64
	receiveWaitTimeSeconds int64
	visibilityTimeout      int64
	visibilityTimeoutSet   bool

	contentBasedDedup    bool
	contentBasedDedupSet bool
	dedupScope           DeduplicationScope
	throughputLimit      ThroughputLimit

	dlq         *QueueRef
	maxReceives int64

	built bool
}

// NewQueue starts a queue builder for the given logical id.
func NewQueue(id string) *QueueBuilder {
	return &QueueBuilder{id: id}
}

// QueueName overrides the generated physical name. For FIFO queues the
// required ".fifo" suffix is appended if absent.
func (b *QueueBuilder) QueueName(name string) *QueueBuilder {
	b.queueName = name
	return b
}

// Standard selects a standard queue.
func (b *QueueBuilder) Standard() *QueueBuilder {
	b.mode = modeStandard
	return b
}

// Fifo selects a FIFO queue.
func (b *QueueBuilder) Fifo() *QueueBuilder {
	b.mode = modeFifo
	return b
}

// DelaySeconds delays delivery of every message.
func (b *QueueBuilder) DelaySeconds(seconds int64) *QueueBuilder {
	b.delaySeconds = seconds
	return b
}

// MaximumMessageSize bounds message size in bytes.
func (b *QueueBuilder) MaximumMessageSize(bytes int64) *QueueBuilder {
	b.maximumMessageSize = bytes
	return b
}

// MessageRetentionPeriod sets how long messages are kept, in seconds.
func (b *QueueBuilder) MessageRetentionPeriod(seconds int64) *QueueBuilder {
	b.messageRetentionPeriod = seconds
	return b
}

// ReceiveMessageWaitTime enables long polling, in seconds.
func (b *QueueBuilder) ReceiveMessageWaitTime(seconds int64) *QueueBuilder {
	b.receiveWaitTimeSeconds = seconds
	return b
}

// VisibilityTimeout hides received messages for the given seconds.
func (b *QueueBuilder) VisibilityTimeout(seconds int64) *QueueBuilder {
	b.visibilityTimeout = seconds
	b.visibilityTimeoutSet = true
	return b
}

// ContentBasedDeduplication enables content hashing deduplication (FIFO only).
func (b *QueueBuilder) ContentBasedDeduplication(enabled bool) *QueueBuilder {
	b.contentBasedDedup = enabled
	b.contentBasedDedupSet = true
	return b
}

// DeduplicationScope sets the FIFO deduplication scope (FIFO only).
func (b *QueueBuilder) DeduplicationScope(scope DeduplicationScope) *QueueBuilder {
	b.dedupScope = scope
	return b
}

// FifoThroughputLimit sets the FIFO throughput grant (FIFO only).
func (b *QueueBuilder) FifoThroughputLimit(limit ThroughputLimit) *QueueBuilder {
	b.throughputLimit = limit
	return b
}

// DeadLetterQueue routes messages exceeding maxReceives to the given queue.
// This adds a dependency edge from this queue to the dead-letter queue.
func (b *QueueBuilder) DeadLetterQueue(dlq QueueRef, maxReceives int64) *QueueBuilder {
	b.dlq = &dlq
	b.maxReceives = maxReceives
	return b
}

// Build re-runs every applicable constraint across the accumulated property
// set, and on success registers the queue with the stack.
func (b *QueueBuilder) Build(sb *core.StackBuilder) (QueueRef, error) {
	if b.built {
		return QueueRef{}, fmt.Errorf("queue builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	v.Add(constraint.Required("queue mode (standard or fifo)", b.mode != modeUnset))

	if b.queueName != "" {
		base := strings.TrimSuffix(b.queueName, fifoSuffix)
		v.Add(constraint.Pattern("queueName", base, constraint.AlphanumericHyphen, "alphanumerics and hyphens"))
		// The limit applies to the physical name, suffix included.
		v.Add(constraint.MaxLength("queueName", b.physicalName(), 80))
	}

	if b.delaySeconds != 0 {
		v.Add(constraint.Range("delaySeconds", b.delaySeconds, 0, 900))
	}
	if b.maximumMessageSize != 0 {
		v.Add(constraint.Range("maximumMessageSize", b.maximumMessageSize, 1024, 262144))
	}
	if b.messageRetentionPeriod != 0 {
		v.Add(constraint.Range("messageRetentionPeriod", b.messageRetentionPeriod, 60, 1209600))
	}
	if b.receiveWaitTimeSeconds != 0 {
		v.Add(constraint.Range("receiveMessageWaitTime", b.receiveWaitTimeSeconds, 0, 20))
	}
	if b.visibilityTimeoutSet {
		v.Add(constraint.Range("visibilityTimeout", b.visibilityTimeout, 0, 43200))
	}

	if b.mode == modeStandard {
		v.Add(constraint.RequiresMode("contentBasedDeduplication", b.contentBasedDedupSet, "a standard queue", "a fifo queue"))
		v.Add(constraint.RequiresMode("deduplicationScope", b.dedupScope != "", "a standard queue", "a fifo queue"))
		v.Add(constraint.RequiresMode("fifoThroughputLimit", b.throughputLimit != "", "a standard queue", "a fifo queue"))
	}
	if b.dlq != nil {
		v.Add(constraint.Range("maxReceiveCount", b.maxReceives, 1, 1000))
	}

	if err := v.Finalize(b.id); err != nil {
		return QueueRef{}, err
	}

	r := core.NewResource(b.id, Kind, b.properties())
	if err := sb.Add(r); err != nil {
		return QueueRef{}, err
	}
	return QueueRef{LogicalID: b.id}, nil
}

// physicalName returns the queue name as it will be synthesized, with the
// fifo suffix appended when the mode requires one.
func (b *QueueBuilder) physicalName() string {
	if b.queueName == "" {
		return ""
	}
	if b.mode == modeFifo && !strings.HasSuffix(b.queueName, fifoSuffix) {
		return b.queueName + fifoSuffix
	}
	return b.queueName
}

func (b *QueueBuilder) properties() map[string]core.Value {
	props := map[string]core.Value{}
	if name := b.physicalName(); name != "" {
		props["QueueName"] = core.String(name)
	}
	if b.mode == modeFifo {
		props["FifoQueue"] = core.Bool(true)
	}
	if b.delaySeconds != 0 {
		props["DelaySeconds"] = core.Int(b.delaySeconds)
	}
	if b.maximumMessageSize != 0 {
		props["MaximumMessageSize"] = core.Int(b.maximumMessageSize)
	}
	if b.messageRetentionPeriod != 0 {
		props["MessageRetentionPeriod"] = core.Int(b.messageRetentionPeriod)
	}
	if b.receiveWaitTimeSeconds != 0 {
		props["ReceiveMessageWaitTimeSeconds"] = core.Int(b.receiveWaitTimeSeconds)
	}
	if b.visibilityTimeoutSet {
		props["VisibilityTimeout"] = core.Int(b.visibilityTimeout)
	}
	if b.contentBasedDedupSet {
		props["ContentBasedDeduplication"] = core.Bool(b.contentBasedDedup)
	}
	if b.dedupScope != "" {
		props["DeduplicationScope"] = core.String(string(b.dedupScope))
	}
	if b.throughputLimit != "" {
		props["FifoThroughputLimit"] = core.String(string(b.throughputLimit))
	}
	if b.dlq != nil {
		props["RedrivePolicy"] = core.Map(map[string]core.Value{
			"deadLetterTargetArn": b.dlq.Arn(),
			"maxReceiveCount":     core.Int(b.maxReceives),
		})
	}
	return props
}

// QueueRef is the typed handle to a built queue.
type QueueRef struct {
	LogicalID string
}

// Ref resolves to the queue URL at deployment.
func (r QueueRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// Arn resolves to the queue ARN at deployment.
func (r QueueRef) Arn() core.Value { return core.Ref(core.AttOf(r.LogicalID, "Arn")) }

// QueueName resolves to the physical queue name at deployment.
func (r QueueRef) QueueName() core.Value { return core.Ref(core.AttOf(r.LogicalID, "QueueName")) }
