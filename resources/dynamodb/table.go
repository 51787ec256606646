// Package dynamodb provides the validated builder for DynamoDB tables.
//
// The builder supports both billing modes and enforces the mode's field set
// at finalize: provisioned billing requires read and write capacity, while
// pay-per-request forbids them and instead admits max-throughput limits.
package dynamodb

import (
	"fmt"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/schema"
)

// Kind is the resource-kind tag for DynamoDB tables.
const Kind = "AWS::DynamoDB::Table"

func init() {
	schema.Register(schema.Descriptor{
		Kind:       Kind,
		Attributes: []string{"Arn", "StreamArn"},
		// Key schema and names cannot change in place.
		IdentityAffecting: []string{"TableName", "KeySchema", "AttributeDefinitions"},
	})
}

// AttributeType is a DynamoDB scalar attribute type.
type AttributeType string

const (
	AttributeString AttributeType = "S"
	AttributeNumber AttributeType = "N"
	AttributeBinary AttributeType = "B"
)

// Key names an attribute used in the table's key schema.
type Key struct {
	Name string
	Type AttributeType
}

const (
	billingPayPerRequest = "PAY_PER_REQUEST"
	billingProvisioned   = "PROVISIONED"
)

// TableBuilder accumulates table configuration; Build validates the whole
// set and registers the table with the stack. Single-use.
type TableBuilder struct {
	id           string
	tableName    string
	partitionKey Key
	sortKey      *Key

	billingMode       string
	readCapacity      int64
	writeCapacity     int64
	maxReadCapacity   int64
	maxWriteCapacity  int64
	streamsEnabled    bool
	pointInTimeBackup bool

	built bool
}

// NewTable starts a table builder with the mandatory partition key.
func NewTable(id string, partitionKey Key) *TableBuilder {
	return &TableBuilder{id: id, partitionKey: partitionKey}
}

// TableName overrides the generated physical name.
func (b *TableBuilder) TableName(name string) *TableBuilder {
	b.tableName = name
	return b
}

// SortKey adds a range key to the key schema.
func (b *TableBuilder) SortKey(k Key) *TableBuilder {
	b.sortKey = &k
	return b
}

// PayPerRequestBilling selects on-demand billing.
func (b *TableBuilder) PayPerRequestBilling() *TableBuilder {
	b.billingMode = billingPayPerRequest
	return b
}

// ProvisionedBilling selects provisioned billing with the given capacity
// units.
func (b *TableBuilder) ProvisionedBilling(readCapacity, writeCapacity int64) *TableBuilder {
	b.billingMode = billingProvisioned
	b.readCapacity = readCapacity
	b.writeCapacity = writeCapacity
	return b
}

// MaxReadCapacity caps on-demand read throughput.
func (b *TableBuilder) MaxReadCapacity(units int64) *TableBuilder {
	b.maxReadCapacity = units
	return b
}

// MaxWriteCapacity caps on-demand write throughput.
func (b *TableBuilder) MaxWriteCapacity(units int64) *TableBuilder {
	b.maxWriteCapacity = units
	return b
}

// Streams enables the table's change stream.
func (b *TableBuilder) Streams() *TableBuilder {
	b.streamsEnabled = true
	return b
}

// PointInTimeRecovery enables continuous backups.
func (b *TableBuilder) PointInTimeRecovery() *TableBuilder {
	b.pointInTimeBackup = true
	return b
}

// Build re-runs every applicable constraint across the accumulated property
// set, and on success registers the table with the stack. All violations are
// reported, not just the first.
func (b *TableBuilder) Build(sb *core.StackBuilder) (TableRef, error) {
	if b.built {
		return TableRef{}, fmt.Errorf("table builder %q already finalized", b.id)
	}
	b.built = true

	var v constraint.Violations
	v.Add(constraint.NonEmpty("id", b.id))
	v.Merge(keyViolations("partitionKey", b.partitionKey))
	if b.sortKey != nil {
		v.Merge(keyViolations("sortKey", *b.sortKey))
	}
	if b.tableName != "" {
		v.Add(constraint.Pattern("tableName", b.tableName, constraint.AlphanumericUnderscore, "alphanumerics and underscores"))
		v.Add(constraint.MaxLength("tableName", b.tableName, 255))
	}

	v.Add(constraint.Required("billingMode", b.billingMode != ""))
	switch b.billingMode {
	case billingProvisioned:
		v.Add(constraint.Positive("readCapacity", b.readCapacity))
		v.Add(constraint.Positive("writeCapacity", b.writeCapacity))
		v.Add(constraint.RequiresMode("maxReadCapacity", b.maxReadCapacity != 0, b.billingMode, billingPayPerRequest))
		v.Add(constraint.RequiresMode("maxWriteCapacity", b.maxWriteCapacity != 0, b.billingMode, billingPayPerRequest))
	case billingPayPerRequest:
		v.Add(constraint.RequiresMode("readCapacity", b.readCapacity != 0, b.billingMode, billingProvisioned))
		v.Add(constraint.RequiresMode("writeCapacity", b.writeCapacity != 0, b.billingMode, billingProvisioned))
		if b.maxReadCapacity != 0 {
			v.Add(constraint.Positive("maxReadCapacity", b.maxReadCapacity))
		}
		if b.maxWriteCapacity != 0 {
			v.Add(constraint.Positive("maxWriteCapacity", b.maxWriteCapacity))
		}
	}

	if err := v.Finalize(b.id); err != nil {
		return TableRef{}, err
	}

	props := b.properties()
	r := core.NewResource(b.id, Kind, props)
	if err := sb.Add(r); err != nil {
		return TableRef{}, err
	}
	return TableRef{LogicalID: b.id}, nil
}

func (b *TableBuilder) properties() map[string]core.Value {
	attrs := []core.Value{keyAttribute(b.partitionKey)}
	keySchema := []core.Value{keyElement(b.partitionKey, "HASH")}
	if b.sortKey != nil {
		attrs = append(attrs, keyAttribute(*b.sortKey))
		keySchema = append(keySchema, keyElement(*b.sortKey, "RANGE"))
	}

	props := map[string]core.Value{
		"AttributeDefinitions": core.List(attrs...),
		"KeySchema":            core.List(keySchema...),
		"BillingMode":          core.String(b.billingMode),
	}
	if b.tableName != "" {
		props["TableName"] = core.String(b.tableName)
	}
	if b.billingMode == billingProvisioned {
		props["ProvisionedThroughput"] = core.Map(map[string]core.Value{
			"ReadCapacityUnits":  core.Int(b.readCapacity),
			"WriteCapacityUnits": core.Int(b.writeCapacity),
		})
	}
	if b.billingMode == billingPayPerRequest && (b.maxReadCapacity != 0 || b.maxWriteCapacity != 0) {
		limits := map[string]core.Value{}
		if b.maxReadCapacity != 0 {
			limits["MaxReadRequestUnits"] = core.Int(b.maxReadCapacity)
		}
		if b.maxWriteCapacity != 0 {
			limits["MaxWriteRequestUnits"] = core.Int(b.maxWriteCapacity)
		}
		props["OnDemandThroughput"] = core.Map(limits)
	}
	if b.streamsEnabled {
		props["StreamSpecification"] = core.Map(map[string]core.Value{
			"StreamViewType": core.String("NEW_AND_OLD_IMAGES"),
		})
	}
	if b.pointInTimeBackup {
		props["PointInTimeRecoverySpecification"] = core.Map(map[string]core.Value{
			"PointInTimeRecoveryEnabled": core.Bool(true),
		})
	}
	return props
}

func keyViolations(field string, k Key) constraint.Violations {
	var v constraint.Violations
	if k.Name == "" {
		v.Add(&constraint.ValidationError{
			Kind:   constraint.RequiredFieldMissing,
			Field:  field,
			Reason: "key name must be set",
		})
	} else {
		v.Add(constraint.Pattern(field, k.Name, constraint.AlphanumericUnderscore, "alphanumerics and underscores"))
	}
	v.Add(constraint.OneOf(field+".type", k.Type, AttributeString, AttributeNumber, AttributeBinary))
	return v
}

func keyAttribute(k Key) core.Value {
	return core.Map(map[string]core.Value{
		"AttributeName": core.String(k.Name),
		"AttributeType": core.String(string(k.Type)),
	})
}

func keyElement(k Key, keyType string) core.Value {
	return core.Map(map[string]core.Value{
		"AttributeName": core.String(k.Name),
		"KeyType":       core.String(keyType),
	})
}

// TableRef is the typed handle to a built table, usable from other builders.
type TableRef struct {
	LogicalID string
}

// Ref resolves to the table name at deployment.
func (r TableRef) Ref() core.Value { return core.Ref(core.RefTo(r.LogicalID)) }

// Arn resolves to the table's ARN at deployment.
func (r TableRef) Arn() core.Value { return core.Ref(core.AttOf(r.LogicalID, "Arn")) }

// StreamArn resolves to the table's stream ARN at deployment.
func (r TableRef) StreamArn() core.Value { return core.Ref(core.AttOf(r.LogicalID, "StreamArn")) }
