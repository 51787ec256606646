// Package constraint provides the reusable validators behind every resource
// builder: stateless predicates that either accept a candidate value or
// describe exactly why it was rejected.
package constraint

import (
	"fmt"
	"regexp"
)

var (
	// Names made of alphanumerics and underscores (table names, attribute names).
	AlphanumericUnderscore = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	// Names made of alphanumerics and hyphens (stack names, queue names).
	AlphanumericHyphen = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	// S3 bucket naming: lowercase, digits, dots and hyphens, no leading/trailing punctuation.
	BucketName = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)
	// Tag keys per the provisioning API's tag contract.
	TagKey = regexp.MustCompile(`^[\pL\pN_.:/=+\-@]+$`)
)

// Required fails with RequiredFieldMissing when set is false.
func Required(field string, set bool) *ValidationError {
	if set {
		return nil
	}
	return &ValidationError{Kind: RequiredFieldMissing, Field: field, Reason: "field must be set"}
}

// NonEmpty fails when value is the empty string.
func NonEmpty(field, value string) *ValidationError {
	if value != "" {
		return nil
	}
	return &ValidationError{Kind: RequiredFieldMissing, Field: field, Reason: "field must not be empty"}
}

// Pattern validates value against re. The hint describes the expected shape
// in the error, since the raw regexp is rarely actionable.
func Pattern(field, value string, re *regexp.Regexp, hint string) *ValidationError {
	if re.MatchString(value) {
		return nil
	}
	return &ValidationError{
		Kind:   PatternMismatch,
		Field:  field,
		Reason: fmt.Sprintf("%q must be %s", value, hint),
	}
}

// Range validates min <= v <= max.
func Range(field string, v, min, max int64) *ValidationError {
	if v >= min && v <= max {
		return nil
	}
	return &ValidationError{
		Kind:   OutOfRange,
		Field:  field,
		Reason: fmt.Sprintf("%d is outside [%d, %d]", v, min, max),
	}
}

// Positive validates v >= 1.
func Positive(field string, v int64) *ValidationError {
	if v >= 1 {
		return nil
	}
	return &ValidationError{
		Kind:   OutOfRange,
		Field:  field,
		Reason: fmt.Sprintf("%d must be at least 1", v),
	}
}

// MaxLength validates len(value) <= max.
func MaxLength(field, value string, max int) *ValidationError {
	if len(value) <= max {
		return nil
	}
	return &ValidationError{
		Kind:   OutOfRange,
		Field:  field,
		Reason: fmt.Sprintf("length %d exceeds maximum %d", len(value), max),
	}
}

// OneOf validates that value is a member of the allowed set.
func OneOf[T comparable](field string, value T, allowed ...T) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Kind:   OutOfRange,
		Field:  field,
		Reason: fmt.Sprintf("%v is not one of the allowed values %v", value, allowed),
	}
}

// MutuallyExclusive fails with MutualExclusion when both fields are set.
// The error names both fields so the caller can see the whole conflict.
func MutuallyExclusive(fieldA string, setA bool, fieldB string, setB bool) *ValidationError {
	if !setA || !setB {
		return nil
	}
	return &ValidationError{
		Kind:   MutualExclusion,
		Field:  fieldA + ", " + fieldB,
		Reason: fmt.Sprintf("%s and %s cannot both be set", fieldA, fieldB),
	}
}

// RequiresMode fails when a field is set outside the configuration mode that
// admits it. Cross-field rules like "capacity is only legal under provisioned
// billing" are expressed with this.
func RequiresMode(field string, set bool, mode, requiredMode string) *ValidationError {
	if !set || mode == requiredMode {
		return nil
	}
	return &ValidationError{
		Kind:   MutualExclusion,
		Field:  field,
		Reason: fmt.Sprintf("only legal with %s, but %s is configured", requiredMode, mode),
	}
}

// ValidTag validates one stack tag.
func ValidTag(key, value string) *ValidationError {
	if key == "" || len(key) > 128 {
		return &ValidationError{Kind: InvalidTag, Field: key, Reason: "tag key must be 1-128 characters"}
	}
	if !TagKey.MatchString(key) {
		return &ValidationError{Kind: InvalidTag, Field: key, Reason: "tag key contains invalid characters"}
	}
	if len(value) > 256 {
		return &ValidationError{Kind: InvalidTag, Field: key, Reason: "tag value must be at most 256 characters"}
	}
	return nil
}
