package deploy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/mason-iac/mason/internal/logging"
	"github.com/mason-iac/mason/internal/synth"
)

// CloudFormationAPI adapts AWS CloudFormation to the API capability
// interface.
type CloudFormationAPI struct {
	client *cloudformation.Client
}

// NewCloudFormationAPI wraps an AWS config into the provisioning API.
func NewCloudFormationAPI(cfg aws.Config) *CloudFormationAPI {
	return &CloudFormationAPI{client: cloudformation.NewFromConfig(cfg)}
}

// Describe fetches the currently deployed template.
func (c *CloudFormationAPI) Describe(ctx context.Context, stackName string) (*synth.Template, error) {
	out, err := c.client.GetTemplate(ctx, &cloudformation.GetTemplateInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return nil, ErrStackNotFound
		}
		return nil, fmt.Errorf("failed to fetch deployed template for %s: %w", stackName, err)
	}
	if out.TemplateBody == nil {
		return nil, ErrStackNotFound
	}
	return synth.Parse([]byte(*out.TemplateBody))
}

// Submit creates the stack, or updates it when it already exists.
func (c *CloudFormationAPI) Submit(ctx context.Context, stackName string, tmpl *synth.Template, tags map[string]string) (Handle, error) {
	body := string(tmpl.CanonicalJSON())
	token := uuid.NewString()
	cfnTags := encodeTags(tags)

	exists, err := c.stackExists(ctx, stackName)
	if err != nil {
		return Handle{}, err
	}

	if exists {
		logging.Debug("updating stack", "stack", stackName, "token", token)
		_, err = c.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
			StackName:          aws.String(stackName),
			TemplateBody:       aws.String(body),
			Tags:               cfnTags,
			Capabilities:       []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
			ClientRequestToken: aws.String(token),
		})
	} else {
		logging.Debug("creating stack", "stack", stackName, "token", token)
		_, err = c.client.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:          aws.String(stackName),
			TemplateBody:       aws.String(body),
			Tags:               cfnTags,
			Capabilities:       []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
			ClientRequestToken: aws.String(token),
		})
	}
	if err != nil {
		return Handle{}, fmt.Errorf("failed to submit stack %s: %w", stackName, err)
	}

	return Handle{StackName: stackName, Token: token}, nil
}

// PollStatus translates the stack's status into the orchestrator's view.
func (c *CloudFormationAPI) PollStatus(ctx context.Context, h Handle) (Status, error) {
	out, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(h.StackName),
	})
	if err != nil {
		if isStackMissing(err) {
			// The stack vanished mid-poll: a completed delete.
			return StatusSucceeded, nil
		}
		return StatusRunning, err
	}
	if len(out.Stacks) == 0 {
		return StatusSucceeded, nil
	}
	return translateStatus(out.Stacks[0].StackStatus), nil
}

// Destroy deletes the stack.
func (c *CloudFormationAPI) Destroy(ctx context.Context, stackName string) (Handle, error) {
	token := uuid.NewString()
	_, err := c.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName:          aws.String(stackName),
		ClientRequestToken: aws.String(token),
	})
	if err != nil {
		return Handle{}, fmt.Errorf("failed to delete stack %s: %w", stackName, err)
	}
	return Handle{StackName: stackName, Token: token}, nil
}

func (c *CloudFormationAPI) stackExists(ctx context.Context, stackName string) (bool, error) {
	out, err := c.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		if isStackMissing(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe stack %s: %w", stackName, err)
	}
	// A stack in REVIEW_IN_PROGRESS or DELETE_COMPLETE is creatable again.
	for _, s := range out.Stacks {
		switch s.StackStatus {
		case cfntypes.StackStatusDeleteComplete, cfntypes.StackStatusReviewInProgress:
			return false, nil
		}
	}
	return len(out.Stacks) > 0, nil
}

func translateStatus(s cfntypes.StackStatus) Status {
	switch s {
	case cfntypes.StackStatusCreateComplete,
		cfntypes.StackStatusUpdateComplete,
		cfntypes.StackStatusUpdateCompleteCleanupInProgress,
		cfntypes.StackStatusDeleteComplete:
		return StatusSucceeded
	case cfntypes.StackStatusRollbackComplete,
		cfntypes.StackStatusUpdateRollbackComplete,
		cfntypes.StackStatusUpdateRollbackCompleteCleanupInProgress:
		return StatusRolledBack
	case cfntypes.StackStatusCreateFailed,
		cfntypes.StackStatusRollbackFailed,
		cfntypes.StackStatusUpdateFailed,
		cfntypes.StackStatusUpdateRollbackFailed,
		cfntypes.StackStatusDeleteFailed:
		return StatusFailed
	default:
		return StatusRunning
	}
}

func encodeTags(tags map[string]string) []cfntypes.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cfntypes.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, cfntypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

// isStackMissing recognizes CloudFormation's "stack does not exist"
// validation error.
func isStackMissing(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}

// IsTransient reports whether an error is worth retrying: throttling and
// server-side faults are, authoritative rejections are not. Non-API errors
// (network failures mid-flight) count as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.ErrorCode() {
	case "Throttling", "ThrottlingException", "RequestLimitExceeded",
		"ServiceUnavailable", "InternalFailure", "InternalError", "RequestTimeout":
		return true
	}
	return apiErr.ErrorFault() == smithy.FaultServer
}
