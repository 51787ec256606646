package deploy

import (
	"context"
	"errors"

	"github.com/mason-iac/mason/internal/synth"
)

// ErrStackNotFound is returned by Describe when no stack with the given name
// has ever been deployed.
var ErrStackNotFound = errors.New("stack not found")

// Status is the provider's view of an in-flight operation.
type Status int

const (
	// StatusRunning: the operation is still in progress.
	StatusRunning Status = iota
	// StatusSucceeded: the operation completed.
	StatusSucceeded
	// StatusFailed: the provider reported failure without reverting.
	StatusFailed
	// StatusRolledBack: the provider reported failure and reverted the stack.
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusRolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// Handle identifies a submitted operation for status polling.
type Handle struct {
	StackName string
	Token     string
}

// API is the capability interface over the cloud provisioning service. The
// orchestrator only ever talks through it; concrete providers are adapters.
type API interface {
	// Describe returns the currently deployed template for the stack, or
	// ErrStackNotFound when the stack does not exist.
	Describe(ctx context.Context, stackName string) (*synth.Template, error)
	// Submit sends the new template (creating or updating as needed) and
	// returns a handle for polling.
	Submit(ctx context.Context, stackName string, tmpl *synth.Template, tags map[string]string) (Handle, error)
	// PollStatus queries the state of a submitted operation.
	PollStatus(ctx context.Context, h Handle) (Status, error)
	// Destroy deletes the stack and returns a handle for polling.
	Destroy(ctx context.Context, stackName string) (Handle, error)
}
