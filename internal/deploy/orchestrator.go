// Package deploy drives the external provisioning API through a staged,
// retryable, cancellable state machine. Everything local (validation,
// synthesis, diffing) runs before the first network call; everything remote
// is bounded by a retry policy and a total wait cap.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/diff"
	"github.com/mason-iac/mason/internal/logging"
	"github.com/mason-iac/mason/internal/synth"
)

// State of the deployment state machine. Linear with branch-outs on failure:
// Idle -> Validating -> Synthesizing -> Diffing -> Submitting -> Polling ->
// {Succeeded | Failed | RolledBack}. Terminal states are sticky.
type State string

const (
	StateIdle         State = "Idle"
	StateValidating   State = "Validating"
	StateSynthesizing State = "Synthesizing"
	StateDiffing      State = "Diffing"
	StateSubmitting   State = "Submitting"
	StatePolling      State = "Polling"
	StateSucceeded    State = "Succeeded"
	StateFailed       State = "Failed"
	StateRolledBack   State = "RolledBack"
)

// terminal reports whether the state machine can move on from s.
func (s State) terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateRolledBack
}

// StackSource yields a validated stack. A StackBuilder builds on demand; an
// already-built Stack passes through.
type StackSource interface {
	BuildStack(ctx context.Context) (*core.Stack, error)
}

// Options tune one deployment attempt.
type Options struct {
	// PollInterval between status queries.
	PollInterval time.Duration
	// MaxWait caps the total time spent polling.
	MaxWait time.Duration
	// Retry bounds retries of transient query failures.
	Retry *RetryPolicy
	// Uploader stages stack assets before submission; nil skips staging
	// (valid when the stack carries no assets).
	Uploader Uploader
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.MaxWait <= 0 {
		o.MaxWait = 30 * time.Minute
	}
	if o.Retry == nil {
		o.Retry = DefaultRetryPolicy()
	}
	return o
}

// Outcome is the result of one deploy attempt.
type Outcome struct {
	State State
	// Diff computed before submission; nil when validation failed first.
	Diff *diff.Result
	// Err is the validation or deployment error behind a non-success state.
	Err error
}

// Orchestrator runs one deployment. It is single-use: a second Deploy,
// Plan or Destroy call on the same instance fails.
//
// Cancellation: cancelling the context stops local work and polling and
// surfaces a Cancelled error, but does NOT stop the provider-side operation,
// which continues or rolls back on its own.
type Orchestrator struct {
	api       API
	stackName string
	opts      Options
	state     State
	used      bool
}

// NewOrchestrator prepares a deployment of the named stack.
func NewOrchestrator(api API, stackName string, opts Options) *Orchestrator {
	return &Orchestrator{
		api:       api,
		stackName: stackName,
		opts:      opts.withDefaults(),
		state:     StateIdle,
	}
}

// State returns the current machine state.
func (o *Orchestrator) State() State { return o.state }

func (o *Orchestrator) transition(next State) {
	if o.state.terminal() {
		return
	}
	logging.Debug("deployment state transition", "stack", o.stackName, "from", o.state, "to", next)
	o.state = next
}

func (o *Orchestrator) claim() error {
	if o.used {
		return errors.New("orchestrator is single-use: already ran")
	}
	o.used = true
	return nil
}

// Deploy runs the full state machine for one attempt.
func (o *Orchestrator) Deploy(ctx context.Context, source StackSource) Outcome {
	if err := o.claim(); err != nil {
		return Outcome{State: o.state, Err: err}
	}

	// Validating, Synthesizing, Diffing: local and synchronous. A validation
	// failure halts before any external call.
	stack, next, result, out := o.prepare(ctx, source)
	if out != nil {
		return *out
	}

	// No-op deploy: nothing to submit, nothing to poll.
	if !result.Changed() {
		logging.Info("no changes, skipping submission", "stack", o.stackName)
		o.transition(StateSucceeded)
		return Outcome{State: StateSucceeded, Diff: result}
	}

	o.transition(StateSubmitting)
	if len(stack.Assets()) > 0 {
		if o.opts.Uploader == nil {
			o.transition(StateFailed)
			return Outcome{State: StateFailed, Diff: result, Err: &Error{
				Kind: SubmissionRejected, StackName: o.stackName, State: StateSubmitting,
				Reason: "stack carries assets but no uploader is configured",
			}}
		}
		if err := o.opts.Uploader.Upload(ctx, stack.Assets()); err != nil {
			o.transition(StateFailed)
			return Outcome{State: StateFailed, Diff: result, Err: &Error{
				Kind: SubmissionRejected, StackName: o.stackName, State: StateSubmitting,
				Reason: "asset staging failed", Err: err,
			}}
		}
	}

	handle, err := o.api.Submit(ctx, o.stackName, next, stack.Tags())
	if err != nil {
		o.transition(StateFailed)
		return Outcome{State: StateFailed, Diff: result, Err: o.classify(StateSubmitting, err)}
	}

	outcome := o.poll(ctx, handle)
	outcome.Diff = result
	return outcome
}

// Plan is the dry-run path: validate, synthesize, describe, diff. No
// Submitting or Polling phase.
func (o *Orchestrator) Plan(ctx context.Context, source StackSource) (*diff.Result, error) {
	if err := o.claim(); err != nil {
		return nil, err
	}
	_, _, result, out := o.prepare(ctx, source)
	if out != nil {
		return nil, out.Err
	}
	o.transition(StateSucceeded)
	return result, nil
}

// prepare runs the local stages and the describe call. A non-nil Outcome
// means a failure already terminal.
func (o *Orchestrator) prepare(ctx context.Context, source StackSource) (*core.Stack, *synth.Template, *diff.Result, *Outcome) {
	o.transition(StateValidating)
	stack, err := source.BuildStack(ctx)
	if err != nil {
		o.transition(StateFailed)
		return nil, nil, nil, &Outcome{State: StateFailed, Err: err}
	}

	o.transition(StateSynthesizing)
	next := synth.Synth(stack)

	o.transition(StateDiffing)
	// The previous template is re-fetched on every attempt; what is
	// currently deployed is never cached across deploys.
	var prev *synth.Template
	err = retryWithBackoff(ctx, o.opts.Retry, func() error {
		var describeErr error
		prev, describeErr = o.api.Describe(ctx, o.stackName)
		if errors.Is(describeErr, ErrStackNotFound) {
			prev = nil
			return nil
		}
		return describeErr
	}, IsTransient)
	if err != nil {
		o.transition(StateFailed)
		return nil, nil, nil, &Outcome{State: StateFailed, Err: o.classify(StateDiffing, err)}
	}

	return stack, next, diff.Diff(prev, next), nil
}

// poll drives the Polling stage to a terminal state.
func (o *Orchestrator) poll(ctx context.Context, handle Handle) Outcome {
	o.transition(StatePolling)
	deadline := time.Now().Add(o.opts.MaxWait)
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	for {
		var status Status
		err := retryWithBackoff(ctx, o.opts.Retry, func() error {
			var pollErr error
			status, pollErr = o.api.PollStatus(ctx, handle)
			return pollErr
		}, IsTransient)
		if err != nil {
			o.transition(StateFailed)
			return Outcome{State: StateFailed, Err: o.classify(StatePolling, err)}
		}

		switch status {
		case StatusSucceeded:
			o.transition(StateSucceeded)
			return Outcome{State: StateSucceeded}
		case StatusFailed:
			o.transition(StateFailed)
			return Outcome{State: StateFailed, Err: &Error{
				Kind: ProviderReportedFailure, StackName: o.stackName, State: StatePolling,
				Reason: "provider reported the operation failed",
			}}
		case StatusRolledBack:
			// The provider reverted everything: distinct from Failed, where
			// a partial change may remain.
			o.transition(StateRolledBack)
			return Outcome{State: StateRolledBack, Err: &Error{
				Kind: ProviderReportedFailure, StackName: o.stackName, State: StatePolling,
				Reason: "provider rolled the operation back",
			}}
		}

		if time.Now().After(deadline) {
			o.transition(StateFailed)
			return Outcome{State: StateFailed, Err: &Error{
				Kind: PollingTimeout, StackName: o.stackName, State: StatePolling,
				Reason: fmt.Sprintf("operation still running after %s", o.opts.MaxWait),
			}}
		}

		select {
		case <-ctx.Done():
			o.transition(StateFailed)
			return Outcome{State: StateFailed, Err: &Error{
				Kind: Cancelled, StackName: o.stackName, State: StatePolling,
				Reason: "cancelled while polling; the provider-side operation continues independently",
				Err:    ctx.Err(),
			}}
		case <-ticker.C:
		}
	}
}

// Destroy deletes the stack and polls the deletion to completion. A stack
// that does not exist destroys trivially.
func (o *Orchestrator) Destroy(ctx context.Context) Outcome {
	if err := o.claim(); err != nil {
		return Outcome{State: o.state, Err: err}
	}

	o.transition(StateSubmitting)
	var missing bool
	err := retryWithBackoff(ctx, o.opts.Retry, func() error {
		_, describeErr := o.api.Describe(ctx, o.stackName)
		if errors.Is(describeErr, ErrStackNotFound) {
			missing = true
			return nil
		}
		return describeErr
	}, IsTransient)
	if err != nil {
		o.transition(StateFailed)
		return Outcome{State: StateFailed, Err: o.classify(StateSubmitting, err)}
	}
	if missing {
		o.transition(StateSucceeded)
		return Outcome{State: StateSucceeded}
	}

	handle, err := o.api.Destroy(ctx, o.stackName)
	if err != nil {
		o.transition(StateFailed)
		return Outcome{State: StateFailed, Err: o.classify(StateSubmitting, err)}
	}
	return o.poll(ctx, handle)
}

// classify wraps an external error in the right deployment error kind.
func (o *Orchestrator) classify(state State, err error) error {
	var depErr *Error
	if errors.As(err, &depErr) {
		return err
	}
	kind := SubmissionRejected
	switch {
	case errors.Is(err, context.Canceled):
		kind = Cancelled
	case state == StatePolling || state == StateDiffing:
		// Exhausted retries against a query: the true state is unknown.
		kind = PollingTimeout
	}
	return &Error{Kind: kind, StackName: o.stackName, State: state, Err: err}
}
