package deploy

import "fmt"

// ErrorKind classifies a deployment failure. Deployment errors are external
// and non-deterministic, unlike validation errors, and the two families are
// never conflated: transient kinds are retried with bounded backoff,
// authoritative provider outcomes are surfaced as-is.
type ErrorKind string

const (
	// SubmissionRejected: the provider refused the change request outright.
	SubmissionRejected ErrorKind = "SubmissionRejected"
	// PollingTimeout: transient query failures exhausted the retry budget or
	// the total wait cap, leaving the operation in an unknown state. Distinct
	// from a provider-reported failure.
	PollingTimeout ErrorKind = "PollingTimeout"
	// ProviderReportedFailure: the provider authoritatively reported the
	// operation failed (or rolled back).
	ProviderReportedFailure ErrorKind = "ProviderReportedFailure"
	// Cancelled: the caller cancelled while waiting. The external operation
	// is NOT stopped by cancellation and may complete or roll back on its own.
	Cancelled ErrorKind = "Cancelled"
)

// Error is a deployment-phase failure with enough context to be actionable
// without log archaeology.
type Error struct {
	Kind      ErrorKind
	StackName string
	State     State // orchestrator state when the failure occurred
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [stack %s, %s]", e.Kind, e.StackName, e.State)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
