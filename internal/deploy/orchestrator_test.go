package deploy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/synth"
)

// fakeAPI scripts the provisioning API for orchestrator tests.
type fakeAPI struct {
	deployed    *synth.Template
	describeErr []error // consumed one per Describe call before deployed is returned
	submitErr   error
	statuses    []Status
	statusErr   []error

	describeCalls int
	submitCalls   int
	pollCalls     int
	destroyCalls  int

	submitted *synth.Template
	tags      map[string]string
}

func (f *fakeAPI) Describe(ctx context.Context, stackName string) (*synth.Template, error) {
	f.describeCalls++
	if len(f.describeErr) > 0 {
		err := f.describeErr[0]
		f.describeErr = f.describeErr[1:]
		if err != nil {
			return nil, err
		}
	}
	if f.deployed == nil {
		return nil, ErrStackNotFound
	}
	return f.deployed, nil
}

func (f *fakeAPI) Submit(ctx context.Context, stackName string, tmpl *synth.Template, tags map[string]string) (Handle, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return Handle{}, f.submitErr
	}
	f.submitted = tmpl
	f.tags = tags
	return Handle{StackName: stackName, Token: "tok-1"}, nil
}

func (f *fakeAPI) PollStatus(ctx context.Context, h Handle) (Status, error) {
	f.pollCalls++
	if len(f.statusErr) > 0 {
		err := f.statusErr[0]
		f.statusErr = f.statusErr[1:]
		if err != nil {
			return StatusRunning, err
		}
	}
	if len(f.statuses) == 0 {
		return StatusSucceeded, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeAPI) Destroy(ctx context.Context, stackName string) (Handle, error) {
	f.destroyCalls++
	return Handle{StackName: stackName, Token: "tok-del"}, nil
}

// fakeUploader records staged assets.
type fakeUploader struct {
	uploaded []core.Asset
	err      error
}

func (u *fakeUploader) Upload(ctx context.Context, assets []core.Asset) error {
	if u.err != nil {
		return u.err
	}
	u.uploaded = append(u.uploaded, assets...)
	return nil
}

func testOptions() Options {
	return Options{
		PollInterval: time.Millisecond,
		MaxWait:      time.Second,
		Retry:        &RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func simpleSource(t *testing.T) StackSource {
	t.Helper()
	sb := core.NewStackBuilder()
	require.NoError(t, sb.Add(core.NewResource("bucket", "Test::Bucket", map[string]core.Value{
		"Name": core.String("assets"),
	})))
	return sb
}

func assetSource(t *testing.T, path string) StackSource {
	t.Helper()
	sb := core.NewStackBuilder()
	require.NoError(t, sb.Add(core.NewResource("fn", "Test::Function", nil)))
	sb.AddAsset(core.Asset{Bucket: "staging", Key: "fn/code.zip", Path: path})
	return sb
}

func TestDeploy_CreateSucceeds(t *testing.T) {
	api := &fakeAPI{statuses: []Status{StatusRunning, StatusSucceeded}}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), simpleSource(t))
	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, StateSucceeded, o.State())
	assert.Equal(t, 1, api.submitCalls)
	assert.NotNil(t, api.submitted)
	require.NotNil(t, out.Diff)
	assert.True(t, out.Diff.Changed())
}

func TestDeploy_NoChangesSkipsSubmission(t *testing.T) {
	// The deployed template equals the synthesized one.
	sb := core.NewStackBuilder()
	require.NoError(t, sb.Add(core.NewResource("bucket", "Test::Bucket", map[string]core.Value{
		"Name": core.String("assets"),
	})))
	stack, err := sb.Build(context.Background())
	require.NoError(t, err)

	deployed, err := synth.Parse(synth.Synth(stack).CanonicalJSON())
	require.NoError(t, err)

	api := &fakeAPI{deployed: deployed}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), stack)
	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.False(t, out.Diff.Changed())
	assert.Zero(t, api.submitCalls, "a no-op deploy never submits")
	assert.Zero(t, api.pollCalls, "a no-op deploy never polls")
}

func TestDeploy_ValidationFailureHaltsBeforeAnyCall(t *testing.T) {
	sb := core.NewStackBuilder()
	require.NoError(t, sb.Add(core.NewResource("a", "Test::Kind", map[string]core.Value{
		"Target": core.Ref(core.RefTo("missing")),
	})))

	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), sb)
	require.Error(t, out.Err)
	assert.Equal(t, StateFailed, out.State)
	assert.Nil(t, out.Diff)
	assert.Zero(t, api.describeCalls)
	assert.Zero(t, api.submitCalls)
}

func TestDeploy_ProviderReportsFailure(t *testing.T) {
	api := &fakeAPI{statuses: []Status{StatusFailed}}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), simpleSource(t))
	assert.Equal(t, StateFailed, out.State)

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, ProviderReportedFailure, depErr.Kind)
	assert.Equal(t, StatePolling, depErr.State)
}

func TestDeploy_ProviderRollsBack(t *testing.T) {
	api := &fakeAPI{statuses: []Status{StatusRunning, StatusRolledBack}}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), simpleSource(t))
	assert.Equal(t, StateRolledBack, out.State, "rollback is distinct from plain failure")

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, ProviderReportedFailure, depErr.Kind)
	assert.Contains(t, depErr.Reason, "rolled")
}

func TestDeploy_TransientDescribeRetried(t *testing.T) {
	api := &fakeAPI{
		describeErr: []error{errors.New("connection reset"), errors.New("connection reset")},
		statuses:    []Status{StatusSucceeded},
	}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), simpleSource(t))
	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, 3, api.describeCalls)
}

func TestDeploy_TransientExhaustionFails(t *testing.T) {
	api := &fakeAPI{
		describeErr: []error{
			errors.New("connection reset"),
			errors.New("connection reset"),
			errors.New("connection reset"),
			errors.New("connection reset"),
		},
	}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), simpleSource(t))
	assert.Equal(t, StateFailed, out.State)

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, PollingTimeout, depErr.Kind, "exhausted retries leave the state unknown")
	assert.Zero(t, api.submitCalls)
}

func TestDeploy_AuthoritativeErrorNotRetried(t *testing.T) {
	denied := &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient}
	api := &fakeAPI{describeErr: []error{denied}}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), simpleSource(t))
	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, 1, api.describeCalls, "a client fault burns no retry budget")
}

func TestDeploy_SubmissionRejected(t *testing.T) {
	api := &fakeAPI{
		submitErr: &smithy.GenericAPIError{Code: "InsufficientCapabilities", Fault: smithy.FaultClient},
	}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), simpleSource(t))
	assert.Equal(t, StateFailed, out.State)

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, SubmissionRejected, depErr.Kind)
	assert.NotNil(t, out.Diff, "the diff was already computed when submission failed")
}

func TestDeploy_CancelledDuringPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &fakeAPI{statuses: []Status{StatusRunning}}
	opts := testOptions()
	opts.PollInterval = 50 * time.Millisecond

	o := NewOrchestrator(api, "demo", opts)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	out := o.Deploy(ctx, simpleSource(t))
	assert.Equal(t, StateFailed, out.State)

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, Cancelled, depErr.Kind)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestDeploy_PollingTimeout(t *testing.T) {
	api := &fakeAPI{statuses: []Status{StatusRunning}}
	opts := testOptions()
	opts.MaxWait = 5 * time.Millisecond

	o := NewOrchestrator(api, "demo", opts)
	out := o.Deploy(context.Background(), simpleSource(t))
	assert.Equal(t, StateFailed, out.State)

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, PollingTimeout, depErr.Kind)
}

func TestDeploy_SingleUse(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", testOptions())

	first := o.Deploy(context.Background(), simpleSource(t))
	require.NoError(t, first.Err)

	second := o.Deploy(context.Background(), simpleSource(t))
	require.Error(t, second.Err)
	assert.Contains(t, second.Err.Error(), "single-use")
	assert.Equal(t, 1, api.submitCalls)
}

func TestDeploy_AssetsStagedBeforeSubmit(t *testing.T) {
	uploader := &fakeUploader{}
	opts := testOptions()
	opts.Uploader = uploader

	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", opts)

	out := o.Deploy(context.Background(), assetSource(t, "code.zip"))
	require.NoError(t, out.Err)
	require.Len(t, uploader.uploaded, 1)
	assert.Equal(t, "staging", uploader.uploaded[0].Bucket)
	assert.Equal(t, "fn/code.zip", uploader.uploaded[0].Key)
}

func TestDeploy_AssetsWithoutUploaderFails(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), assetSource(t, "code.zip"))
	assert.Equal(t, StateFailed, out.State)

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, SubmissionRejected, depErr.Kind)
	assert.Zero(t, api.submitCalls)
}

func TestDeploy_AssetUploadFailure(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("disk full")}
	opts := testOptions()
	opts.Uploader = uploader

	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", opts)

	out := o.Deploy(context.Background(), assetSource(t, "code.zip"))
	assert.Equal(t, StateFailed, out.State)
	assert.Zero(t, api.submitCalls)
}

func TestDeploy_TagsForwarded(t *testing.T) {
	sb := core.NewStackBuilder()
	require.NoError(t, sb.Add(core.NewResource("a", "Test::Kind", nil)))
	sb.AddTag("Environment", "prod")

	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Deploy(context.Background(), sb)
	require.NoError(t, out.Err)
	assert.Equal(t, map[string]string{"Environment": "prod"}, api.tags)
}

func TestPlan_NeverSubmits(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", testOptions())

	result, err := o.Plan(context.Background(), simpleSource(t))
	require.NoError(t, err)
	assert.True(t, result.Changed())
	assert.Equal(t, 1, api.describeCalls)
	assert.Zero(t, api.submitCalls)
	assert.Zero(t, api.pollCalls)
	assert.Equal(t, StateSucceeded, o.State())
}

func TestDestroy_MissingStackIsTrivialSuccess(t *testing.T) {
	api := &fakeAPI{}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Destroy(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Zero(t, api.destroyCalls)
}

func TestDestroy_DescribeFailureHaltsDeletion(t *testing.T) {
	denied := &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient}
	api := &fakeAPI{
		deployed: &synth.Template{Resources: map[string]synth.TemplateResource{
			"a": {Type: "Test::Kind"},
		}},
		describeErr: []error{denied},
	}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Destroy(context.Background())
	assert.Equal(t, StateFailed, out.State)
	assert.Zero(t, api.destroyCalls, "an unverified stack is never deleted")

	var depErr *Error
	require.ErrorAs(t, out.Err, &depErr)
	assert.Equal(t, SubmissionRejected, depErr.Kind)
	assert.ErrorIs(t, out.Err, denied)
}

func TestDestroy_TransientDescribeRetried(t *testing.T) {
	api := &fakeAPI{
		deployed: &synth.Template{Resources: map[string]synth.TemplateResource{
			"a": {Type: "Test::Kind"},
		}},
		describeErr: []error{errors.New("connection reset")},
		statuses:    []Status{StatusSucceeded},
	}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Destroy(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, 2, api.describeCalls)
	assert.Equal(t, 1, api.destroyCalls)
}

func TestDestroy_PollsToCompletion(t *testing.T) {
	api := &fakeAPI{
		deployed: &synth.Template{Resources: map[string]synth.TemplateResource{
			"a": {Type: "Test::Kind"},
		}},
		statuses: []Status{StatusRunning, StatusSucceeded},
	}
	o := NewOrchestrator(api, "demo", testOptions())

	out := o.Destroy(context.Background())
	require.NoError(t, out.Err)
	assert.Equal(t, StateSucceeded, out.State)
	assert.Equal(t, 1, api.destroyCalls)
	assert.GreaterOrEqual(t, api.pollCalls, 2)
}

func TestRetryWithBackoff_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, IsTransient)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryWithBackoff(ctx, DefaultRetryPolicy(), func() error {
		return errors.New("flaky")
	}, IsTransient)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"context canceled", context.Canceled, false},
		{"plain network error", errors.New("connection reset"), true},
		{"throttling", &smithy.GenericAPIError{Code: "Throttling"}, true},
		{"server fault", &smithy.GenericAPIError{Code: "Whatever", Fault: smithy.FaultServer}, true},
		{"client fault", &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
