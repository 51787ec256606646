package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/lookup"
)

func TestStackBuilder_Build(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", map[string]Value{
		"Name": String("a"),
	})))
	require.NoError(t, sb.Add(NewResource("b", "Test::Kind", map[string]Value{
		"Target": Ref(AttOf("a", "Arn")),
	})))

	stack, err := sb.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, stack.ResourceIDs())
	assert.Equal(t, []string{"a"}, stack.Dependencies("b"))
}

func TestStackBuilder_DuplicateIdentity(t *testing.T) {
	// The duplicate is rejected regardless of insertion order.
	for _, order := range [][2]string{{"first", "second"}, {"second", "first"}} {
		sb := NewStackBuilder()
		require.NoError(t, sb.Add(NewResource("dup", "Test::Kind"+order[0], nil)))

		err := sb.Add(NewResource("dup", "Test::Kind"+order[1], nil))
		require.Error(t, err)
		var violations constraint.Violations
		require.ErrorAs(t, err, &violations)
		assert.True(t, violations.Has(constraint.DuplicateIdentity))
		assert.Equal(t, "dup", violations[0].ResourceID)
	}
}

func TestStackBuilder_UnresolvableReference(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("consumer", "Test::Kind", map[string]Value{
		"Target": Ref(RefTo("missing")),
	})))

	_, err := sb.Build(context.Background())
	require.Error(t, err)
	var violations constraint.Violations
	require.ErrorAs(t, err, &violations)
	assert.True(t, violations.Has(constraint.UnresolvableReference))
	assert.Contains(t, err.Error(), "missing")
}

func TestStackBuilder_CycleNamesThePath(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", map[string]Value{
		"Next": Ref(RefTo("b")),
	})))
	require.NoError(t, sb.Add(NewResource("b", "Test::Kind", map[string]Value{
		"Next": Ref(RefTo("c")),
	})))
	require.NoError(t, sb.Add(NewResource("c", "Test::Kind", map[string]Value{
		"Next": Ref(RefTo("a")),
	})))

	_, err := sb.Build(context.Background())
	require.Error(t, err)
	var violations constraint.Violations
	require.ErrorAs(t, err, &violations)
	assert.True(t, violations.Has(constraint.CyclicDependency))
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestStackBuilder_BreakingCycleBuilds(t *testing.T) {
	// Same shape without the closing edge assembles fine.
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", map[string]Value{
		"Next": Ref(RefTo("b")),
	})))
	require.NoError(t, sb.Add(NewResource("b", "Test::Kind", map[string]Value{
		"Next": Ref(RefTo("c")),
	})))
	require.NoError(t, sb.Add(NewResource("c", "Test::Kind", nil)))

	stack, err := sb.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, stack.DeployOrder())
	assert.Equal(t, []string{"a", "b", "c"}, stack.DestroyOrder())
}

func TestStackBuilder_SingleEdgeOrdering(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("x", "Test::Kind", map[string]Value{
		"Target": Ref(AttOf("y", "Arn")),
	})))
	require.NoError(t, sb.Add(NewResource("y", "Test::Kind", nil)))

	stack, err := sb.Build(context.Background())
	require.NoError(t, err)

	order := stack.DeployOrder()
	require.Len(t, order, 2)
	assert.Less(t, indexOf(order, "y"), indexOf(order, "x"), "y must deploy before x")

	destroy := stack.DestroyOrder()
	assert.Less(t, indexOf(destroy, "x"), indexOf(destroy, "y"), "x must be destroyed before y")
}

func TestStackBuilder_SingleUse(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", nil)))

	_, err := sb.Build(context.Background())
	require.NoError(t, err)

	_, err = sb.Build(context.Background())
	assert.ErrorIs(t, err, ErrBuilderFinalized)
	assert.ErrorIs(t, sb.Add(NewResource("b", "Test::Kind", nil)), ErrBuilderFinalized)
}

func TestStackBuilder_SingleUseAfterFailure(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", map[string]Value{
		"Target": Ref(RefTo("nope")),
	})))

	_, err := sb.Build(context.Background())
	require.Error(t, err)

	// A failed build still finalizes the builder.
	_, err = sb.Build(context.Background())
	assert.ErrorIs(t, err, ErrBuilderFinalized)
}

func TestStackBuilder_Tags(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", nil)))
	sb.AddTag("Environment", "prod").AddTag("Owner", "platform")

	stack, err := sb.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Environment": "prod", "Owner": "platform"}, stack.Tags())
}

func TestStackBuilder_InvalidTag(t *testing.T) {
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", nil)))
	sb.AddTag("bad tag", "x")

	_, err := sb.Build(context.Background())
	require.Error(t, err)
	var violations constraint.Violations
	require.ErrorAs(t, err, &violations)
	assert.True(t, violations.Has(constraint.InvalidTag))
}

func TestStackBuilder_AllViolationsReported(t *testing.T) {
	// One build pass surfaces every failure, not just the first.
	sb := NewStackBuilder()
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", map[string]Value{
		"Target": Ref(RefTo("missing")),
	})))
	sb.AddTag("bad tag", "x")

	_, err := sb.Build(context.Background())
	require.Error(t, err)
	var violations constraint.Violations
	require.ErrorAs(t, err, &violations)
	assert.True(t, violations.Has(constraint.UnresolvableReference))
	assert.True(t, violations.Has(constraint.InvalidTag))
}

func TestStackBuilder_VerifierStrict(t *testing.T) {
	missing := lookup.VerifierFunc(func(ctx context.Context, kind, id string) (lookup.Result, error) {
		return lookup.Missing, nil
	})

	sb := NewStackBuilder().WithVerifier(missing, true)
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", nil)))
	sb.AddExternal("AWS::S3::Bucket", "some-bucket")

	_, err := sb.Build(context.Background())
	require.Error(t, err)
	var violations constraint.Violations
	require.ErrorAs(t, err, &violations)
	assert.True(t, violations.Has(constraint.UnknownResource))
}

func TestStackBuilder_VerifierSoft(t *testing.T) {
	missing := lookup.VerifierFunc(func(ctx context.Context, kind, id string) (lookup.Result, error) {
		return lookup.Missing, nil
	})

	sb := NewStackBuilder().WithVerifier(missing, false)
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", nil)))
	sb.AddExternal("AWS::S3::Bucket", "some-bucket")

	_, err := sb.Build(context.Background())
	assert.NoError(t, err, "missing external is a warning outside strict mode")
}

func TestStackBuilder_VerifierErrorIsSoft(t *testing.T) {
	failing := lookup.VerifierFunc(func(ctx context.Context, kind, id string) (lookup.Result, error) {
		return lookup.Unknown, errors.New("throttled")
	})

	sb := NewStackBuilder().WithVerifier(failing, true)
	require.NoError(t, sb.Add(NewResource("a", "Test::Kind", nil)))
	sb.AddExternal("AWS::S3::Bucket", "some-bucket")

	_, err := sb.Build(context.Background())
	assert.NoError(t, err, "an inconclusive check never fails the build")
}

func TestNewResource_DerivesDependencies(t *testing.T) {
	r := NewResource("fn", "Test::Fn", map[string]Value{
		"Role": Ref(AttOf("role", "Arn")),
		"Env": Map(map[string]Value{
			"TABLE": Ref(RefTo("table")),
		}),
	}, "loggroup")

	assert.Equal(t, []string{"loggroup", "role", "table"}, r.DependsOn())
	assert.Equal(t, []string{"loggroup"}, r.ExplicitDependsOn())
}

func TestNewResource_SelfReferenceIgnored(t *testing.T) {
	r := NewResource("a", "Test::Kind", nil, "a", "")
	assert.Empty(t, r.DependsOn())
	assert.Empty(t, r.ExplicitDependsOn())
}

func TestValue_References(t *testing.T) {
	v := List(
		String("plain"),
		Ref(RefTo("a")),
		Map(map[string]Value{"nested": Ref(AttOf("b", "Arn"))}),
	)

	refs := v.References()
	require.Len(t, refs, 2)
	assert.Contains(t, refs, RefTo("a"))
	assert.Contains(t, refs, AttOf("b", "Arn"))
}

func indexOf(slice []string, item string) int {
	for i, s := range slice {
		if s == item {
			return i
		}
	}
	return -1
}
