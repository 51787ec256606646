package sns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/synth"
	"github.com/mason-iac/mason/resources/sqs"
)

func TestSubscribeQueue(t *testing.T) {
	sb := core.NewStackBuilder()
	topic, err := NewTopic("events").Build(sb)
	require.NoError(t, err)
	queue, err := sqs.NewQueue("inbox").Standard().Build(sb)
	require.NoError(t, err)

	require.NoError(t, SubscribeQueue(sb, "events-to-inbox", topic, queue))

	stack, err := sb.Build(context.Background())
	require.NoError(t, err)

	// The subscription depends on both ends and deploys last.
	deps := stack.Dependencies("events-to-inbox")
	assert.ElementsMatch(t, []string{"events", "inbox"}, deps)

	res := synth.Synth(stack).Resources["events-to-inbox"]
	assert.Equal(t, SubscriptionKind, res.Type)
	assert.Equal(t, "sqs", res.Properties["Protocol"])
	assert.Equal(t, map[string]any{"Ref": "events"}, res.Properties["TopicArn"])
	assert.Equal(t, map[string]any{"Fn::GetAtt": []any{"inbox", "Arn"}}, res.Properties["Endpoint"])
}

func TestNewTopic_Fifo(t *testing.T) {
	sb := core.NewStackBuilder()
	_, err := NewTopic("events").Fifo().TopicName("events-topic").Build(sb)
	require.NoError(t, err)

	stack, err := sb.Build(context.Background())
	require.NoError(t, err)

	res := synth.Synth(stack).Resources["events"]
	assert.Equal(t, true, res.Properties["FifoTopic"])
	assert.Equal(t, "events-topic", res.Properties["TopicName"])
}
