// Command mason-demo is an example application: an order-processing stack
// with a table, a queue pair, a topic and a worker function, driven by the
// standard command shell (synth, diff, deploy, destroy).
package main

import (
	"os"

	"github.com/mason-iac/mason/internal/cli"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/resources/cloudwatch"
	"github.com/mason-iac/mason/resources/dynamodb"
	"github.com/mason-iac/mason/resources/iam"
	"github.com/mason-iac/mason/resources/lambda"
	"github.com/mason-iac/mason/resources/s3"
	"github.com/mason-iac/mason/resources/secretsmanager"
	"github.com/mason-iac/mason/resources/sns"
	"github.com/mason-iac/mason/resources/sqs"
)

func main() {
	os.Exit(cli.Execute(cli.App{
		StackName: "orders-demo",
		Define:    defineStack,
	}))
}

func defineStack(sb *core.StackBuilder) error {
	sb.AddTag("Environment", "demo").AddTag("Owner", "platform")

	orders, err := dynamodb.NewTable("orders-table", dynamodb.Key{Name: "order_id", Type: dynamodb.AttributeString}).
		SortKey(dynamodb.Key{Name: "created_at", Type: dynamodb.AttributeNumber}).
		PayPerRequestBilling().
		PointInTimeRecovery().
		Build(sb)
	if err != nil {
		return err
	}

	dlq, err := sqs.NewQueue("orders-dlq").Standard().
		MessageRetentionPeriod(1209600).
		Build(sb)
	if err != nil {
		return err
	}

	queue, err := sqs.NewQueue("orders-queue").Standard().
		VisibilityTimeout(120).
		DeadLetterQueue(dlq, 5).
		Build(sb)
	if err != nil {
		return err
	}

	topic, err := sns.NewTopic("order-events").Build(sb)
	if err != nil {
		return err
	}
	if err := sns.SubscribeQueue(sb, "order-events-to-queue", topic, queue); err != nil {
		return err
	}

	role, err := iam.NewRole("worker-role", "lambda.amazonaws.com").
		ManagedPolicy("arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole").
		Allow(iam.Statement{
			Actions:   []string{"dynamodb:GetItem", "dynamodb:PutItem", "dynamodb:Query"},
			Resources: []core.Value{orders.Arn()},
		}).
		Allow(iam.Statement{
			Actions:   []string{"sqs:ReceiveMessage", "sqs:DeleteMessage", "sqs:GetQueueAttributes"},
			Resources: []core.Value{queue.Arn()},
		}).
		Build(sb)
	if err != nil {
		return err
	}

	if _, err := s3.NewBucket("order-archive").
		Versioned().
		TransitionAfter(s3.StorageGlacier, 90).
		Build(sb); err != nil {
		return err
	}

	apiKey, err := secretsmanager.NewSecret("payment-api-key").
		Description("Payment gateway API key for the orders worker").
		GeneratePassword(32).
		Build(sb)
	if err != nil {
		return err
	}

	if _, err := cloudwatch.NewLogGroup("worker-logs").
		LogGroupName("/aws/lambda/orders-worker").
		RetentionDays(30).
		Build(sb); err != nil {
		return err
	}

	_, err = lambda.NewFunction("orders-worker", "provided.al2023", "bootstrap").
		FunctionName("orders-worker").
		Role(role).
		InlineCode("#!/bin/sh\necho noop\n").
		MemorySize(256).
		Timeout(60).
		EnvValue("TABLE_NAME", orders.Ref()).
		EnvValue("QUEUE_URL", queue.Ref()).
		EnvValue("PAYMENT_API_KEY_ARN", apiKey.Ref()).
		Build(sb)
	return err
}
