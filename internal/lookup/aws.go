package lookup

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// AWSVerifier checks resource existence against live AWS accounts, one
// service client per supported kind.
type AWSVerifier struct {
	dynamodb       *dynamodb.Client
	sqs            *sqs.Client
	sns            *sns.Client
	s3             *s3.Client
	iam            *iam.Client
	lambda         *lambda.Client
	logs           *cloudwatchlogs.Client
	secretsmanager *secretsmanager.Client
}

// NewAWSVerifier builds a verifier over an AWS config.
func NewAWSVerifier(cfg aws.Config) *AWSVerifier {
	return &AWSVerifier{
		dynamodb:       dynamodb.NewFromConfig(cfg),
		sqs:            sqs.NewFromConfig(cfg),
		sns:            sns.NewFromConfig(cfg),
		s3:             s3.NewFromConfig(cfg),
		iam:            iam.NewFromConfig(cfg),
		lambda:         lambda.NewFromConfig(cfg),
		logs:           cloudwatchlogs.NewFromConfig(cfg),
		secretsmanager: secretsmanager.NewFromConfig(cfg),
	}
}

// VerifyExists dispatches an existence check per kind. Kinds without a
// local check report Unknown, never an error.
func (v *AWSVerifier) VerifyExists(ctx context.Context, kind, identifier string) (Result, error) {
	switch kind {
	case "AWS::DynamoDB::Table":
		_, err := v.dynamodb.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(identifier)})
		return classify(err, &ddbtypes.ResourceNotFoundException{})
	case "AWS::SQS::Queue":
		_, err := v.sqs.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(identifier)})
		return classify(err, &sqstypes.QueueDoesNotExist{})
	case "AWS::SNS::Topic":
		_, err := v.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(identifier)})
		return classify(err, &snstypes.NotFoundException{})
	case "AWS::S3::Bucket":
		_, err := v.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(identifier)})
		return classify(err, &s3types.NotFound{})
	case "AWS::IAM::Role":
		_, err := v.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(identifier)})
		return classify(err, &iamtypes.NoSuchEntityException{})
	case "AWS::Lambda::Function":
		_, err := v.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(identifier)})
		return classify(err, &lambdatypes.ResourceNotFoundException{})
	case "AWS::SecretsManager::Secret":
		_, err := v.secretsmanager.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(identifier)})
		return classify(err, &smtypes.ResourceNotFoundException{})
	case "AWS::Logs::LogGroup":
		return v.verifyLogGroup(ctx, identifier)
	default:
		return Unknown, nil
	}
}

// verifyLogGroup has no point lookup; the prefix listing is filtered for an
// exact name match.
func (v *AWSVerifier) verifyLogGroup(ctx context.Context, name string) (Result, error) {
	out, err := v.logs.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: aws.String(name),
	})
	if err != nil {
		return Unknown, err
	}
	for _, g := range out.LogGroups {
		if g.LogGroupName != nil && *g.LogGroupName == name {
			return Exists, nil
		}
	}
	return Missing, nil
}

// classify turns a service call error into a Result: nil means it exists,
// the service's not-found type means missing, anything else is unknown.
func classify[T error](err error, notFound T) (Result, error) {
	if err == nil {
		return Exists, nil
	}
	if errors.As(err, &notFound) {
		return Missing, nil
	}
	return Unknown, err
}
