package aws

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// AWSClients bundles all service clients for convenience.
type AWSClients struct {
	DynamoDB   DynamoDBAPI
	SQS        SQSAPI
	CloudWatch CloudWatchAPI
}

// NewAWSClients loads AWS config and returns concrete service clients that implement our interfaces.
func NewAWSClients(ctx context.Context, opts Options) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &AWSClients{
		DynamoDB:   dynamodb.NewFromConfig(cfg),
		SQS:        sqs.NewFromConfig(cfg),
		CloudWatch: cloudwatch.NewFromConfig(cfg),
	}, nil
}

var (
	sharedOnce    sync.Once
	sharedClients *AWSClients
	sharedErr     error
)

// SharedClients returns the process-wide client bundle, building it on first
// use. Warm Lambda invocations reuse the same clients and connection pools.
// Options passed after the first call are ignored.
func SharedClients(ctx context.Context, opts Options) (*AWSClients, error) {
	sharedOnce.Do(func() {
		sharedClients, sharedErr = NewAWSClients(ctx, opts)
	})
	return sharedClients, sharedErr
}
