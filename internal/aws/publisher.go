package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// maxMessageAttributes is the SQS per-message attribute limit.
const maxMessageAttributes = 10

// Publisher sends ticket lifecycle events to the events queue consumed by the
// metrics worker. Routing fields (event type, ticket id, event id, request id)
// travel as String message attributes next to the JSON body.
type Publisher struct {
	client   SQSAPI
	queueURL string
}

// NewPublisher binds client to the ticket events queue.
func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

// SendMessage enqueues one event body. Attributes with empty values are left
// off so optional fields such as requestId do not appear blank.
func (p *Publisher) SendMessage(ctx context.Context, body string, attributes map[string]string) error {
	attrs := make(map[string]sqstypes.MessageAttributeValue, len(attributes))
	for name, value := range attributes {
		if value == "" {
			continue
		}
		attrs[name] = sqstypes.MessageAttributeValue{
			DataType:    sdkaws.String("String"),
			StringValue: sdkaws.String(value),
		}
	}
	if len(attrs) > maxMessageAttributes {
		return fmt.Errorf("send message: %d attributes exceed the limit of %d", len(attrs), maxMessageAttributes)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(p.queueURL),
		MessageBody: sdkaws.String(body),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = attrs
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message to %s: %w", p.queueURL, err)
	}
	return nil
}
