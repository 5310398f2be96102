// Package idempotency keeps lifecycle event consumption at-most-once per
// event id on top of an at-least-once queue.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/aws"
)

const timeLayout = "2006-01-02T15:04:05.000Z"

// Store encapsulates processed-event markers in DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // how long DONE markers are kept
	lease     time.Duration // how long an IN_PROGRESS claim blocks other consumers
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow, lease time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		lease:     lease,
		nowFunc:   time.Now,
	}
}

func markerKey(eventID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: keyPrefix + eventID},
		"SK": &types.AttributeValueMemberS{Value: markerSK},
	}
}

// Claim takes ownership of eventID. It returns (true, nil) if the caller
// should process the event, and (false, nil) if the event is already done or
// another consumer holds a live claim. Failed and expired claims can be taken
// over.
func (s *Store) Claim(ctx context.Context, eventID, ticketID string) (bool, error) {
	now := s.nowFunc().UTC()
	rec := Record{
		PK:         keyPrefix + eventID,
		SK:         markerSK,
		EntityType: entityType,
		EventID:    eventID,
		TicketID:   ticketID,
		Status:     StatusInProgress,
		CreatedAt:  now.Format(timeLayout),
		UpdatedAt:  now.Format(timeLayout),
		LeaseUntil: now.Add(s.lease).Unix(),
		ExpiresAt:  now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: sdkaws.String("attribute_not_exists(PK) OR #s = :failed OR #s = :inProgress AND #lease < :now"),
		ExpressionAttributeNames: map[string]string{
			"#s":     "status",
			"#lease": "leaseUntil",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":     &types.AttributeValueMemberS{Value: StatusFailed},
			":inProgress": &types.AttributeValueMemberS{Value: StatusInProgress},
			":now":        &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException" {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves the marker for eventID. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, eventID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            markerKey(eventID),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

// MarkDone records that eventID was fully processed.
func (s *Store) MarkDone(ctx context.Context, eventID string) error {
	return s.setStatus(ctx, eventID, StatusDone, "")
}

// MarkFailed releases the claim so a redelivery can retry; note is kept for
// operators.
func (s *Store) MarkFailed(ctx context.Context, eventID, note string) error {
	return s.setStatus(ctx, eventID, StatusFailed, note)
}

func (s *Store) setStatus(ctx context.Context, eventID, status, note string) error {
	now := s.nowFunc().UTC()
	update := "SET #s = :st, updatedAt = :ua"
	values := map[string]types.AttributeValue{
		":st": &types.AttributeValueMemberS{Value: status},
		":ua": &types.AttributeValueMemberS{Value: now.Format(timeLayout)},
	}
	if note != "" {
		update += ", note = :n"
		values[":n"] = &types.AttributeValueMemberS{Value: note}
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       markerKey(eventID),
		UpdateExpression:          &update,
		ConditionExpression:       sdkaws.String("attribute_exists(PK)"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return fmt.Errorf("update item (mark %s): %w", status, err)
	}
	return nil
}
