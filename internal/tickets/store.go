package tickets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/aws"
)

// Store sentinels. Callers translate them; raw AWS errors stay wrapped behind them.
var (
	ErrNotFound        = errors.New("item not found")
	ErrAlreadyExists   = errors.New("item already exists")
	ErrConditionFailed = errors.New("conditional check failed")
)

// DynamoDB cancellation reason codes that mean "the guarded state changed".
const (
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonTransactionConflict    = "TransactionConflict"
)

// Key is a single-table primary key.
type Key struct {
	PK string
	SK string
}

func (k Key) attributeValues() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrPK: &types.AttributeValueMemberS{Value: k.PK},
		AttrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

// Query selects every item of one partition, of the table or of an index.
type Query struct {
	Index          string // empty for the base table
	PartitionAttr  string
	PartitionValue string
	SortAttr       string
	SortPrefix     string // optional begins_with filter on SortAttr
	Descending     bool
}

// ConditionalUpdate sets attributes on one item if ExpectAttr still holds Expected.
type ConditionalUpdate struct {
	Key        Key
	Set        map[string]any
	ExpectAttr string
	Expected   any
}

// Store is the single-table persistence layer over DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a Store bound to tableName.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}

// PutIfAbsent writes every item atomically, each guarded by
// attribute_not_exists(PK). If any key already exists nothing is written and
// ErrAlreadyExists is returned.
func (s *Store) PutIfAbsent(ctx context.Context, items ...any) error {
	if len(items) == 0 {
		return nil
	}
	maps := make([]map[string]types.AttributeValue, 0, len(items))
	for _, it := range items {
		m, err := attributevalue.MarshalMap(it)
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		maps = append(maps, m)
	}

	cond := awsString("attribute_not_exists(" + AttrPK + ")")

	if len(maps) == 1 {
		_, err := s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:           &s.tableName,
			Item:                maps[0],
			ConditionExpression: cond,
		})
		if err != nil {
			var ae smithy.APIError
			if errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException" {
				return fmt.Errorf("%w: %w", ErrAlreadyExists, err)
			}
			return fmt.Errorf("put item: %w", err)
		}
		return nil
	}

	transactItems := make([]types.TransactWriteItem, 0, len(maps))
	for _, m := range maps {
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                m,
				ConditionExpression: cond,
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return classifyTransactError(err, ErrAlreadyExists)
	}
	return nil
}

// GetByKey reads one item with a strongly consistent read and unmarshals it
// into out. Returns ErrNotFound if the item does not exist.
func (s *Store) GetByKey(ctx context.Context, key Key, out any) error {
	res, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key.attributeValues(),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if len(res.Item) == 0 {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal item: %w", err)
	}
	return nil
}

// QueryByPartition returns every item of the partition, following
// LastEvaluatedKey until the result set is exhausted. out must be a pointer
// to a slice.
func (s *Store) QueryByPartition(ctx context.Context, q Query, out any) error {
	names := map[string]string{"#pk": q.PartitionAttr}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.PartitionValue},
	}
	keyCond := "#pk = :pk"
	if q.SortPrefix != "" {
		names["#sk"] = q.SortAttr
		values[":skPrefix"] = &types.AttributeValueMemberS{Value: q.SortPrefix}
		keyCond += " AND begins_with(#sk, :skPrefix)"
	}

	input := &dyn.QueryInput{
		TableName:                 &s.tableName,
		KeyConditionExpression:    &keyCond,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          sdkaws.Bool(!q.Descending),
	}
	if q.Index != "" {
		input.IndexName = &q.Index
	}

	var items []map[string]types.AttributeValue
	for {
		res, err := s.client.Query(ctx, input)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		items = append(items, res.Items...)
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = res.LastEvaluatedKey
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("unmarshal items: %w", err)
	}
	return nil
}

// UpdateIfMatches applies every update atomically. If any item no longer
// matches its expectation nothing is written and ErrConditionFailed is
// returned.
func (s *Store) UpdateIfMatches(ctx context.Context, updates ...ConditionalUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	if len(updates) == 1 {
		expr, err := buildUpdate(updates[0])
		if err != nil {
			return err
		}
		_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
			TableName:                 &s.tableName,
			Key:                       updates[0].Key.attributeValues(),
			UpdateExpression:          &expr.update,
			ConditionExpression:       &expr.condition,
			ExpressionAttributeNames:  expr.names,
			ExpressionAttributeValues: expr.values,
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			var conflict *types.TransactionConflictException
			if errors.As(err, &ccf) || errors.As(err, &conflict) {
				return fmt.Errorf("%w: %w", ErrConditionFailed, err)
			}
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	}

	transactItems := make([]types.TransactWriteItem, 0, len(updates))
	for _, u := range updates {
		expr, err := buildUpdate(u)
		if err != nil {
			return err
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 &s.tableName,
				Key:                       u.Key.attributeValues(),
				UpdateExpression:          &expr.update,
				ConditionExpression:       &expr.condition,
				ExpressionAttributeNames:  expr.names,
				ExpressionAttributeValues: expr.values,
			},
		})
	}

	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	if err != nil {
		return classifyTransactError(err, ErrConditionFailed)
	}
	return nil
}

type updateExpr struct {
	update    string
	condition string
	names     map[string]string
	values    map[string]types.AttributeValue
}

// buildUpdate renders "SET #f0 = :v0, ..." guarded by
// "attribute_exists(PK) AND #c = :expected". Attributes are emitted in name
// order so requests are deterministic.
func buildUpdate(u ConditionalUpdate) (updateExpr, error) {
	if len(u.Set) == 0 {
		return updateExpr{}, errors.New("conditional update has nothing to set")
	}
	attrs := make([]string, 0, len(u.Set))
	for name := range u.Set {
		attrs = append(attrs, name)
	}
	sort.Strings(attrs)

	expr := updateExpr{
		names:  map[string]string{"#c": u.ExpectAttr},
		values: map[string]types.AttributeValue{},
	}
	update := "SET "
	for i, name := range attrs {
		av, err := attributevalue.Marshal(u.Set[name])
		if err != nil {
			return updateExpr{}, fmt.Errorf("marshal %s: %w", name, err)
		}
		n, v := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		expr.names[n] = name
		expr.values[v] = av
		if i > 0 {
			update += ", "
		}
		update += n + " = " + v
	}

	expected, err := attributevalue.Marshal(u.Expected)
	if err != nil {
		return updateExpr{}, fmt.Errorf("marshal expected %s: %w", u.ExpectAttr, err)
	}
	expr.values[":expected"] = expected
	expr.update = update
	expr.condition = "attribute_exists(" + AttrPK + ") AND #c = :expected"
	return expr, nil
}

// classifyTransactError maps a cancelled transaction whose reasons are
// condition failures or conflicts onto sentinel.
func classifyTransactError(err error, sentinel error) error {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		if len(tce.CancellationReasons) == 0 {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		for _, r := range tce.CancellationReasons {
			switch sdkaws.ToString(r.Code) {
			case reasonConditionalCheckFailed, reasonTransactionConflict:
				return fmt.Errorf("%w: %w", sentinel, err)
			}
		}
		return fmt.Errorf("transaction canceled: %w", err)
	}
	return fmt.Errorf("transact write: %w", err)
}

func awsString(s string) *string { return &s }
