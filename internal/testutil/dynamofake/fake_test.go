package dynamofake

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func TestTransactWriteItems_AllOrNothing(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Seed("t", Item{"PK": s("A"), "SK": s("1")}))

	_, err := c.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: sdkaws.String("t"), Item: Item{"PK": s("B"), "SK": s("1")}, ConditionExpression: sdkaws.String("attribute_not_exists(PK)")}},
			{Put: &types.Put{TableName: sdkaws.String("t"), Item: Item{"PK": s("A"), "SK": s("1")}, ConditionExpression: sdkaws.String("attribute_not_exists(PK)")}},
		},
	})

	var tce *types.TransactionCanceledException
	require.True(t, errors.As(err, &tce))
	require.Len(t, tce.CancellationReasons, 2)
	assert.Equal(t, "None", *tce.CancellationReasons[0].Code)
	assert.Equal(t, "ConditionalCheckFailed", *tce.CancellationReasons[1].Code)
	assert.Nil(t, c.Get("t", "B", "1"), "no write lands when any condition fails")
}

func TestUpdateItem_Condition(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Seed("t", Item{"PK": s("A"), "SK": s("1"), "status": s("OPEN")}))

	in := &dyn.UpdateItemInput{
		TableName:                 sdkaws.String("t"),
		Key:                       Item{"PK": s("A"), "SK": s("1")},
		UpdateExpression:          sdkaws.String("SET #s = :new"),
		ConditionExpression:       sdkaws.String("attribute_exists(PK) AND #s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":new": s("IN_PROGRESS"), ":expected": s("OPEN")},
	}
	_, err := c.UpdateItem(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, s("IN_PROGRESS"), c.Get("t", "A", "1")["status"])

	_, err = c.UpdateItem(ctx, in)
	var ccf *types.ConditionalCheckFailedException
	require.ErrorAs(t, err, &ccf)
}

func TestQuery_PagesAndIndex(t *testing.T) {
	c := New(WithIndex("GSI1", "GSI1PK", "GSI1SK"), WithPageSize(2))
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, c.Seed("t", Item{"PK": s("T#" + id), "SK": s("META"), "GSI1PK": s("STATUS#OPEN"), "GSI1SK": s("C#" + id)}))
	}
	require.NoError(t, c.Seed("t", Item{"PK": s("T#9"), "SK": s("META")}))

	var got []string
	var start map[string]types.AttributeValue
	pages := 0
	for {
		out, err := c.Query(ctx, &dyn.QueryInput{
			TableName:                 sdkaws.String("t"),
			IndexName:                 sdkaws.String("GSI1"),
			KeyConditionExpression:    sdkaws.String("#pk = :pk"),
			ExpressionAttributeNames:  map[string]string{"#pk": "GSI1PK"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":pk": s("STATUS#OPEN")},
			ScanIndexForward:          sdkaws.Bool(false),
			ExclusiveStartKey:         start,
		})
		require.NoError(t, err)
		pages++
		for _, it := range out.Items {
			got = append(got, it["GSI1SK"].(*types.AttributeValueMemberS).Value)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		start = out.LastEvaluatedKey
	}

	assert.Equal(t, []string{"C#5", "C#4", "C#3", "C#2", "C#1"}, got)
	assert.Equal(t, 3, pages)
}

func TestFailNext(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	c.FailNext("GetItem", boom)

	_, err := c.GetItem(context.Background(), &dyn.GetItemInput{TableName: sdkaws.String("t"), Key: Item{"PK": s("A"), "SK": s("1")}})
	require.ErrorIs(t, err, boom)

	out, err := c.GetItem(context.Background(), &dyn.GetItemInput{TableName: sdkaws.String("t"), Key: Item{"PK": s("A"), "SK": s("1")}})
	require.NoError(t, err)
	assert.Empty(t, out.Item)
	assert.Equal(t, 2, c.Calls("GetItem"))
}

func TestPutItem_OrAndLessThan(t *testing.T) {
	c := New()
	ctx := context.Background()
	n := func(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }
	require.NoError(t, c.Seed("t", Item{"PK": s("E"), "SK": s("1"), "state": s("CLAIMED"), "leaseUntil": n("100")}))

	put := func(now string) error {
		_, err := c.PutItem(ctx, &dyn.PutItemInput{
			TableName:                 sdkaws.String("t"),
			Item:                      Item{"PK": s("E"), "SK": s("1"), "state": s("CLAIMED"), "leaseUntil": n("200")},
			ConditionExpression:       sdkaws.String("attribute_not_exists(PK) OR #st = :failed OR #lu < :now"),
			ExpressionAttributeNames:  map[string]string{"#st": "state", "#lu": "leaseUntil"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":failed": s("FAILED"), ":now": n(now)},
		})
		return err
	}

	var ccf *types.ConditionalCheckFailedException
	require.ErrorAs(t, put("99"), &ccf, "lease still held")
	require.NoError(t, put("101"), "lease expired")
	assert.Equal(t, n("200"), c.Get("t", "E", "1")["leaseUntil"])
}
