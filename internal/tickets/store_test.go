package tickets

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/testutil/dynamofake"
)

const testTable = "helpdesk"

func newFake(opts ...dynamofake.Option) *dynamofake.Client {
	return dynamofake.New(append([]dynamofake.Option{dynamofake.WithIndex(DefaultStatusIndex, AttrGSI1PK, AttrGSI1SK)}, opts...)...)
}

func TestStore_PutIfAbsent_Transaction(t *testing.T) {
	mock := newFake()
	store := NewStore(mock, testTable)
	ctx := context.Background()

	rec := NewRecord("t-1", "owner-1", "Printer broken", "It wont turn on", "2026-01-01T10:00:00.000Z")
	require.NoError(t, store.PutIfAbsent(ctx, rec, OwnerEntryFor(rec)))
	assert.Equal(t, 2, mock.Len(testTable))
	assert.Equal(t, 1, mock.Calls("TransactWriteItems"))

	// a second ticket reusing the id must not land either item
	dup := NewRecord("t-1", "owner-2", "Other", "Other ticket", "2026-01-02T10:00:00.000Z")
	err := store.PutIfAbsent(ctx, dup, OwnerEntryFor(dup))
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 2, mock.Len(testTable))
	assert.Nil(t, mock.Get(testTable, OwnerPartition("owner-2"), OwnerKey("owner-2", dup.CreatedAt, "t-1").SK))
}

func TestStore_PutIfAbsent_Single(t *testing.T) {
	mock := newFake()
	store := NewStore(mock, testTable)
	ctx := context.Background()

	rec := NewRecord("t-1", "owner-1", "Title", "Description", "2026-01-01T10:00:00.000Z")
	require.NoError(t, store.PutIfAbsent(ctx, rec))
	require.ErrorIs(t, store.PutIfAbsent(ctx, rec), ErrAlreadyExists)
	assert.Equal(t, 2, mock.Calls("PutItem"))
}

func TestStore_GetByKey(t *testing.T) {
	mock := newFake()
	store := NewStore(mock, testTable)
	ctx := context.Background()

	var rec Record
	require.ErrorIs(t, store.GetByKey(ctx, TicketKey("missing"), &rec), ErrNotFound)

	seed := NewRecord("t-1", "owner-1", "Title", "Description", "2026-01-01T10:00:00.000Z")
	require.NoError(t, store.PutIfAbsent(ctx, seed))
	require.NoError(t, store.GetByKey(ctx, TicketKey("t-1"), &rec))
	assert.Equal(t, seed, rec)

	boom := errors.New("network down")
	mock.FailNext("GetItem", boom)
	err := store.GetByKey(ctx, TicketKey("t-1"), &rec)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_QueryByPartition_FollowsPages(t *testing.T) {
	mock := newFake(dynamofake.WithPageSize(2))
	store := NewStore(mock, testTable)
	ctx := context.Background()

	times := []string{
		"2026-01-01T10:00:00.000Z",
		"2026-01-01T11:00:00.000Z",
		"2026-01-01T12:00:00.000Z",
		"2026-01-01T13:00:00.000Z",
		"2026-01-01T14:00:00.000Z",
	}
	for i, ts := range times {
		rec := NewRecord(string(rune('a'+i)), "owner-1", "Title", "Description", ts)
		require.NoError(t, store.PutIfAbsent(ctx, rec, OwnerEntryFor(rec)))
	}

	var entries []OwnerEntry
	err := store.QueryByPartition(ctx, Query{
		PartitionAttr:  AttrPK,
		PartitionValue: OwnerPartition("owner-1"),
		SortAttr:       AttrSK,
		SortPrefix:     ticketPrefix,
		Descending:     true,
	}, &entries)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "e", entries[0].TicketID)
	assert.Equal(t, "a", entries[4].TicketID)
	assert.Equal(t, 3, mock.Calls("Query"))

	var asc []Record
	err = store.QueryByPartition(ctx, Query{
		Index:          DefaultStatusIndex,
		PartitionAttr:  AttrGSI1PK,
		PartitionValue: StatusPartition(StatusOpen),
		SortAttr:       AttrGSI1SK,
	}, &asc)
	require.NoError(t, err)
	require.Len(t, asc, 5)
	assert.Equal(t, "a", asc[0].TicketID)
}

func TestStore_UpdateIfMatches(t *testing.T) {
	mock := newFake()
	store := NewStore(mock, testTable)
	ctx := context.Background()

	rec := NewRecord("t-1", "owner-1", "Title", "Description", "2026-01-01T10:00:00.000Z")
	require.NoError(t, store.PutIfAbsent(ctx, rec, OwnerEntryFor(rec)))

	ownerKey := OwnerKey("owner-1", rec.CreatedAt, "t-1")
	move := func(from, to Status) error {
		return store.UpdateIfMatches(ctx,
			ConditionalUpdate{Key: TicketKey("t-1"), Set: map[string]any{AttrStatus: to}, ExpectAttr: AttrStatus, Expected: from},
			ConditionalUpdate{Key: ownerKey, Set: map[string]any{AttrStatus: to}, ExpectAttr: AttrStatus, Expected: from},
		)
	}

	require.NoError(t, move(StatusOpen, StatusInProgress))
	err := move(StatusOpen, StatusInProgress)
	require.ErrorIs(t, err, ErrConditionFailed)

	var got Record
	require.NoError(t, store.GetByKey(ctx, TicketKey("t-1"), &got))
	assert.Equal(t, StatusInProgress, got.Status)

	// single update path uses UpdateItem
	err = store.UpdateIfMatches(ctx, ConditionalUpdate{Key: TicketKey("t-1"), Set: map[string]any{"title": "New"}, ExpectAttr: AttrStatus, Expected: StatusOpen})
	require.ErrorIs(t, err, ErrConditionFailed)
	assert.Equal(t, 1, mock.Calls("UpdateItem"))

	// the condition requires the item to exist, so no upsert happens
	err = store.UpdateIfMatches(ctx, ConditionalUpdate{Key: TicketKey("ghost"), Set: map[string]any{AttrStatus: StatusResolved}, ExpectAttr: AttrStatus, Expected: StatusInProgress})
	require.ErrorIs(t, err, ErrConditionFailed)
	assert.Nil(t, mock.Get(testTable, TicketKey("ghost").PK, TicketKey("ghost").SK))
}

func TestStore_UpdateIfMatches_RequiresFields(t *testing.T) {
	store := NewStore(newFake(), testTable)
	err := store.UpdateIfMatches(context.Background(), ConditionalUpdate{Key: TicketKey("t-1"), ExpectAttr: AttrStatus, Expected: StatusOpen})
	require.Error(t, err)
}

func TestClassifyTransactError(t *testing.T) {
	reasons := func(codes ...string) []types.CancellationReason {
		out := make([]types.CancellationReason, 0, len(codes))
		for _, c := range codes {
			out = append(out, types.CancellationReason{Code: sdkaws.String(c)})
		}
		return out
	}

	tests := []struct {
		name         string
		err          error
		wantSentinel bool
	}{
		{"condition failed", &types.TransactionCanceledException{CancellationReasons: reasons("None", "ConditionalCheckFailed")}, true},
		{"transaction conflict", &types.TransactionCanceledException{CancellationReasons: reasons("TransactionConflict", "None")}, true},
		{"no reasons", &types.TransactionCanceledException{}, true},
		{"throttled", &types.TransactionCanceledException{CancellationReasons: reasons("ThrottlingError", "None")}, false},
		{"other error", errors.New("connection reset"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyTransactError(tc.err, ErrConditionFailed)
			assert.Equal(t, tc.wantSentinel, errors.Is(err, ErrConditionFailed))
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
