package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/checkout-service/models"
	"github.com/yashrajoria/checkout-service/repository"
)

// fakeDynamo keeps one item per id and evaluates only the conditions the
// repository issues.
type fakeDynamo struct {
	items     map[string]map[string]types.AttributeValue
	updateErr error
	lastQuery *dynamodb.QueryInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func idOf(key map[string]types.AttributeValue) string {
	return key["id"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := idOf(in.Item)
	if _, ok := f.items[id]; ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[idOf(in.Key)]}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	attr := in.ExpressionAttributeNames["#k"]
	want := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberS).Value
	var out []map[string]types.AttributeValue
	for _, item := range f.items {
		if v, ok := item[attr].(*types.AttributeValueMemberS); ok && v.Value == want {
			out = append(out, item)
		}
	}
	return &dynamodb.QueryOutput{Items: out}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	item, ok := f.items[idOf(in.Key)]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	field := in.ExpressionAttributeNames["#f"]
	if from, ok := in.ExpressionAttributeValues[":from"]; ok {
		cur, _ := item[field].(*types.AttributeValueMemberS)
		if cur == nil || cur.Value != from.(*types.AttributeValueMemberS).Value {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	item[field] = in.ExpressionAttributeValues[":v"]
	item["updatedAt"] = in.ExpressionAttributeValues[":now"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func TestDynamoRepo_CreateFindAndTransition(t *testing.T) {
	fake := newFakeDynamo()
	repo := repository.NewDynamoOrderRepository(fake, "orders")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, pendingOrder("o-1", "user-1", time.Now().UTC())))
	assert.ErrorIs(t, repo.Create(ctx, pendingOrder("o-1", "user-1", time.Now().UTC())), repository.ErrStorageUnavailable)

	got, err := repo.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	require.NoError(t, repo.TransitionStatus(ctx, "o-1", models.OrderStatusPending, models.OrderStatusCancelled))
	err = repo.TransitionStatus(ctx, "o-1", models.OrderStatusPending, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, repository.ErrStatusConflict)

	err = repo.TransitionStatus(ctx, "missing", models.OrderStatusPending, models.OrderStatusCompleted)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	var stored models.Order
	require.NoError(t, attributevalue.UnmarshalMap(fake.items["o-1"], &stored))
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
}

func TestDynamoRepo_FindByUserID_UsesIndexNewestFirst(t *testing.T) {
	fake := newFakeDynamo()
	repo := repository.NewDynamoOrderRepository(fake, "orders")
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, pendingOrder("a", "user-1", base)))
	require.NoError(t, repo.Create(ctx, pendingOrder("b", "user-1", base.Add(time.Hour))))

	orders, err := repo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "b", orders[0].ID)
	assert.Equal(t, "userId-index", *fake.lastQuery.IndexName)

	none, err := repo.FindByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
}

func TestDynamoRepo_SessionLookupAndUpdateFailure(t *testing.T) {
	fake := newFakeDynamo()
	repo := repository.NewDynamoOrderRepository(fake, "orders")
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, pendingOrder("o-1", "user-1", time.Now().UTC())))

	require.NoError(t, repo.SetSessionID(ctx, "o-1", "cs_1"))
	got, err := repo.FindBySessionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.ID)

	fake.updateErr = errors.New("throttled")
	err = repo.UpdateStatus(ctx, "o-1", models.OrderStatusCompleted)
	assert.ErrorIs(t, err, repository.ErrStorageUnavailable)
}
