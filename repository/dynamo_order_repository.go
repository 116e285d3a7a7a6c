package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/yashrajoria/checkout-service/models"
)

const (
	userIndexName    = "userId-index"
	sessionIndexName = "stripeSessionId-index"
)

// DynamoAPI is the subset of the DynamoDB client used by the repository.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoOrderRepository implements OrderRepository using DynamoDB. The table
// is keyed by id with global secondary indexes on userId and stripeSessionId.
type DynamoOrderRepository struct {
	client DynamoAPI
	table  string
}

// NewDynamoOrderRepository creates a new DynamoDB backed order repository
func NewDynamoOrderRepository(client DynamoAPI, table string) *DynamoOrderRepository {
	return &DynamoOrderRepository{client: client, table: table}
}

func (r *DynamoOrderRepository) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (r *DynamoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &r.table,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return unavailable("dynamodb PutItem", err)
	}
	return nil
}

func (r *DynamoOrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &r.table,
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("dynamodb GetItem", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var order models.Order
	if err := attributevalue.UnmarshalMap(out.Item, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &order, nil
}

func (r *DynamoOrderRepository) query(ctx context.Context, index, attr, value string) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	input := &dynamodb.QueryInput{
		TableName:                &r.table,
		IndexName:                aws.String(index),
		KeyConditionExpression:   aws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, unavailable("dynamodb Query", err)
		}
		var page []models.Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		orders = append(orders, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return orders, nil
}

func (r *DynamoOrderRepository) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	orders, err := r.query(ctx, userIndexName, "userId", userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (r *DynamoOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	orders, err := r.query(ctx, sessionIndexName, "stripeSessionId", sessionID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return &orders[0], nil
}

func (r *DynamoOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	return r.set(ctx, id, "status", string(status), "", nil)
}

func (r *DynamoOrderRepository) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	fromAV := &types.AttributeValueMemberS{Value: string(from)}
	err := r.set(ctx, id, "status", string(to), "#f = :from", fromAV)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return findErr
	}
	return ErrStatusConflict
}

func (r *DynamoOrderRepository) SetSessionID(ctx context.Context, id, sessionID string) error {
	return r.set(ctx, id, "stripeSessionId", sessionID, "", nil)
}

// set writes one attribute plus updatedAt. The item must exist, and when
// cond is given it must hold as well; otherwise ErrNotFound is returned.
func (r *DynamoOrderRepository) set(ctx context.Context, id, field, value, cond string, condValue types.AttributeValue) error {
	condition := "attribute_exists(id)"
	if cond != "" {
		condition += " AND " + cond
	}
	values := map[string]types.AttributeValue{
		":v":   &types.AttributeValueMemberS{Value: value},
		":now": &types.AttributeValueMemberS{Value: now().Format(time.RFC3339Nano)},
	}
	if condValue != nil {
		values[":from"] = condValue
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.table,
		Key:                       r.key(id),
		UpdateExpression:          aws.String("SET #f = :v, updatedAt = :now"),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  map[string]string{"#f": field},
		ExpressionAttributeValues: values,
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	if err != nil {
		return unavailable("dynamodb UpdateItem", err)
	}
	return nil
}
