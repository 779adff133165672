package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/example/ec-order-service/internal/domain/order"
	"github.com/example/ec-order-service/internal/domain/product"
)

// DynamoStore implements the product and order stores on DynamoDB. The
// conditional decrement uses a ConditionExpression so the check and the
// write are one operation, same guarantee as the SQL version.
type DynamoStore struct {
	client       *dynamodb.Client
	productTable string
	orderTable   string
}

const (
	orderUserIndex = "user_id-index"
	orderKeyIndex  = "idempotency_key-index"
	orderListPK    = "ORDERS" // fixed gsi1pk so all orders are queryable newest-first
	orderListIndex = "gsi1-index"
)

func NewDynamoStore(client *dynamodb.Client, productTable, orderTable string) *DynamoStore {
	return &DynamoStore{
		client:       client,
		productTable: productTable,
		orderTable:   orderTable,
	}
}

// dynamoProduct represents the DynamoDB item structure
type dynamoProduct struct {
	ID        string `dynamodbav:"id"`
	Name      string `dynamodbav:"name"`
	Price     int    `dynamodbav:"price"`
	Stock     int    `dynamodbav:"stock"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

type dynamoOrder struct {
	ID             string `dynamodbav:"id"`
	UserID         string `dynamodbav:"user_id"`
	Items          string `dynamodbav:"items"`
	Shipping       string `dynamodbav:"shipping"`
	Payment        string `dynamodbav:"payment"`
	Pricing        string `dynamodbav:"pricing"`
	Status         string `dynamodbav:"status"`
	PaidAt         string `dynamodbav:"paid_at,omitempty"`
	DeliveredAt    string `dynamodbav:"delivered_at,omitempty"`
	StockCommitted bool   `dynamodbav:"stock_committed"`
	IdempotencyKey string `dynamodbav:"idempotency_key,omitempty"`
	CreatedAt      string `dynamodbav:"created_at"`
	UpdatedAt      string `dynamodbav:"updated_at"`
	GSI1PK         string `dynamodbav:"gsi1pk"`
}

// Product operations

func (s *DynamoStore) CreateProduct(ctx context.Context, p *product.Product) error {
	item := dynamoProduct{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339Nano),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.productTable),
		Item:      av,
	})
	return err
}

func (s *DynamoStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.productTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, product.ErrProductNotFound
	}
	var item dynamoProduct
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return item.toProduct()
}

func (item dynamoProduct) toProduct() (*product.Product, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &product.Product{
		ID:        item.ID,
		Name:      item.Name,
		Price:     item.Price,
		Stock:     item.Stock,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *DynamoStore) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.productTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET stock = stock - :q, updated_at = :t"),
		ConditionExpression: aws.String("attribute_exists(id) AND stock >= :q"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":t": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			// Condition failures cover both a missing product and
			// insufficient stock; read to tell them apart.
			if _, getErr := s.GetProduct(ctx, id); getErr != nil {
				return 0, getErr
			}
			return 0, &product.InsufficientStockError{ProductID: id, Requested: qty}
		}
		return 0, err
	}
	return stockFromAttributes(out.Attributes)
}

func (s *DynamoStore) IncrementStock(ctx context.Context, id string, qty int) (int, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.productTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET stock = stock + :q, updated_at = :t"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":t": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, product.ErrProductNotFound
		}
		return 0, err
	}
	return stockFromAttributes(out.Attributes)
}

func stockFromAttributes(attrs map[string]types.AttributeValue) (int, error) {
	n, ok := attrs["stock"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("unexpected stock attribute in update response")
	}
	return strconv.Atoi(n.Value)
}

// Order operations

func (s *DynamoStore) CreateOrder(ctx context.Context, o *order.Order) error {
	item, err := toDynamoOrder(o)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.orderTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	return err
}

func (s *DynamoStore) UpdateOrder(ctx context.Context, o *order.Order) error {
	item, err := toDynamoOrder(o)
	if err != nil {
		return err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.orderTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return order.ErrOrderNotFound
		}
	}
	return err
}

func (s *DynamoStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.orderTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, order.ErrOrderNotFound
	}
	var item dynamoOrder
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return item.toOrder()
}

func (s *DynamoStore) GetOrderByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.orderTable),
		IndexName:              aws.String(orderKeyIndex),
		KeyConditionExpression: aws.String("idempotency_key = :k"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: key},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, order.ErrOrderNotFound
	}
	var item dynamoOrder
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return item.toOrder()
}

func (s *DynamoStore) DeleteOrder(ctx context.Context, id string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.orderTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return order.ErrOrderNotFound
		}
	}
	return err
}

func (s *DynamoStore) ListOrdersByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.orderTable),
		IndexName:              aws.String(orderUserIndex),
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false), // newest first via created_at sort key
	})
	if err != nil {
		return nil, err
	}
	return unmarshalOrders(out.Items)
}

func (s *DynamoStore) ListOrders(ctx context.Context) ([]*order.Order, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.orderTable),
		IndexName:              aws.String(orderListIndex),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: orderListPK},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	return unmarshalOrders(out.Items)
}

func unmarshalOrders(items []map[string]types.AttributeValue) ([]*order.Order, error) {
	out := make([]*order.Order, 0, len(items))
	for _, raw := range items {
		var item dynamoOrder
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order: %w", err)
		}
		o, err := item.toOrder()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func toDynamoOrder(o *order.Order) (*dynamoOrder, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, err
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return nil, err
	}
	payment, err := json.Marshal(o.Payment)
	if err != nil {
		return nil, err
	}
	pricing, err := json.Marshal(o.Pricing)
	if err != nil {
		return nil, err
	}
	item := &dynamoOrder{
		ID:             o.ID,
		UserID:         o.UserID,
		Items:          string(items),
		Shipping:       string(shipping),
		Payment:        string(payment),
		Pricing:        string(pricing),
		Status:         string(o.Status),
		StockCommitted: o.StockCommitted,
		IdempotencyKey: o.IdempotencyKey,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:      o.UpdatedAt.Format(time.RFC3339Nano),
		GSI1PK:         orderListPK,
	}
	if o.PaidAt != nil {
		item.PaidAt = o.PaidAt.Format(time.RFC3339Nano)
	}
	if o.DeliveredAt != nil {
		item.DeliveredAt = o.DeliveredAt.Format(time.RFC3339Nano)
	}
	return item, nil
}

func (item dynamoOrder) toOrder() (*order.Order, error) {
	o := &order.Order{
		ID:             item.ID,
		UserID:         item.UserID,
		Status:         order.Status(item.Status),
		StockCommitted: item.StockCommitted,
		IdempotencyKey: item.IdempotencyKey,
	}
	if err := json.Unmarshal([]byte(item.Items), &o.Items); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(item.Shipping), &o.Shipping); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(item.Payment), &o.Payment); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(item.Pricing), &o.Pricing); err != nil {
		return nil, err
	}
	var err error
	if o.CreatedAt, err = time.Parse(time.RFC3339Nano, item.CreatedAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = time.Parse(time.RFC3339Nano, item.UpdatedAt); err != nil {
		return nil, err
	}
	if item.PaidAt != "" {
		t, err := time.Parse(time.RFC3339Nano, item.PaidAt)
		if err != nil {
			return nil, err
		}
		o.PaidAt = &t
	}
	if item.DeliveredAt != "" {
		t, err := time.Parse(time.RFC3339Nano, item.DeliveredAt)
		if err != nil {
			return nil, err
		}
		o.DeliveredAt = &t
	}
	return o, nil
}
