package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type dynamoItem struct {
	Namespace string `dynamodbav:"pk"`
	Key       string `dynamodbav:"sk"`
	Value     string `dynamodbav:"value"`
}

// dynamoStore keeps one item per key in a shared table, partitioned by namespace.
// Reads are strongly consistent so read-modify-write callers see their own writes.
type dynamoStore[T any] struct {
	client    DynamoAPI
	table     string
	namespace string
}

// NewDynamoStore returns a Store over a table keyed by (pk=namespace, sk=key).
func NewDynamoStore[T any](client DynamoAPI, table, namespace string) Store[T] {
	return &dynamoStore[T]{client: client, table: table, namespace: namespace}
}

func (s *dynamoStore[T]) key(key string) map[string]dbtypes.AttributeValue {
	return map[string]dbtypes.AttributeValue{
		"pk": &dbtypes.AttributeValueMemberS{Value: s.namespace},
		"sk": &dbtypes.AttributeValueMemberS{Value: key},
	}
}

func (s *dynamoStore[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return zero, err
	}
	if len(out.Item) == 0 {
		return zero, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return zero, fmt.Errorf("decode %s/%s: %w", s.namespace, key, err)
	}
	return s.decode(item)
}

func (s *dynamoStore[T]) Put(ctx context.Context, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.namespace, key, err)
	}
	item, err := attributevalue.MarshalMap(dynamoItem{Namespace: s.namespace, Key: key, Value: string(raw)})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", s.namespace, key, err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}

func (s *dynamoStore[T]) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(key),
	})
	return err
}

// Scan queries the namespace partition; items come back ordered by key.
func (s *dynamoStore[T]) Scan(ctx context.Context) ([]T, error) {
	keyCond := expression.Key("pk").Equal(expression.Value(s.namespace))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	out := make([]T, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.namespace, err)
		}
		for _, item := range items {
			v, err := s.decode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *dynamoStore[T]) decode(item dynamoItem) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(item.Value), &v); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s/%s: %w", s.namespace, item.Key, err)
	}
	return v, nil
}
