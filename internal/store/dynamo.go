package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const dynamoKeyAttr = "id"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore maps each collection to a table named prefix+collection with a
// string partition key "id".
type DynamoStore struct {
	client      DynamoAPI
	tablePrefix string
	feed        Feed
}

// NewDynamoClient loads the default AWS configuration for region.
func NewDynamoClient(ctx context.Context, region string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// NewDynamoStore wraps a DynamoDB client. A nil feed gets a LocalFeed.
func NewDynamoStore(client DynamoAPI, tablePrefix string, feed Feed) *DynamoStore {
	if feed == nil {
		feed = NewLocalFeed()
	}
	return &DynamoStore{client: client, tablePrefix: tablePrefix, feed: feed}
}

func (s *DynamoStore) table(collection string) *string {
	return aws.String(s.tablePrefix + collection)
}

func itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttr: &types.AttributeValueMemberS{Value: key},
	}
}

func (s *DynamoStore) Get(ctx context.Context, collection, key string) (Document, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      s.table(collection),
		Key:            itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item from table '%s': %w", collection, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	var doc Document
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal item %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

// Query scans the table and filters client side so comparison semantics match
// the other backends. Results are ordered by key; push keys sort by creation time.
func (s *DynamoStore) Query(ctx context.Context, q Query) ([]Record, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      s.table(q.Collection),
		ConsistentRead: aws.Bool(true),
	})

	var out []Record
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan table '%s': %w", q.Collection, err)
		}
		for _, item := range page.Items {
			var doc Document
			if err := attributevalue.UnmarshalMap(item, &doc); err != nil {
				return nil, fmt.Errorf("unmarshal item in '%s': %w", q.Collection, err)
			}
			if !matches(doc, q) {
				continue
			}
			key, _ := doc[dynamoKeyAttr].(string)
			out = append(out, Record{Key: key, Data: doc})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *DynamoStore) Set(ctx context.Context, collection, key string, doc Document) error {
	doc = cloneDocument(doc)
	doc[dynamoKeyAttr] = key
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: s.table(collection),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item in table '%s': %w", collection, err)
	}
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *DynamoStore) Update(ctx context.Context, collection, key string, fields Document) error {
	if len(fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if name == dynamoKeyAttr {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	exprNames := map[string]string{"#pk": dynamoKeyAttr}
	exprValues := make(map[string]types.AttributeValue, len(names))
	sets := make([]string, 0, len(names))
	for i, name := range names {
		av, err := attributevalue.Marshal(fields[name])
		if err != nil {
			return fmt.Errorf("marshal field %s: %w", name, err)
		}
		n, v := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		exprNames[n] = name
		exprValues[v] = av
		sets = append(sets, n+" = "+v)
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 s.table(collection),
		Key:                       itemKey(key),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("update %s/%s: %w", collection, key, ErrNotFound)
		}
		return fmt.Errorf("update item in table '%s': %w", collection, err)
	}
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *DynamoStore) Push(ctx context.Context, collection string, doc Document) (string, error) {
	key := NewPushKey()
	if err := s.Set(ctx, collection, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

func (s *DynamoStore) Remove(ctx context.Context, collection, key string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: s.table(collection),
		Key:       itemKey(key),
	}); err != nil {
		return fmt.Errorf("delete item from table '%s': %w", collection, err)
	}
	publishChange(ctx, s.feed, collection)
	return nil
}

func (s *DynamoStore) Subscribe(ctx context.Context, q Query, fn func([]Record)) (func(), error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	return watch(ctx, s.feed, q, s.Query, fn), nil
}

func (s *DynamoStore) Close() error {
	return s.feed.Close()
}
