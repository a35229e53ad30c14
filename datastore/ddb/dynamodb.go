/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/entity"
	storeerrors "github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/storagemodels"
)

// Client is the subset of the DynamoDB API the store uses. *sdk.Client
// satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Query(ctx context.Context, params *sdk.QueryInput, optFns ...func(*sdk.Options)) (*sdk.QueryOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
}

// ClientConfig holds what is needed to reach a DynamoDB endpoint.
type ClientConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string
}

// NewClient initializes a DynamoDB client. Static credentials are used when
// both keys are set, the default AWS credential chain otherwise.
func NewClient(ctx context.Context, cfg ClientConfig) (*sdk.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Store implements datastore.Driver[T] on a single DynamoDB table. Every
// entity type shares the table; items carry an EntityType attribute and
// PK/SK values expanded from the type's index map.
type Store[T any] struct {
	client    Client
	tableName string
	schema    *entity.Schema
	layout    layout
	logger    *zap.Logger
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for retry and paging diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New constructs a Store for T on tableName. The key layout comes from the
// index map registered for T, or DefaultIndexMap when there is none.
func New[T any](client Client, tableName string, opts ...Option) (*Store[T], error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("dynamodb table name is required")
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	schema, err := entity.SchemaOf[T]()
	if err != nil {
		return nil, err
	}
	l, err := newLayout[T](schema)
	if err != nil {
		return nil, err
	}

	return &Store[T]{
		client:    client,
		tableName: tableName,
		schema:    schema,
		layout:    l,
		logger:    o.logger.With(zap.String("table", tableName), zap.String("entity_type", schema.TypeName())),
	}, nil
}

// putCondition keeps a Put from replacing an item of another entity type
// whose index map expands to the same key.
const putCondition = "attribute_not_exists(#pk) OR #et = :et"

// Put writes e, replacing any item of the same type under the same key. An
// item of another type under that key fails the write with a
// ConditionFailedError.
func (d *Store[T]) Put(ctx context.Context, e T) (T, error) {
	var zero T
	if err := entity.Validate(d.schema, e); err != nil {
		return zero, err
	}

	stored := e
	entity.Stamp(&stored, uuid.NewString(), time.Now())
	item, err := d.marshalItem(stored)
	if err != nil {
		return zero, err
	}

	_, err = d.client.PutItem(ctx, &sdk.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: aws.String(putCondition),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#et": attrEntityType,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":et": &types.AttributeValueMemberS{Value: d.schema.TypeName()},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			d.logger.Warn("key held by another entity type", zap.String("id", d.schema.ID(e)))
			return zero, storeerrors.NewConditionFailedError("put", putCondition)
		}
		return zero, fmt.Errorf("PutItem failed: %w", err)
	}
	return stored, nil
}

// marshalItem converts an entity into a table item with its key attributes.
func (d *Store[T]) marshalItem(e T) (map[string]types.AttributeValue, error) {
	doc, err := storagemodels.Encode(e)
	if err != nil {
		return nil, storeerrors.NewValidationError("", err.Error())
	}
	item, err := attributevalue.MarshalMap(map[string]any(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}

	// Key templates see the effective partition key even when the
	// attribute itself is unset.
	values := make(map[string]types.AttributeValue, len(item)+1)
	for k, v := range item {
		values[k] = v
	}
	values[d.layout.pkKey] = &types.AttributeValueMemberS{Value: d.schema.PartitionKey(e)}

	keys := d.layout.keyAttributes(values)
	if keys[attrPK] == "" || keys[attrSK] == "" {
		return nil, storeerrors.NewValidationError(d.schema.IDAttribute().Name, "entity does not expand to a PK and SK")
	}
	for k, v := range keys {
		item[k] = &types.AttributeValueMemberS{Value: v}
	}
	item[attrEntityType] = &types.AttributeValueMemberS{Value: d.schema.TypeName()}
	return item, nil
}

// unmarshalItem strips the table's own attributes and decodes the rest.
func (d *Store[T]) unmarshalItem(item map[string]types.AttributeValue) (T, storagemodels.Document, error) {
	var zero T
	fields := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if _, isKey := d.layout.indexMap[k]; isKey || k == attrEntityType {
			continue
		}
		fields[k] = v
	}

	var doc storagemodels.Document
	if err := attributevalue.UnmarshalMap(fields, &doc); err != nil {
		return zero, nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	out, err := storagemodels.Decode[T](doc)
	if err != nil {
		return zero, nil, err
	}
	return out, doc, nil
}

// Get reads the item stored under id and partitionKey. A missing item is
// (nil, nil).
func (d *Store[T]) Get(ctx context.Context, id, partitionKey string) (*T, error) {
	key, err := d.layout.primaryKey(id, partitionKey)
	if err != nil {
		return nil, storeerrors.NewValidationError(d.schema.IDAttribute().Name, err.Error())
	}

	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName: &d.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	result, _, err := d.unmarshalItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete removes the item stored under id and partitionKey. It fails with a
// NotFoundError when there is no such item.
func (d *Store[T]) Delete(ctx context.Context, id, partitionKey string) error {
	key, err := d.layout.primaryKey(id, partitionKey)
	if err != nil {
		return storeerrors.NewValidationError(d.schema.IDAttribute().Name, err.Error())
	}

	_, err = d.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:           &d.tableName,
		Key:                 key,
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return storeerrors.NewNotFoundError(d.schema.TypeName(), id)
		}
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	return nil
}

// Count returns the number of items of the entity type in the table.
func (d *Store[T]) Count(ctx context.Context) (int64, error) {
	expr, err := buildFilter(d.schema.TypeName(), nil)
	if err != nil {
		return 0, err
	}
	input := &sdk.ScanInput{
		TableName:                 &d.tableName,
		FilterExpression:          &expr.filter,
		ExpressionAttributeNames:  expr.names,
		ExpressionAttributeValues: expr.values,
		Select:                    types.SelectCount,
	}

	var total int64
	for {
		out, err := d.client.Scan(ctx, input)
		if err != nil {
			return 0, fmt.Errorf("count scan failed: %w", err)
		}
		total += int64(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
