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
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/storagemodels"
)

// page is one request against the table.
type page func(ctx context.Context, startKey map[string]types.AttributeValue) (items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue, err error)

// Query streams the entities matching p. A predicate that fixes the
// partition is served by a Query on PK, or on a GSI whose partition key it
// fixes; anything else scans the table.
func (d *Store[T]) Query(ctx context.Context, p *storagemodels.Predicate, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return d.stream(ctx, p, storagemodels.ApplyStreamOptions(opts...))
}

// ScanAll streams every entity of the type.
func (d *Store[T]) ScanAll(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	return d.stream(ctx, nil, storagemodels.ApplyStreamOptions(opts...))
}

func (d *Store[T]) stream(ctx context.Context, p *storagemodels.Predicate, options storagemodels.StreamOptions) <-chan storagemodels.StreamResult[T] {
	resultCh := make(chan storagemodels.StreamResult[T], options.BufferSize)

	expr, err := buildFilter(d.schema.TypeName(), p)
	if err != nil {
		go func() {
			defer close(resultCh)
			select {
			case resultCh <- storagemodels.StreamResult[T]{Error: err}:
			case <-ctx.Done():
			}
		}()
		return resultCh
	}

	next := d.scanPage(expr, options)
	if target, ok := d.layout.partitionOf(p); ok {
		next = d.queryPage(target, expr, options)
	}

	go d.streamWorker(ctx, p, next, options, resultCh)
	return resultCh
}

func (d *Store[T]) scanPage(expr expression, options storagemodels.StreamOptions) page {
	return func(ctx context.Context, startKey map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		out, err := d.client.Scan(ctx, &sdk.ScanInput{
			TableName:                 &d.tableName,
			FilterExpression:          &expr.filter,
			ExpressionAttributeNames:  expr.names,
			ExpressionAttributeValues: expr.values,
			Limit:                     aws.Int32(options.PageSize),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Items, out.LastEvaluatedKey, nil
	}
}

func (d *Store[T]) queryPage(target keyTarget, expr expression, options storagemodels.StreamOptions) page {
	names := map[string]string{"#pk": target.attr}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: target.value},
	}
	var index *string
	if target.index != "" {
		index = aws.String(target.index)
	}
	for k, v := range expr.names {
		names[k] = v
	}
	for k, v := range expr.values {
		values[k] = v
	}
	return func(ctx context.Context, startKey map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		out, err := d.client.Query(ctx, &sdk.QueryInput{
			TableName:                 &d.tableName,
			IndexName:                 index,
			KeyConditionExpression:    aws.String("#pk = :pk"),
			FilterExpression:          &expr.filter,
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			Limit:                     aws.Int32(options.PageSize),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return out.Items, out.LastEvaluatedKey, nil
	}
}

// streamWorker pages through the table until the last page, a failure, or
// cancellation. A failure is the last result sent.
func (d *Store[T]) streamWorker(
	ctx context.Context,
	p *storagemodels.Predicate,
	next page,
	options storagemodels.StreamOptions,
	resultCh chan<- storagemodels.StreamResult[T],
) {
	defer close(resultCh)

	var itemIndex int64
	var pageNumber int
	startTime := time.Now()

	send := func(r storagemodels.StreamResult[T]) bool {
		select {
		case <-ctx.Done():
			return false
		case resultCh <- r:
			return true
		}
	}

	var lastEvaluatedKey map[string]types.AttributeValue
	for {
		if ctx.Err() != nil {
			return
		}

		items, lastKey, err := d.pageWithRetry(ctx, next, lastEvaluatedKey, options)
		if err != nil {
			send(storagemodels.StreamResult[T]{
				Error: err,
				Meta: storagemodels.StreamMeta{
					Index:      itemIndex,
					PageNumber: pageNumber,
					Timestamp:  time.Now(),
				},
			})
			return
		}
		pageNumber++

		for _, item := range items {
			meta := storagemodels.StreamMeta{
				Index:      itemIndex,
				PageNumber: pageNumber,
				Timestamp:  time.Now(),
			}
			if !d.ownsItem(item) {
				continue
			}
			result, doc, err := d.unmarshalItem(item)
			if err != nil {
				send(storagemodels.StreamResult[T]{Error: err, Meta: meta})
				return
			}
			// The filter expression already applied p; matching again keeps
			// the result exact when a table is shared with foreign items.
			if !p.Match(doc) {
				continue
			}
			if !send(storagemodels.StreamResult[T]{Item: result, Raw: doc, Meta: meta}) {
				return
			}
			itemIndex++
		}

		options.Progress(itemIndex, pageNumber, startTime)

		if len(lastKey) == 0 {
			return
		}
		lastEvaluatedKey = lastKey
	}
}

func (d *Store[T]) ownsItem(item map[string]types.AttributeValue) bool {
	et, ok := item[attrEntityType].(*types.AttributeValueMemberS)
	return ok && et.Value == d.schema.TypeName()
}

// pageWithRetry executes one page request, retrying throttling and
// transient service errors with linear backoff.
func (d *Store[T]) pageWithRetry(
	ctx context.Context,
	next page,
	startKey map[string]types.AttributeValue,
	options storagemodels.StreamOptions,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	var lastErr error

	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		items, lastKey, err := next(ctx, startKey)
		if err == nil {
			return items, lastKey, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, nil, err
		}

		if attempt < options.MaxRetries {
			backoff := time.Duration(attempt+1) * options.RetryBackoff
			d.logger.Debug("retrying page request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, nil, fmt.Errorf("page request failed after %d retries: %w", options.MaxRetries, lastErr)
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if errors.As(err, &throughput) || errors.As(err, &limit) || errors.As(err, &internal) {
		return true
	}

	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}
