/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/reactiverepo/storagemodels"
)

// expression is a filter or key condition with its placeholders.
type expression struct {
	filter string
	names  map[string]string
	values map[string]types.AttributeValue
}

// buildFilter renders the type discriminator plus p as a DynamoDB filter:
//
//	#et = :et AND (#f0 = :v0 OR #f1 = :v1)
func buildFilter(entityType string, p *storagemodels.Predicate) (expression, error) {
	expr := expression{
		filter: "#et = :et",
		names:  map[string]string{"#et": attrEntityType},
		values: map[string]types.AttributeValue{
			":et": &types.AttributeValueMemberS{Value: entityType},
		},
	}
	if p == nil || len(p.Clauses) == 0 {
		return expr, nil
	}

	clauses := make([]string, 0, len(p.Clauses))
	for i, c := range p.Clauses {
		name := fmt.Sprintf("#f%d", i)
		value := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(c.Value)
		if err != nil {
			return expression{}, fmt.Errorf("failed to marshal value for %s: %w", c.Key, err)
		}
		expr.names[name] = c.Key
		expr.values[value] = av
		clauses = append(clauses, fmt.Sprintf("%s %s %s", name, storagemodels.Equal, value))
	}

	sep := " AND "
	if p.Combinator == storagemodels.Or {
		sep = " OR "
	}
	expr.filter += " AND (" + strings.Join(clauses, sep) + ")"
	return expr, nil
}

// partitionOf reports the partition every match of p must live under, when
// p pins down all the attributes a partition key template references. The
// table's own PK is preferred; failing that the first GSI whose PK template
// is pinned serves the query. Such a query reads a single partition instead
// of scanning the table.
func (l layout) partitionOf(p *storagemodels.Predicate) (keyTarget, bool) {
	if p == nil || len(p.Clauses) == 0 {
		return keyTarget{}, false
	}
	if p.Combinator == storagemodels.Or && len(p.Clauses) > 1 {
		return keyTarget{}, false
	}

	values := make(map[string]types.AttributeValue, len(p.Clauses))
	for _, c := range p.Clauses {
		av, err := attributevalue.Marshal(c.Value)
		if err != nil {
			return keyTarget{}, false
		}
		values[c.Key] = av
	}

	if v, ok := pinned(l.indexMap[attrPK], values); ok {
		return keyTarget{attr: attrPK, value: v}, true
	}
	for _, k := range l.gsiKeys {
		if v, ok := pinned(l.indexMap[k], values); ok {
			return keyTarget{index: indexName(k), attr: k, value: v}, true
		}
	}
	return keyTarget{}, false
}

// pinned expands template when every macro it references has a value.
func pinned(template string, values map[string]types.AttributeValue) (string, bool) {
	for _, m := range macros(template) {
		if _, ok := values[m]; !ok {
			return "", false
		}
	}
	v := expand(template, values)
	return v, v != ""
}
