/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/registry"
)

const (
	attrPK         = "PK"
	attrSK         = "SK"
	attrEntityType = "EntityType"
)

var (
	macroPattern = regexp.MustCompile(`{([^}]+)}`)
	// gsiKeyPattern matches the partition key attribute of a global
	// secondary index, e.g. GSI1PK for the index GSI1.
	gsiKeyPattern = regexp.MustCompile(`^(GSI[0-9]+)PK$`)
)

// keyTarget is a partition a query can be served from: the table itself
// when index is empty, a global secondary index otherwise.
type keyTarget struct {
	index string
	attr  string
	value string
}

// layout is the key layout of one entity type in the table.
type layout struct {
	indexMap map[string]string
	idKey    string
	pkKey    string
	// gsiKeys lists the GSI partition key attributes of the index map in
	// name order.
	gsiKeys []string
}

// DefaultIndexMap is the index map used for a type that registered none:
// the partition key drives PK and the id drives SK, both prefixed by the
// type name.
func DefaultIndexMap(schema *entity.Schema) map[string]string {
	return map[string]string{
		attrPK: fmt.Sprintf("%s#{%s}", schema.TypeName(), schema.PartitionAttribute().Key),
		attrSK: fmt.Sprintf("%s#{%s}", schema.TypeName(), schema.IDAttribute().Key),
	}
}

func newLayout[T any](schema *entity.Schema) (layout, error) {
	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		indexMap = DefaultIndexMap(schema)
	}
	for _, k := range []string{attrPK, attrSK} {
		if indexMap[k] == "" {
			return layout{}, fmt.Errorf("index map for %s has no %s template", schema.TypeName(), k)
		}
	}
	var gsiKeys []string
	for k := range indexMap {
		if gsiKeyPattern.MatchString(k) {
			gsiKeys = append(gsiKeys, k)
		}
	}
	sort.Strings(gsiKeys)
	return layout{
		indexMap: indexMap,
		idKey:    schema.IDAttribute().Key,
		pkKey:    schema.PartitionAttribute().Key,
		gsiKeys:  gsiKeys,
	}, nil
}

// indexName returns the GSI a partition key attribute belongs to.
func indexName(gsiKey string) string {
	return gsiKeyPattern.FindStringSubmatch(gsiKey)[1]
}

// primaryKey builds the table key for an entity addressed by id and
// partition key alone.
func (l layout) primaryKey(id, partitionKey string) (map[string]types.AttributeValue, error) {
	values := map[string]types.AttributeValue{
		l.pkKey: &types.AttributeValueMemberS{Value: partitionKey},
	}
	values[l.idKey] = &types.AttributeValueMemberS{Value: id}
	pk := expand(l.indexMap[attrPK], values)
	sk := expand(l.indexMap[attrSK], values)
	if pk == "" || sk == "" {
		return nil, fmt.Errorf("cannot build key for id %q in partition %q", id, partitionKey)
	}
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}, nil
}

// keyAttributes expands every template of the index map against a stored
// item. Templates whose macros are all missing expand to "" and are skipped.
func (l layout) keyAttributes(item map[string]types.AttributeValue) map[string]string {
	out := make(map[string]string, len(l.indexMap))
	for field, template := range l.indexMap {
		if v := expand(template, item); v != "" {
			out[field] = v
		}
	}
	return out
}

// macros lists the attribute names referenced by a template.
func macros(template string) []string {
	var out []string
	for _, m := range macroPattern.FindAllStringSubmatch(template, -1) {
		out = append(out, m[1])
	}
	return out
}

// expand replaces every {attr} macro in template with the attribute value.
// A template whose macros cannot all be resolved expands to "".
func expand(template string, values map[string]types.AttributeValue) string {
	missing := false
	expanded := macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
		key := strings.Trim(macro, "{}")
		s, ok := stringValue(values[key])
		if !ok {
			missing = true
		}
		return s
	})
	if missing {
		return ""
	}
	return expanded
}

func stringValue(av types.AttributeValue) (string, bool) {
	switch tv := av.(type) {
	case *types.AttributeValueMemberS:
		return tv.Value, tv.Value != ""
	case *types.AttributeValueMemberN:
		return tv.Value, true
	case *types.AttributeValueMemberBOOL:
		return fmt.Sprintf("%v", tv.Value), true
	default:
		// NULL, binary, sets and documents cannot form a key.
		return "", false
	}
}
