/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/suparena/reactiverepo/errors"
)

const (
	tagEntity       = "entity"
	tagJSON         = "json"
	roleID          = "id"
	rolePartitionID = "partitionKey"
	roleSystem      = "system"
)

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// Attribute describes one stored field of an entity type.
type Attribute struct {
	// Name is the Go field name. Derived queries reference attributes by Name.
	Name string
	// Key is the attribute name inside the stored document (the json tag).
	Key string
	// Type is the field type with any pointer removed.
	Type reflect.Type
	// Optional reports a pointer field; nil means the attribute is unset.
	Optional bool
	// Scalar reports whether the attribute can take part in an equality clause.
	Scalar bool
	// System marks store-assigned fields (`entity:"system"`), which are
	// neither queryable nor part of entity equality.
	System bool

	index []int
}

// Schema is the reflected shape of an entity type. It is computed once per
// type and is safe for concurrent use.
type Schema struct {
	typ       reflect.Type
	attrs     []Attribute
	byName    map[string]int
	id        int
	partition int
}

var schemas sync.Map // reflect.Type -> *Schema

// SchemaOf returns the schema of entity type T, which must be a struct with
// exactly one string field tagged `entity:"id"` and at most one string or
// *string field tagged `entity:"partitionKey"`.
func SchemaOf[T any]() (*Schema, error) {
	return schemaFor(reflect.TypeOf((*T)(nil)).Elem())
}

// MustSchemaOf is like SchemaOf but panics on an invalid entity type.
func MustSchemaOf[T any]() *Schema {
	s, err := SchemaOf[T]()
	if err != nil {
		panic(err)
	}
	return s
}

func schemaFor(t reflect.Type) (*Schema, error) {
	if cached, ok := schemas.Load(t); ok {
		return cached.(*Schema), nil
	}
	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*Schema), nil
}

func buildSchema(t reflect.Type) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.NewValidationError("", fmt.Sprintf("entity type %s must be a struct", t))
	}

	s := &Schema{
		typ:       t,
		byName:    make(map[string]int),
		id:        -1,
		partition: -1,
	}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		key, skip := documentKey(f)
		if skip {
			continue
		}

		base := f.Type
		optional := false
		if base.Kind() == reflect.Pointer {
			base = base.Elem()
			optional = true
		}

		attr := Attribute{
			Name:     f.Name,
			Key:      key,
			Type:     base,
			Optional: optional,
			Scalar:   isScalar(base),
			index:    f.Index,
		}

		switch f.Tag.Get(tagEntity) {
		case roleID:
			if s.id >= 0 {
				return nil, errors.NewValidationError(f.Name, fmt.Sprintf("%s declares more than one id field", t.Name()))
			}
			if optional || base.Kind() != reflect.String {
				return nil, errors.NewValidationError(f.Name, "id field must be a non-pointer string")
			}
			s.id = len(s.attrs)
		case rolePartitionID:
			if s.partition >= 0 {
				return nil, errors.NewValidationError(f.Name, fmt.Sprintf("%s declares more than one partition key", t.Name()))
			}
			if base.Kind() != reflect.String {
				return nil, errors.NewValidationError(f.Name, "partition key field must be a string or *string")
			}
			s.partition = len(s.attrs)
		case roleSystem:
			attr.System = true
			attr.Scalar = false
		}

		s.byName[attr.Name] = len(s.attrs)
		s.attrs = append(s.attrs, attr)
	}

	if s.id < 0 {
		return nil, errors.NewValidationError("", fmt.Sprintf("entity type %s has no field tagged `entity:\"id\"`", t.Name()))
	}
	return s, nil
}

func documentKey(f reflect.StructField) (string, bool) {
	tag := f.Tag.Get(tagJSON)
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}
	return name, false
}

func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType)
}

// TypeName returns the Go name of the entity type.
func (s *Schema) TypeName() string {
	return s.typ.Name()
}

// Attributes returns the entity's attributes in declaration order.
func (s *Schema) Attributes() []Attribute {
	out := make([]Attribute, len(s.attrs))
	copy(out, s.attrs)
	return out
}

// Attribute looks up an attribute by its exact Go field name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// IDAttribute returns the identity attribute.
func (s *Schema) IDAttribute() Attribute {
	return s.attrs[s.id]
}

// PartitionAttribute returns the partition-key attribute. Entities without
// one are partitioned by their id.
func (s *Schema) PartitionAttribute() Attribute {
	if s.partition < 0 {
		return s.attrs[s.id]
	}
	return s.attrs[s.partition]
}

// HasPartitionKey reports whether the type declares its own partition key.
func (s *Schema) HasPartitionKey() bool {
	return s.partition >= 0
}

// ID reads the identity of e, which may be a T or a *T.
func (s *Schema) ID(e any) string {
	v, ok := s.structValue(e)
	if !ok {
		return ""
	}
	return v.FieldByIndex(s.attrs[s.id].index).String()
}

// PartitionKey reads the partition key of e, falling back to its id when the
// type has no partition key or the value is unset.
func (s *Schema) PartitionKey(e any) string {
	if s.partition < 0 {
		return s.ID(e)
	}
	v, ok := s.structValue(e)
	if !ok {
		return ""
	}
	f := v.FieldByIndex(s.attrs[s.partition].index)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			return s.ID(e)
		}
		f = f.Elem()
	}
	if f.String() == "" {
		return s.ID(e)
	}
	return f.String()
}

func (s *Schema) structValue(e any) (reflect.Value, bool) {
	v := reflect.ValueOf(e)
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Type() != s.typ {
		return reflect.Value{}, false
	}
	return v, true
}
