/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/storagemodels"
)

const (
	prefixFind   = "findBy"
	prefixDelete = "deleteBy"
)

// Declaration is anything a repository can derive a descriptor from.
type Declaration interface {
	// MethodName is the key the derived descriptor is cached under.
	MethodName() string
	derive(schema *entity.Schema) (*Descriptor, error)
}

// Method declares a query by name, as findBy<Field> or deleteBy<Field>,
// optionally chained with And or Or. Params names the positional
// parameters; there must be one per field clause.
type Method struct {
	Name   string
	Params []string
	// One declares a findBy method that yields a single optional entity.
	One bool
	// Delete declares a deleteBy method; the name prefix must agree.
	Delete bool
}

// FindMany declares a findBy method yielding every match.
func FindMany(name string, params ...string) Method {
	return Method{Name: name, Params: params}
}

// FindOne declares a findBy method yielding the first match or absent.
func FindOne(name string, params ...string) Method {
	return Method{Name: name, Params: params, One: true}
}

// DeleteBy declares a deleteBy method yielding the removed entities.
func DeleteBy(name string, params ...string) Method {
	return Method{Name: name, Params: params, Delete: true}
}

func (m Method) MethodName() string { return m.Name }

func (m Method) derive(schema *entity.Schema) (*Descriptor, error) {
	return Derive(schema, m)
}

// Spec declares a query structurally, without any name parsing.
type Spec struct {
	Name        string
	Attributes  []string
	Combinator  storagemodels.Combinator
	Cardinality Cardinality
}

func (s Spec) MethodName() string { return s.Name }

func (s Spec) derive(schema *entity.Schema) (*Descriptor, error) {
	return FromSpec(schema, s)
}

// Derive parses a declared method name into a descriptor for schema.
func Derive(schema *entity.Schema, m Method) (*Descriptor, error) {
	var (
		rest        string
		cardinality Cardinality
	)
	switch {
	case strings.HasPrefix(m.Name, prefixFind):
		if m.Delete {
			return nil, errors.NewQueryDerivationError(m.Name, "declared as a delete but named %q", prefixFind)
		}
		rest = m.Name[len(prefixFind):]
		cardinality = Many
		if m.One {
			cardinality = Single
		}
	case strings.HasPrefix(m.Name, prefixDelete):
		if !m.Delete {
			return nil, errors.NewQueryDerivationError(m.Name, "declared as a find but named %q", prefixDelete)
		}
		rest = m.Name[len(prefixDelete):]
		cardinality = DeleteMany
		if m.One {
			return nil, errors.NewQueryDerivationError(m.Name, "deleteBy methods cannot yield a single entity")
		}
	default:
		return nil, errors.NewQueryDerivationError(m.Name, "name must start with %q or %q", prefixFind, prefixDelete)
	}

	fields, combinator, err := splitClauses(rest)
	if err != nil {
		return nil, errors.NewQueryDerivationError(m.Name, "%s", err.Error())
	}
	if len(m.Params) != len(fields) {
		return nil, errors.NewQueryDerivationError(m.Name, "%d field clause(s) but %d parameter(s)", len(fields), len(m.Params))
	}

	return build(schema, m.Name, fields, combinator, cardinality)
}

// FromSpec validates a structured declaration into a descriptor.
func FromSpec(schema *entity.Schema, s Spec) (*Descriptor, error) {
	if s.Name == "" {
		return nil, errors.NewQueryDerivationError(s.Name, "name is required")
	}
	if len(s.Attributes) == 0 {
		return nil, errors.NewQueryDerivationError(s.Name, "at least one attribute is required")
	}
	switch s.Cardinality {
	case Many, Single, DeleteMany:
	default:
		return nil, errors.NewQueryDerivationError(s.Name, "unknown cardinality %s", s.Cardinality)
	}
	combinator := s.Combinator
	switch combinator {
	case "":
		combinator = storagemodels.And
	case storagemodels.And, storagemodels.Or:
	default:
		return nil, errors.NewQueryDerivationError(s.Name, "unknown combinator %q", combinator)
	}
	return build(schema, s.Name, s.Attributes, combinator, s.Cardinality)
}

func build(schema *entity.Schema, name string, fields []string, combinator storagemodels.Combinator, cardinality Cardinality) (*Descriptor, error) {
	attrs := make([]entity.Attribute, 0, len(fields))
	for _, f := range fields {
		attr, ok := schema.Attribute(f)
		if !ok {
			return nil, errors.NewQueryDerivationError(name, "%s has no attribute %q", schema.TypeName(), f)
		}
		if !attr.Scalar {
			return nil, errors.NewQueryDerivationError(name, "attribute %q cannot be compared for equality", f)
		}
		attrs = append(attrs, attr)
	}
	return &Descriptor{
		name:        name,
		attrs:       attrs,
		combinator:  combinator,
		cardinality: cardinality,
	}, nil
}

// splitClauses tokenizes "FirstNameAndLastName" into field names. A
// combinator only splits at a camel-case boundary: it must follow a
// non-empty field and be followed by an upper-case letter.
func splitClauses(rest string) ([]string, storagemodels.Combinator, error) {
	if rest == "" {
		return nil, "", fmt.Errorf("no field clause after the verb")
	}

	var (
		fields     []string
		combinator storagemodels.Combinator
		start      int
	)
	for i := 0; i < len(rest); {
		if i > start {
			if c, width := combinatorAt(rest, i); width > 0 {
				if combinator != "" && combinator != c {
					return nil, "", fmt.Errorf("mixing And and Or is not supported")
				}
				combinator = c
				fields = append(fields, rest[start:i])
				i += width
				start = i
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(rest[i:])
		i += size
	}
	fields = append(fields, rest[start:])

	for _, f := range fields {
		r, _ := utf8.DecodeRuneInString(f)
		if !unicode.IsUpper(r) {
			return nil, "", fmt.Errorf("field clause %q must start with an upper-case letter", f)
		}
	}
	if combinator == "" {
		combinator = storagemodels.And
	}
	return fields, combinator, nil
}

func combinatorAt(s string, i int) (storagemodels.Combinator, int) {
	for _, c := range []struct {
		word string
		comb storagemodels.Combinator
	}{{"And", storagemodels.And}, {"Or", storagemodels.Or}} {
		if !strings.HasPrefix(s[i:], c.word) {
			continue
		}
		next := i + len(c.word)
		if next >= len(s) {
			continue
		}
		r, _ := utf8.DecodeRuneInString(s[next:])
		if unicode.IsUpper(r) {
			return c.comb, len(c.word)
		}
	}
	return "", 0
}
