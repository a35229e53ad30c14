/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"math"
	"reflect"

	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/storagemodels"
)

// Cardinality selects the result shape of a derived query.
type Cardinality int

const (
	// Many yields a sequence of every match.
	Many Cardinality = iota
	// Single yields the first match, or absent.
	Single
	// DeleteMany removes every match and yields what was removed.
	DeleteMany
)

func (c Cardinality) String() string {
	switch c {
	case Many:
		return "many"
	case Single:
		return "single"
	case DeleteMany:
		return "deleteMany"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}

// Descriptor is the immutable, derived form of a declared query method.
type Descriptor struct {
	name        string
	attrs       []entity.Attribute
	combinator  storagemodels.Combinator
	cardinality Cardinality
}

// Name returns the declared method name the descriptor is keyed by.
func (d *Descriptor) Name() string { return d.name }

// Cardinality returns the result shape of the query.
func (d *Descriptor) Cardinality() Cardinality { return d.cardinality }

// Comparator returns the comparison applied by every clause.
func (d *Descriptor) Comparator() storagemodels.Comparator { return storagemodels.Equal }

// Combinator returns how clauses are joined.
func (d *Descriptor) Combinator() storagemodels.Combinator { return d.combinator }

// Attributes returns the Go names of the filtered attributes, in clause order.
func (d *Descriptor) Attributes() []string {
	out := make([]string, len(d.attrs))
	for i, a := range d.attrs {
		out[i] = a.Name
	}
	return out
}

// Keys returns the document keys of the filtered attributes, in clause order.
func (d *Descriptor) Keys() []string {
	out := make([]string, len(d.attrs))
	for i, a := range d.attrs {
		out[i] = a.Key
	}
	return out
}

// Arity returns the number of positional arguments the query takes.
func (d *Descriptor) Arity() int { return len(d.attrs) }

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s(%v, %s, %s)", d.name, d.Attributes(), d.combinator, d.cardinality)
}

// Bind turns positional arguments into the predicate handed to a driver.
// Arguments must be assignable to the attribute type; numbers convert between
// numeric kinds, and pointer arguments are dereferenced.
func (d *Descriptor) Bind(args ...any) (*storagemodels.Predicate, error) {
	if len(args) != len(d.attrs) {
		return nil, errors.NewValidationError("", fmt.Sprintf("%s takes %d argument(s), got %d", d.name, len(d.attrs), len(args)))
	}

	p := &storagemodels.Predicate{
		Combinator: d.combinator,
		Clauses:    make([]storagemodels.Clause, len(args)),
	}
	for i, arg := range args {
		attr := d.attrs[i]
		v, err := coerce(attr, arg)
		if err != nil {
			return nil, err
		}
		normalized, err := storagemodels.Normalize(v)
		if err != nil {
			return nil, errors.NewValidationError(attr.Name, err.Error())
		}
		p.Clauses[i] = storagemodels.Clause{
			Key:        attr.Key,
			Comparator: storagemodels.Equal,
			Value:      normalized,
		}
	}
	return p, nil
}

func coerce(attr entity.Attribute, arg any) (any, error) {
	v := reflect.ValueOf(arg)
	for v.IsValid() && v.Kind() == reflect.Pointer {
		if v.IsNil() {
			break
		}
		v = v.Elem()
	}
	if !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return nil, errors.NewValidationError(attr.Name, "argument must not be nil")
	}

	switch {
	case v.Type().AssignableTo(attr.Type):
		return v.Interface(), nil
	case isNumeric(v.Kind()) && isNumeric(attr.Type.Kind()):
		if !fits(v, attr.Type) {
			return nil, errors.NewValidationError(attr.Name, fmt.Sprintf("argument %v does not fit %s", v.Interface(), attr.Type))
		}
		return v.Convert(attr.Type).Interface(), nil
	case v.Kind() == reflect.String && attr.Type.Kind() == reflect.String:
		return v.Convert(attr.Type).Interface(), nil
	}
	return nil, errors.NewValidationError(attr.Name, fmt.Sprintf("argument of type %s is not compatible with %s", v.Type(), attr.Type))
}

// fits reports whether the numeric value v converts to t without losing its
// fraction, its sign or its magnitude. Float targets only reject overflow.
func fits(v reflect.Value, t reflect.Type) bool {
	zero := reflect.Zero(t)
	switch {
	case v.CanInt():
		n := v.Int()
		switch {
		case t.Kind() >= reflect.Uint && t.Kind() <= reflect.Uint64:
			return n >= 0 && !zero.OverflowUint(uint64(n))
		case zero.CanInt():
			return !zero.OverflowInt(n)
		}
		return true
	case v.CanUint():
		n := v.Uint()
		switch {
		case zero.CanUint():
			return !zero.OverflowUint(n)
		case zero.CanInt():
			return n <= math.MaxInt64 && !zero.OverflowInt(int64(n))
		}
		return true
	}
	f := v.Float()
	if zero.CanFloat() {
		return math.IsNaN(f) || math.IsInf(f, 0) || !zero.OverflowFloat(f)
	}
	if f != math.Trunc(f) {
		return false
	}
	if zero.CanUint() {
		return f >= 0 && f < math.Ldexp(1, 64) && !zero.OverflowUint(uint64(f))
	}
	return f >= math.MinInt64 && f < math.Ldexp(1, 63) && !zero.OverflowInt(int64(f))
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
