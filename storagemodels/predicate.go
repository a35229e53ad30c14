/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"reflect"
	"strings"
)

// Combinator joins the clauses of a predicate.
type Combinator string

const (
	And Combinator = "AND"
	Or  Combinator = "OR"
)

// Comparator is the comparison a clause applies. Only equality is derivable.
type Comparator string

const (
	Equal Comparator = "="
)

// Clause compares one document attribute with a normalized value.
type Clause struct {
	Key        string
	Comparator Comparator
	Value      any
}

// Predicate is the filter a driver applies for a derived query.
// A predicate without clauses matches every document.
type Predicate struct {
	Combinator Combinator
	Clauses    []Clause
}

// Match evaluates the predicate against a document. A clause on an attribute
// the document does not carry never matches.
func (p *Predicate) Match(doc Document) bool {
	if p == nil || len(p.Clauses) == 0 {
		return true
	}
	for _, c := range p.Clauses {
		ok := c.matches(doc)
		if p.Combinator == Or && ok {
			return true
		}
		if p.Combinator != Or && !ok {
			return false
		}
	}
	return p.Combinator != Or
}

func (c Clause) matches(doc Document) bool {
	v, ok := doc[c.Key]
	if !ok {
		return false
	}
	return reflect.DeepEqual(v, c.Value)
}

func (p *Predicate) String() string {
	if p == nil || len(p.Clauses) == 0 {
		return "<all>"
	}
	parts := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		parts[i] = c.Key + " " + string(c.comparator()) + " ?"
	}
	sep := " " + string(And) + " "
	if p.Combinator == Or {
		sep = " " + string(Or) + " "
	}
	return strings.Join(parts, sep)
}

func (c Clause) comparator() Comparator {
	if c.Comparator == "" {
		return Equal
	}
	return c.Comparator
}
