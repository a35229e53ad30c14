/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"sort"

	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/errors"
)

// Table is the descriptor cache of one repository. It is built once from the
// repository's declarations and never changes afterwards.
type Table struct {
	byName map[string]*Descriptor
}

// NewTable derives every declaration against schema. The first malformed or
// duplicate declaration aborts construction with a QueryDerivationError.
func NewTable(schema *entity.Schema, decls ...Declaration) (*Table, error) {
	t := &Table{byName: make(map[string]*Descriptor, len(decls))}
	for _, decl := range decls {
		name := decl.MethodName()
		if _, exists := t.byName[name]; exists {
			return nil, errors.NewQueryDerivationError(name, "declared more than once")
		}
		d, err := decl.derive(schema)
		if err != nil {
			return nil, err
		}
		t.byName[name] = d
	}
	return t, nil
}

// Lookup returns the descriptor declared under name.
func (t *Table) Lookup(name string) (*Descriptor, bool) {
	d, ok := t.byName[name]
	return d, ok
}

// Names returns the declared method names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.byName))
	for n := range t.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of declared queries.
func (t *Table) Len() int {
	return len(t.byName)
}
