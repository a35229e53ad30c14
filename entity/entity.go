/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package entity

import (
	"reflect"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/suparena/reactiverepo/errors"
)

// Stamped is implemented by entities that carry store-assigned system fields.
// Drivers call Stamp on every successful write and merge the result into the
// entity returned to the caller.
type Stamped interface {
	Stamp(etag string, modified strfmt.DateTime)
}

// Stamp applies system fields to e when its type implements Stamped.
func Stamp[T any](e *T, etag string, modified time.Time) {
	if s, ok := any(e).(Stamped); ok {
		s.Stamp(etag, strfmt.DateTime(modified.UTC()))
	}
}

// Validate checks that e can be persisted: it must carry a non-empty id.
func Validate[T any](s *Schema, e T) error {
	if s.ID(e) == "" {
		return errors.NewValidationError(s.IDAttribute().Name, "id is required")
	}
	return nil
}

// Equal reports whether two entities hold the same attribute values.
// Pointer attributes compare by the value they point to, two unset
// attributes are equal, and system fields are ignored.
func Equal[T any](a, b T) bool {
	s, err := SchemaOf[T]()
	if err != nil {
		return reflect.DeepEqual(a, b)
	}
	va := reflect.ValueOf(&a).Elem()
	vb := reflect.ValueOf(&b).Elem()
	for _, attr := range s.attrs {
		if attr.System {
			continue
		}
		if !reflect.DeepEqual(va.FieldByIndex(attr.index).Interface(), vb.FieldByIndex(attr.index).Interface()) {
			return false
		}
	}
	return true
}
