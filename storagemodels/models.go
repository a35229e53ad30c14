/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"encoding/json"
	"fmt"
)

// Document is the schemaless form of an entity as drivers store it: the
// entity's json encoding decoded into a generic map. Numbers are float64,
// unset optional attributes are absent.
type Document map[string]any

// Encode converts an entity into its document form.
func Encode[T any](entity T) (Document, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode entity document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("entity %T does not encode to a document", entity)
	}
	return doc, nil
}

// Decode converts a document back into an entity.
func Decode[T any](doc Document) (T, error) {
	var out T
	raw, err := json.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal document into %T: %w", out, err)
	}
	return out, nil
}

// Normalize converts a single attribute value into the representation it has
// inside a Document, so it can be compared with stored values.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value %v: %w", v, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize value %v: %w", v, err)
	}
	return out, nil
}

// Clone returns a shallow copy of the document.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
