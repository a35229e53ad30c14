/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"
	"strings"
)

var (
	storageNames = make(map[reflect.Type]string)
	nameOwners   = make(map[string]reflect.Type)
)

// RegisterStorageName sets the collection or key name entity type T is
// stored under by drivers that keep one namespace per type. Registering a
// name already owned by another type panics.
func RegisterStorageName[T any](name string) {
	t := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()
	if owner, exists := nameOwners[name]; exists && owner != t {
		panic(fmt.Sprintf("type registry: storage name %q already registered for %s", name, owner))
	}
	if prev, ok := storageNames[t]; ok {
		delete(nameOwners, prev)
	}
	storageNames[t] = name
	nameOwners[name] = t
}

// StorageName returns the registered storage name of T, or its lower-cased
// type name when none was registered.
func StorageName[T any]() string {
	t := reflect.TypeFor[T]()

	mu.RLock()
	defer mu.RUnlock()
	if name, ok := storageNames[t]; ok {
		return name
	}
	return strings.ToLower(t.Name())
}
