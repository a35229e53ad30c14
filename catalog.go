/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package reactiverepo

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/suparena/reactiverepo/errors"
)

// Catalog keeps the repositories of an application under unique names, so
// that wiring code builds each one once and hands them out by name. It is
// safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]any)}
}

// Add stores repo under name. A name can only be used once.
func Add[R any](c *Catalog, name string, repo R) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; exists {
		return errors.NewAlreadyExistsError("repository", name)
	}
	c.entries[name] = repo
	return nil
}

// Register returns the repository stored under name, building and storing
// it first when the name is free. build runs at most once per name, under
// the catalog lock.
func Register[R any](c *Catalog, name string, build func() (R, error)) (R, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero R
	if existing, exists := c.entries[name]; exists {
		repo, ok := existing.(R)
		if !ok {
			return zero, mismatch[R](name, existing)
		}
		return repo, nil
	}
	repo, err := build()
	if err != nil {
		return zero, fmt.Errorf("building repository %q: %w", name, err)
	}
	c.entries[name] = repo
	return repo, nil
}

// Lookup returns the repository stored under name as an R.
func Lookup[R any](c *Catalog, name string) (R, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero R
	existing, exists := c.entries[name]
	if !exists {
		return zero, errors.NewNotFoundError("repository", name)
	}
	repo, ok := existing.(R)
	if !ok {
		return zero, mismatch[R](name, existing)
	}
	return repo, nil
}

// Remove forgets the repository stored under name.
func (c *Catalog) Remove(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; !exists {
		return errors.NewNotFoundError("repository", name)
	}
	delete(c.entries, name)
	return nil
}

// Names returns the registered names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func mismatch[R any](name string, existing any) error {
	return errors.NewValidationError(name, fmt.Sprintf("repository is a %T, not a %s", existing, reflect.TypeFor[R]()))
}
