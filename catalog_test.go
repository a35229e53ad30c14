/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package reactiverepo

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/suparena/reactiverepo/datastore/memory"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/repository"
)

type testUser struct {
	ID   string `json:"id" entity:"id"`
	Name string `json:"name"`
}

type testProduct struct {
	ID    string  `json:"id" entity:"id"`
	Price float64 `json:"price"`
}

func newRepo[T any](t *testing.T) *repository.Repository[T] {
	t.Helper()
	store, err := memory.New[T]()
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	repo, err := repository.New[T](store)
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	return repo
}

func TestCatalog(t *testing.T) {
	t.Run("BasicOperations", func(t *testing.T) {
		c := NewCatalog()
		users := newRepo[testUser](t)
		if err := Add(c, "users", users); err != nil {
			t.Fatalf("Failed to add: %v", err)
		}

		got, err := Lookup[*repository.Repository[testUser]](c, "users")
		if err != nil {
			t.Fatalf("Failed to look up: %v", err)
		}
		if got != users {
			t.Fatal("Lookup returned a different repository")
		}

		if diff := cmp.Diff([]string{"users"}, c.Names()); diff != "" {
			t.Fatalf("names mismatch (-want +got):\n%s", diff)
		}

		if err := c.Remove("users"); err != nil {
			t.Fatalf("Failed to remove: %v", err)
		}
		if _, err := Lookup[*repository.Repository[testUser]](c, "users"); !errors.IsNotFound(err) {
			t.Fatalf("Expected not found after removal, got %v", err)
		}
		if err := c.Remove("users"); !errors.IsNotFound(err) {
			t.Fatalf("Expected not found on second removal, got %v", err)
		}
	})

	t.Run("DuplicateAdd", func(t *testing.T) {
		c := NewCatalog()
		if err := Add(c, "users", newRepo[testUser](t)); err != nil {
			t.Fatalf("First add failed: %v", err)
		}
		if err := Add(c, "users", newRepo[testUser](t)); !errors.IsAlreadyExists(err) {
			t.Fatalf("Expected already exists, got %v", err)
		}
	})

	t.Run("WrongType", func(t *testing.T) {
		c := NewCatalog()
		Add(c, "items", newRepo[testProduct](t))
		if _, err := Lookup[*repository.Repository[testUser]](c, "items"); !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error, got %v", err)
		}
		_, err := Register(c, "items", func() (*repository.Repository[testUser], error) {
			t.Fatal("build must not run for a taken name")
			return nil, nil
		})
		if !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error, got %v", err)
		}
	})

	t.Run("RegisterBuildsOnce", func(t *testing.T) {
		c := NewCatalog()
		var (
			builds int
			mu     sync.Mutex
			wg     sync.WaitGroup
		)
		results := make([]*repository.Repository[testUser], 8)
		for i := range results {
			wg.Add(1)
			go func() {
				defer wg.Done()
				repo, err := Register(c, "users", func() (*repository.Repository[testUser], error) {
					mu.Lock()
					builds++
					mu.Unlock()
					return newRepo[testUser](t), nil
				})
				if err != nil {
					t.Errorf("Register: %v", err)
				}
				results[i] = repo
			}()
		}
		wg.Wait()
		if builds != 1 {
			t.Fatalf("Expected one build, got %d", builds)
		}
		for _, r := range results[1:] {
			if r != results[0] {
				t.Fatal("Register returned different repositories")
			}
		}
	})

	t.Run("BuildFailure", func(t *testing.T) {
		c := NewCatalog()
		boom := stderrors.New("no driver")
		_, err := Register(c, "users", func() (*repository.Repository[testUser], error) {
			return nil, boom
		})
		if !stderrors.Is(err, boom) {
			t.Fatalf("Expected %v, got %v", boom, err)
		}
		if len(c.Names()) != 0 {
			t.Fatalf("Failed build must not be stored, have %v", c.Names())
		}
	})
}

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	if info.Version != Version || info.GoVersion == "" {
		t.Fatalf("unexpected version info %+v", info)
	}
}
