/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"context"
	stderrors "errors"
	"sort"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/suparena/reactiverepo/datastore"
	"github.com/suparena/reactiverepo/datastore/memory"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/query"
)

type user struct {
	ID        string `json:"id" entity:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	ETag      string `json:"etag,omitempty" entity:"system"`
}

func (u *user) Stamp(etag string, _ strfmt.DateTime) { u.ETag = etag }

type order struct {
	ID       string `json:"id" entity:"id"`
	Customer string `json:"customer" entity:"partitionKey"`
	Total    int    `json:"total"`
}

var (
	ignoreETag = cmpopts.IgnoreFields(user{}, "ETag")
	byID       = cmpopts.SortSlices(func(a, b user) bool { return a.ID < b.ID })
)

var userQueries = []query.Declaration{
	query.FindMany("findByFirstName", "firstName"),
	query.FindMany("findByLastName", "lastName"),
	query.FindOne("findByFirstNameAndLastName", "firstName", "lastName"),
	query.DeleteBy("deleteByLastName", "lastName"),
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newUserRepo(t *testing.T, opts ...Option) (*Repository[user], *memory.Store[user]) {
	t.Helper()
	store, err := memory.New[user]()
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	repo, err := New[user](store, append([]Option{WithQueries(userQueries...)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return repo, store
}

// scanOnly hides the optional capabilities of a driver.
type scanOnly[T any] struct {
	datastore.Driver[T]
}

func TestNew(t *testing.T) {
	t.Run("nil driver", func(t *testing.T) {
		if _, err := New[user](nil); !errors.IsValidationError(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("malformed declaration fails construction", func(t *testing.T) {
		store, _ := memory.New[user]()
		for _, decl := range []query.Declaration{
			query.FindMany("findByNickname", "nickname"),
			query.FindMany("findByFirstName"),
			query.FindMany("searchByFirstName", "firstName"),
			query.FindMany("findByETag", "etag"),
		} {
			_, err := New[user](store, WithQueries(decl))
			if !errors.IsQueryDerivationError(err) {
				t.Fatalf("%s: expected QueryDerivationError, got %v", decl.MethodName(), err)
			}
		}
	})

	t.Run("duplicate declaration", func(t *testing.T) {
		store, _ := memory.New[user]()
		_, err := New[user](store, WithQueries(
			query.FindMany("findByLastName", "lastName"),
			query.FindMany("findByLastName", "name"),
		))
		if !errors.IsQueryDerivationError(err) {
			t.Fatalf("expected QueryDerivationError, got %v", err)
		}
	})

	t.Run("queries are listed", func(t *testing.T) {
		repo, _ := newUserRepo(t)
		want := []string{"deleteByLastName", "findByFirstName", "findByFirstNameAndLastName", "findByLastName"}
		if diff := cmp.Diff(want, repo.Queries()); diff != "" {
			t.Fatalf("queries mismatch (-want +got):\n%s", diff)
		}
		d, ok := repo.Descriptor("findByFirstNameAndLastName")
		if !ok || d.Cardinality() != query.Single || d.Arity() != 2 {
			t.Fatalf("unexpected descriptor %v", d)
		}
		if repo.Schema().TypeName() != "user" {
			t.Fatalf("unexpected schema %s", repo.Schema().TypeName())
		}
	})
}

func TestUserScenario(t *testing.T) {
	ctx := testContext(t)
	repo, _ := newUserRepo(t)

	if err := repo.DeleteAll(ctx).Err(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}

	u1 := user{ID: "1", FirstName: "Tasha", LastName: "Calderon", Address: "Rue du Grenier Saint-Lazare"}
	saved, ok, err := repo.Save(ctx, u1).Await(ctx)
	if err != nil || !ok {
		t.Fatalf("Save: %v (present=%v)", err, ok)
	}
	if saved.ETag == "" {
		t.Fatalf("expected driver-assigned etag on %+v", saved)
	}

	found, ok, err := repo.FindByID(ctx, "1").Await(ctx)
	if err != nil || !ok {
		t.Fatalf("FindByID: %v (present=%v)", err, ok)
	}
	if diff := cmp.Diff(u1, found, ignoreETag); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	tashas, err := repo.Find(ctx, "findByFirstName", "Tasha").Collect(ctx)
	if err != nil {
		t.Fatalf("findByFirstName: %v", err)
	}
	if diff := cmp.Diff([]user{u1}, tashas, ignoreETag); diff != "" {
		t.Fatalf("findByFirstName mismatch (-want +got):\n%s", diff)
	}

	u2 := user{ID: "2", FirstName: "Rob", LastName: "Dillon", Address: "Avenue de l'Opera"}
	u3 := user{ID: "3", FirstName: "Sam", LastName: "Martin", Address: "Rue de Rivoli"}
	u4 := user{ID: "4", FirstName: "Lee", LastName: "Martin", Address: "Place Vendome"}
	u5 := user{ID: "5", FirstName: "Kim", LastName: "Okafor", Address: "Quai d'Orsay"}
	savedAll, err := repo.SaveAll(ctx, []user{u2, u3, u4, u5}).Collect(ctx)
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if diff := cmp.Diff([]user{u2, u3, u4, u5}, savedAll, ignoreETag, byID); diff != "" {
		t.Fatalf("SaveAll mismatch (-want +got):\n%s", diff)
	}

	martins, err := repo.Find(ctx, "findByLastName", "Martin").Collect(ctx)
	if err != nil {
		t.Fatalf("findByLastName: %v", err)
	}
	if diff := cmp.Diff([]user{u3, u4}, martins, ignoreETag, byID); diff != "" {
		t.Fatalf("findByLastName mismatch (-want +got):\n%s", diff)
	}

	removed, err := repo.DeleteBy(ctx, "deleteByLastName", "Martin").Collect(ctx)
	if err != nil {
		t.Fatalf("deleteByLastName: %v", err)
	}
	if diff := cmp.Diff([]user{u3, u4}, removed, ignoreETag, byID); diff != "" {
		t.Fatalf("deleteByLastName mismatch (-want +got):\n%s", diff)
	}

	rest, err := repo.FindAll(ctx).Collect(ctx)
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if diff := cmp.Diff([]user{u1, u2, u5}, rest, ignoreETag, byID); diff != "" {
		t.Fatalf("FindAll mismatch (-want +got):\n%s", diff)
	}

	if err := repo.Delete(ctx, u2).Err(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	n, _, err := repo.Count(ctx).Await(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v; want 2", n, err)
	}

	if err := repo.DeleteAll(ctx).Err(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	left, err := repo.FindAll(ctx).Collect(ctx)
	if err != nil || len(left) != 0 {
		t.Fatalf("FindAll after DeleteAll = %v, %v", left, err)
	}
}

func TestSave(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		ctx := testContext(t)
		repo, store := newUserRepo(t)
		_, _, err := repo.Save(ctx, user{FirstName: "Nobody"}).Await(ctx)
		if !errors.IsValidationError(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if store.Len() != 0 {
			t.Fatalf("driver should not have been called")
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		ctx := testContext(t)
		repo, store := newUserRepo(t)
		repo.Save(ctx, user{ID: "1", FirstName: "Tasha"}).Err(ctx)
		if err := repo.Save(ctx, user{ID: "1", FirstName: "Natasha"}).Err(ctx); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, _, _ := repo.FindByID(ctx, "1").Await(ctx)
		if got.FirstName != "Natasha" || store.Len() != 1 {
			t.Fatalf("got %+v with %d stored", got, store.Len())
		}
	})

	t.Run("driver failure is a store error", func(t *testing.T) {
		ctx := testContext(t)
		repo, store := newUserRepo(t)
		boom := stderrors.New("connection reset")
		store.WithPutError(boom)
		_, ok, err := repo.Save(ctx, user{ID: "1"}).Await(ctx)
		if ok || !errors.IsStoreError(err) || !stderrors.Is(err, boom) {
			t.Fatalf("expected store error wrapping %v, got %v", boom, err)
		}
		var se *errors.StoreError
		if !stderrors.As(err, &se) || se.Op != OpSave || se.Key != "1" {
			t.Fatalf("unexpected store error %#v", err)
		}
	})
}

func TestSaveAll(t *testing.T) {
	t.Run("failure keeps earlier successes", func(t *testing.T) {
		ctx := testContext(t)
		repo, store := newUserRepo(t, WithConcurrency(1))
		boom := stderrors.New("throughput exceeded")
		store.WithPutFunc(func(u user) error {
			if u.ID == "3" {
				return boom
			}
			return nil
		})

		got, err := repo.SaveAll(ctx, []user{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}).Collect(ctx)
		if !stderrors.Is(err, boom) || !errors.IsStoreError(err) {
			t.Fatalf("expected store error wrapping %v, got %v", boom, err)
		}
		if diff := cmp.Diff([]user{{ID: "1"}, {ID: "2"}}, got, ignoreETag, byID); diff != "" {
			t.Fatalf("emitted mismatch (-want +got):\n%s", diff)
		}
		if _, ok, _ := repo.FindByID(ctx, "4").Await(ctx); ok {
			t.Fatalf("no write should start after the first failure")
		}
	})

	t.Run("every entity is emitted once", func(t *testing.T) {
		ctx := testContext(t)
		repo, _ := newUserRepo(t, WithConcurrency(4), WithBufferSize(0))
		var in []user
		for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
			in = append(in, user{ID: id, LastName: "Batch"})
		}
		got, err := repo.SaveAll(ctx, in).Collect(ctx)
		if err != nil {
			t.Fatalf("SaveAll: %v", err)
		}
		if diff := cmp.Diff(in, got, ignoreETag, byID); diff != "" {
			t.Fatalf("emitted mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty input completes", func(t *testing.T) {
		ctx := testContext(t)
		repo, _ := newUserRepo(t)
		got, err := repo.SaveAll(ctx, nil).Collect(ctx)
		if err != nil || len(got) != 0 {
			t.Fatalf("got %v, %v", got, err)
		}
	})
}

func TestFindByID(t *testing.T) {
	t.Run("absent is not an error", func(t *testing.T) {
		ctx := testContext(t)
		repo, _ := newUserRepo(t)
		_, ok, err := repo.FindByID(ctx, "missing").Await(ctx)
		if ok || err != nil {
			t.Fatalf("expected absent, got present=%v err=%v", ok, err)
		}
		exists, _, err := repo.ExistsByID(ctx, "missing").Await(ctx)
		if exists || err != nil {
			t.Fatalf("ExistsByID = %v, %v", exists, err)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		ctx := testContext(t)
		repo, _ := newUserRepo(t)
		if _, _, err := repo.FindByID(ctx, "").Await(ctx); !errors.IsValidationError(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("driver failure", func(t *testing.T) {
		ctx := testContext(t)
		repo, store := newUserRepo(t)
		store.WithGetError(stderrors.New("timeout"))
		if _, _, err := repo.FindByID(ctx, "1").Await(ctx); !errors.IsStoreError(err) {
			t.Fatalf("expected store error, got %v", err)
		}
	})

	t.Run("partitioned type", func(t *testing.T) {
		ctx := testContext(t)
		store, _ := memory.New[order]()
		repo, err := New[order](store)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		o := order{ID: "o-1", Customer: "c-9", Total: 42}
		if err := repo.Save(ctx, o).Err(ctx); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, ok, err := repo.FindByID(ctx, "o-1").Await(ctx)
		if err != nil || !ok || got != o {
			t.Fatalf("FindByID = %+v, %v, %v", got, ok, err)
		}
		got, ok, err = repo.FindByIDInPartition(ctx, "o-1", "c-9").Await(ctx)
		if err != nil || !ok || got != o {
			t.Fatalf("FindByIDInPartition = %+v, %v, %v", got, ok, err)
		}
		if _, ok, _ := repo.FindByIDInPartition(ctx, "o-1", "c-1").Await(ctx); ok {
			t.Fatalf("expected absent in another partition")
		}
		exists, _, _ := repo.ExistsByID(ctx, "o-1").Await(ctx)
		if !exists {
			t.Fatalf("expected o-1 to exist")
		}

		if err := repo.DeleteByID(ctx, "o-1", "c-1").Err(ctx); !errors.IsNotFound(err) {
			t.Fatalf("expected not found in the wrong partition, got %v", err)
		}
		if err := repo.Delete(ctx, o).Err(ctx); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	})
}

func TestDerivedQueries(t *testing.T) {
	ctx := testContext(t)
	repo, _ := newUserRepo(t)
	people := []user{
		{ID: "1", FirstName: "Tasha", LastName: "Calderon"},
		{ID: "2", FirstName: "Tasha", LastName: "Martin"},
		{ID: "3", FirstName: "Sam", LastName: "Martin"},
	}
	if _, err := repo.SaveAll(ctx, people).Collect(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	t.Run("find one", func(t *testing.T) {
		got, ok, err := repo.FindOne(ctx, "findByFirstNameAndLastName", "Tasha", "Martin").Await(ctx)
		if err != nil || !ok || got.ID != "2" {
			t.Fatalf("FindOne = %+v, %v, %v", got, ok, err)
		}
		_, ok, err = repo.FindOne(ctx, "findByFirstNameAndLastName", "Sam", "Calderon").Await(ctx)
		if ok || err != nil {
			t.Fatalf("expected absent, got present=%v err=%v", ok, err)
		}
	})

	t.Run("no match is empty", func(t *testing.T) {
		got, err := repo.Find(ctx, "findByLastName", "Nobody").Collect(ctx)
		if err != nil || len(got) != 0 {
			t.Fatalf("got %v, %v", got, err)
		}
	})

	t.Run("pointer argument", func(t *testing.T) {
		name := "Sam"
		got, err := repo.Find(ctx, "findByFirstName", &name).Collect(ctx)
		if err != nil || len(got) != 1 || got[0].ID != "3" {
			t.Fatalf("got %v, %v", got, err)
		}
	})

	t.Run("misuse fails the handle", func(t *testing.T) {
		cases := map[string]error{}
		_, cases["unknown"] = repo.Find(ctx, "findByAddress", "x").Collect(ctx)
		_, cases["arity"] = repo.Find(ctx, "findByLastName").Collect(ctx)
		_, cases["type"] = repo.Find(ctx, "findByLastName", 7).Collect(ctx)
		_, cases["nil"] = repo.Find(ctx, "findByLastName", nil).Collect(ctx)
		_, cases["single via Find"] = repo.Find(ctx, "findByFirstNameAndLastName", "a", "b").Collect(ctx)
		_, _, cases["many via FindOne"] = repo.FindOne(ctx, "findByLastName", "Martin").Await(ctx)
		_, cases["find via DeleteBy"] = repo.DeleteBy(ctx, "findByLastName", "Martin").Collect(ctx)
		for name, err := range cases {
			if !errors.IsValidationError(err) {
				t.Errorf("%s: expected validation error, got %v", name, err)
			}
		}
		n, _, _ := repo.Count(ctx).Await(ctx)
		if n != int64(len(people)) {
			t.Fatalf("misuse must not touch the store, count = %d", n)
		}
	})

	t.Run("scan failure keeps delivered items", func(t *testing.T) {
		store, _ := memory.New[user]()
		r, _ := New[user](store, WithQueries(userQueries...))
		r.SaveAll(ctx, people).Collect(ctx)
		boom := stderrors.New("cursor lost")
		store.WithStreamError(1, boom)

		got, err := r.FindAll(ctx).Collect(ctx)
		if !stderrors.Is(err, boom) || !errors.IsStoreError(err) {
			t.Fatalf("expected store error wrapping %v, got %v", boom, err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one item before the failure, got %v", got)
		}
	})
}

func TestDeleteBy(t *testing.T) {
	seed := func(t *testing.T, repo *Repository[user]) {
		t.Helper()
		ctx := testContext(t)
		_, err := repo.SaveAll(ctx, []user{
			{ID: "1", LastName: "Calderon"},
			{ID: "2", LastName: "Martin"},
			{ID: "3", LastName: "Martin"},
		}).Collect(ctx)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	t.Run("emits only acknowledged deletes", func(t *testing.T) {
		ctx := testContext(t)
		repo, store := newUserRepo(t)
		seed(t, repo)
		boom := stderrors.New("access denied")
		store.WithDeleteError(boom)

		got, err := repo.DeleteBy(ctx, "deleteByLastName", "Martin").Collect(ctx)
		if !stderrors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
		if len(got) != 0 {
			t.Fatalf("nothing was deleted, yet %v was reported", got)
		}
		if store.Len() != 3 {
			t.Fatalf("store should be untouched, has %d", store.Len())
		}
	})

	t.Run("no match", func(t *testing.T) {
		ctx := testContext(t)
		repo, store := newUserRepo(t)
		seed(t, repo)
		got, err := repo.DeleteBy(ctx, "deleteByLastName", "Okafor").Collect(ctx)
		if err != nil || len(got) != 0 || store.Len() != 3 {
			t.Fatalf("got %v, %v with %d stored", got, err, store.Len())
		}
	})
}

func TestDelete(t *testing.T) {
	t.Run("missing entity", func(t *testing.T) {
		ctx := testContext(t)
		repo, _ := newUserRepo(t)
		err := repo.Delete(ctx, user{ID: "ghost"}).Err(ctx)
		if !errors.IsStoreError(err) || !errors.IsNotFound(err) {
			t.Fatalf("expected store error wrapping not found, got %v", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		ctx := testContext(t)
		repo, _ := newUserRepo(t)
		if err := repo.Delete(ctx, user{}).Err(ctx); !errors.IsValidationError(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if err := repo.DeleteByID(ctx, "", "").Err(ctx); !errors.IsValidationError(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestDeleteAllWithoutTruncate(t *testing.T) {
	ctx := testContext(t)
	store, _ := memory.New[user]()
	repo, err := New[user](scanOnly[user]{store}, WithConcurrency(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var in []user
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		in = append(in, user{ID: id})
	}
	if _, err := repo.SaveAll(ctx, in).Collect(ctx); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	n, _, err := repo.Count(ctx).Await(ctx)
	if err != nil || n != 7 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	if err := repo.DeleteAll(ctx).Err(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, %d left", store.Len())
	}

	store.WithStreamError(0, stderrors.New("scan failed"))
	if err := repo.DeleteAll(ctx).Err(ctx); !errors.IsStoreError(err) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestCancellation(t *testing.T) {
	t.Run("cancelled context fails the handle", func(t *testing.T) {
		repo, _ := newUserRepo(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := repo.Save(ctx, user{ID: "1"}).Err(context.Background()); !stderrors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("abandoned sequence stops the scan", func(t *testing.T) {
		ctx := testContext(t)
		repo, _ := newUserRepo(t, WithBufferSize(0))
		var in []user
		for _, id := range []string{"1", "2", "3", "4", "5"} {
			in = append(in, user{ID: id})
		}
		repo.SaveAll(ctx, in).Collect(ctx)

		seq := repo.FindAll(ctx)
		for range seq.All() {
			break
		}
		select {
		case <-seq.Done():
		case <-ctx.Done():
			t.Fatalf("producer did not stop after the consumer left")
		}
	})
}

func sortedIDs(users []user) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	sort.Strings(ids)
	return ids
}
