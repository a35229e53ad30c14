/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package repository provides Repository, the reactive CRUD and derived
// query surface for one entity type over a datastore.Driver.
//
// Queries are declared when the repository is built and derived once:
//
//	repo, err := repository.New[User](driver,
//		repository.WithQueries(
//			query.FindMany("findByLastName", "lastName"),
//			query.DeleteBy("deleteByLastName", "lastName"),
//		),
//		repository.WithLogger(logger),
//	)
//
// A malformed declaration makes New fail with a QueryDerivationError. Every
// operation returns a handle at once; the driver work runs on goroutines and
// only the handles' named adapters block:
//
//	martins, err := repo.Find(ctx, "findByLastName", "Martin").Collect(ctx)
//	u, ok, err := repo.FindByID(ctx, "1").Await(ctx)
//
// Driver failures surface as *errors.StoreError; absence on a find is a
// value, not an error. SaveAll, DeleteBy and DeleteAll fan per-entity driver
// calls out over a bounded pool (WithConcurrency).
package repository
