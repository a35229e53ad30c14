/*
Package reactiverepo is a reactive, generic repository layer over
partition-keyed document stores.

Entity types are plain structs. The id field is tagged `entity:"id"`, an
optional partition key `entity:"partitionKey"`, and store-assigned fields
`entity:"system"`; document keys follow the json tags.

The layers, bottom up:
  - entity: reflected entity schemas, identity, validation and equality
  - query: derivation of findBy/deleteBy declarations into descriptors
  - reactive: Future and Sequence result handles with explicit blocking adapters
  - datastore: the driver contract, with memory, DynamoDB, MongoDB and Redis drivers
  - repository: the reactive CRUD and derived query surface per entity type

Basic Usage:

	backend, _ := factory.Open(ctx, cfg.Store, logger)
	driver, _ := factory.Driver[User](backend)

	repo, err := repository.New[User](driver,
		repository.WithQueries(query.FindMany("findByLastName", "lastName")),
	)

	saved, ok, err := repo.Save(ctx, user).Await(ctx)
	martins, err := repo.Find(ctx, "findByLastName", "Martin").Collect(ctx)

A Catalog keeps an application's repositories by name:

	catalog := reactiverepo.NewCatalog()
	reactiverepo.Add(catalog, "users", repo)
	users, _ := reactiverepo.Lookup[*repository.Repository[User]](catalog, "users")
*/
package reactiverepo
