/*
Package reactive provides the two result handles a repository returns.

Future[T] resolves once, to a value, to absent, or to an error. Sequence[T] is
a one-shot, finite stream that ends with completion or a single error.

Every repository operation returns one of them immediately; the work runs on
its own goroutine. Blocking is always explicit and named:

	user, ok, err := repo.FindByID(ctx, "1").Await(ctx)

	users, err := repo.FindAll(ctx).Collect(ctx)

	for user, err := range repo.Find(ctx, "findByLastName", "Martin").All() {
	    ...
	}

Non-blocking consumers use Subscribe instead. A sequence that is abandoned,
by Cancel, by breaking out of All, or by being dropped unconsumed, stops its
producer so no driver request is left holding resources.
*/
package reactive
