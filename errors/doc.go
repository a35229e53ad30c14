/*
Package errors provides semantic error types for the reactive repository.

Sentinels can be checked with the standard errors.Is() function or the
provided helpers:

	var (
	    ErrNotFound        = errors.New("entity not found")
	    ErrAlreadyExists   = errors.New("entity already exists")
	    ErrInvalidInput    = errors.New("invalid input")
	    ErrConditionFailed = errors.New("condition check failed")
	    ErrQueryDerivation = errors.New("query derivation failed")
	    ErrStore           = errors.New("store operation failed")
	)

Two error types carry the repository's failure taxonomy:

  - QueryDerivationError: a declared query method is malformed. Raised while
    the repository is constructed, never by an operation.
  - StoreError: the store driver rejected an operation. It wraps the driver
    error, so a failed delete of a missing document is both a store error and
    a not-found error.

Usage:

	deleted := repo.Delete(ctx, user)
	if _, _, err := deleted.Await(ctx); err != nil {
	    if errors.IsNotFound(err) {
	        // the document was already gone
	    }
	    return err
	}

Absence on a find is not an error; futures report it as a missing value.
*/
package errors
