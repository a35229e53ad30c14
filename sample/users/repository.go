/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package users

import (
	"context"

	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/datastore"
	"github.com/suparena/reactiverepo/query"
	"github.com/suparena/reactiverepo/reactive"
	"github.com/suparena/reactiverepo/repository"
)

const (
	queryFindByFirstName  = "findByFirstName"
	queryFindByLastName   = "findByLastName"
	queryDeleteByLastName = "deleteByLastName"
)

// Queries are the derived queries a UserRepository answers.
var Queries = []query.Declaration{
	query.FindMany(queryFindByFirstName, "firstName"),
	query.FindMany(queryFindByLastName, "lastName"),
	query.DeleteBy(queryDeleteByLastName, "lastName"),
}

// UserRepository is the typed repository for User, with the demo's derived
// queries as methods.
type UserRepository struct {
	*repository.Repository[User]
	logger *zap.Logger
}

// NewUserRepository builds the repository over driver. Extra options are
// applied after the user queries are declared.
func NewUserRepository(driver datastore.Driver[User], logger *zap.Logger, opts ...repository.Option) (*UserRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]repository.Option{
		repository.WithQueries(Queries...),
		repository.WithLogger(logger),
	}, opts...)
	repo, err := repository.New[User](driver, opts...)
	if err != nil {
		return nil, err
	}
	return &UserRepository{Repository: repo, logger: logger}, nil
}

// FindByFirstName streams the users with the given first name.
func (r *UserRepository) FindByFirstName(ctx context.Context, firstName string) *reactive.Sequence[User] {
	return r.Find(ctx, queryFindByFirstName, firstName)
}

// FindByLastName streams the users with the given last name.
func (r *UserRepository) FindByLastName(ctx context.Context, lastName string) *reactive.Sequence[User] {
	return r.Find(ctx, queryFindByLastName, lastName)
}

// DeleteByLastName deletes the users with the given last name and streams
// each one once it is gone.
func (r *UserRepository) DeleteByLastName(ctx context.Context, lastName string) *reactive.Sequence[User] {
	return r.DeleteBy(ctx, queryDeleteByLastName, lastName)
}

// Setup empties the store before the demo starts. It blocks until every
// user is deleted, so no later save can race the cleanup.
func (r *UserRepository) Setup(ctx context.Context) error {
	r.logger.Info("clearing users before start")
	return r.DeleteAll(ctx).Err(ctx)
}

// Cleanup empties the store on teardown and blocks until done.
func (r *UserRepository) Cleanup(ctx context.Context) error {
	r.logger.Info("clearing users on shutdown")
	return r.DeleteAll(ctx).Err(ctx)
}
