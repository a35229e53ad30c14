/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package users

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/suparena/reactiverepo/reactive"
)

const demoAddress = "4567 Main St Buffalo, NY 98052"

// DemoUsers returns the five users the demo works with. The third and
// fourth share the last name Martin.
func DemoUsers() []User {
	return []User{
		NewUser("1", "Tasha", "Calderon", demoAddress),
		NewUser("2", "John", "Doe", demoAddress),
		NewUser("3", "Bob", "Martin", demoAddress),
		NewUser("4", "Paul", "Martin", demoAddress),
		NewUser("5", "Luke", "Robertson", demoAddress),
	}
}

// Report is what a demo run observed.
type Report struct {
	Saved       User
	ByFirstName []User
	SavedAll    []User
	ByLastName  []User
	Deleted     []User
	Remaining   []User
}

// Run walks through the repository the way the demo narrates it: save one
// user and read it back, save the rest, query by first and last name,
// delete the Martins, delete one more user, and list what is left after each
// step. Setup and Cleanup are the caller's business.
func Run(ctx context.Context, repo *UserRepository, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	users := DemoUsers()
	first := users[0]
	report := &Report{}

	logger.Info("saving user", zap.Stringer("user", first))
	saved, ok, err := repo.Save(ctx, first).Await(ctx)
	if err != nil {
		return report, fmt.Errorf("save %s: %w", first.ID, err)
	}
	if !ok || saved.FirstName != first.FirstName {
		return report, fmt.Errorf("saved user first name doesn't match: %v", saved)
	}
	report.Saved = saved

	logger.Info("finding users by first name", zap.String("firstName", first.FirstName))
	report.ByFirstName, err = logEach(ctx, logger, "user", repo.FindByFirstName(ctx, first.FirstName))
	if err != nil {
		return report, fmt.Errorf("find by first name: %w", err)
	}

	found, ok, err := repo.FindByID(ctx, first.ID).Await(ctx)
	if err != nil {
		return report, fmt.Errorf("find %s: %w", first.ID, err)
	}
	if !ok {
		return report, fmt.Errorf("cannot find user %s", first.ID)
	}

	logger.Info("saving all users")
	report.SavedAll, err = logEach(ctx, logger, "saved user", repo.SaveAll(ctx, users[1:]))
	if err != nil {
		return report, fmt.Errorf("save all: %w", err)
	}

	if err := listAll(ctx, repo, logger); err != nil {
		return report, err
	}

	logger.Info("finding user by id", zap.String("id", first.ID))
	if found.FirstName != first.FirstName || found.LastName != first.LastName {
		return report, fmt.Errorf("query result doesn't match: %v", found)
	}
	logger.Info("found", zap.Stringer("user", found))

	lastName := "Martin"
	logger.Info("finding users by last name", zap.String("lastName", lastName))
	report.ByLastName, err = logEach(ctx, logger, "found user", repo.FindByLastName(ctx, lastName))
	if err != nil {
		return report, fmt.Errorf("find by last name: %w", err)
	}

	logger.Info("deleting users by last name", zap.String("lastName", lastName))
	report.Deleted, err = logEach(ctx, logger, "deleted user", repo.DeleteByLastName(ctx, lastName))
	if err != nil {
		return report, fmt.Errorf("delete by last name: %w", err)
	}

	if err := listAll(ctx, repo, logger); err != nil {
		return report, err
	}

	second := users[1]
	logger.Info("deleting user", zap.Stringer("user", second))
	if err := repo.Delete(ctx, second).Err(ctx); err != nil {
		return report, fmt.Errorf("delete %s: %w", second.ID, err)
	}

	report.Remaining, err = logEach(ctx, logger, "user", repo.FindAll(ctx))
	if err != nil {
		return report, fmt.Errorf("find all: %w", err)
	}
	return report, nil
}

func listAll(ctx context.Context, repo *UserRepository, logger *zap.Logger) error {
	logger.Info("finding all users")
	if _, err := logEach(ctx, logger, "user", repo.FindAll(ctx)); err != nil {
		return fmt.Errorf("find all: %w", err)
	}
	return nil
}

func logEach(ctx context.Context, logger *zap.Logger, msg string, seq *reactive.Sequence[User]) ([]User, error) {
	var out []User
	err := seq.ForEach(ctx, func(u User) error {
		logger.Info(msg, zap.Stringer("user", u))
		out = append(out, u)
		return nil
	})
	return out, err
}
