/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package users

import (
	"fmt"

	"github.com/go-openapi/strfmt"
)

//go:generate go run github.com/suparena/reactiverepo/cmd/indexmap -i users.yaml -p users -o zz_registry.go

// User is the entity of the demo: a person with a postal address.
type User struct {
	ID        string `json:"id" entity:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`

	ETag         string           `json:"etag,omitempty" entity:"system"`
	LastModified *strfmt.DateTime `json:"lastModified,omitempty" entity:"system"`
}

// NewUser builds a user without system fields.
func NewUser(id, firstName, lastName, address string) User {
	return User{ID: id, FirstName: firstName, LastName: lastName, Address: address}
}

// Stamp records the driver-assigned version and modification time.
func (u *User) Stamp(etag string, modified strfmt.DateTime) {
	u.ETag = etag
	u.LastModified = &modified
}

func (u User) String() string {
	return fmt.Sprintf("User[id=%s, firstName=%s, lastName=%s, address=%s]", u.ID, u.FirstName, u.LastName, u.Address)
}
