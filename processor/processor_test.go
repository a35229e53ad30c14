/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package processor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const openAPIDoc = `
openapi: 3.0.3
info:
  title: demo
  version: 1.0.0
components:
  schemas:
    User:
      type: object
      x-storage-name: users
      x-dynamodb-indexmap:
        PK: "USER#{id}"
        SK: "USER#{id}"
        GSI1PK: "NAME#{lastName}"
      properties:
        id:
          type: string
        lastName:
          type: string
    Ticket:
      type: object
      x-storage-name: tickets
      properties:
        id:
          type: string
    Address:
      type: object
      properties:
        street:
          type: string
`

func TestParse(t *testing.T) {
	mappings, err := Parse(strings.NewReader(openAPIDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Mapping{
		{TypeName: "Ticket", StorageName: "tickets", Properties: []string{"id"}},
		{
			TypeName:    "User",
			StorageName: "users",
			IndexMap:    map[string]string{"PK": "USER#{id}", "SK": "USER#{id}", "GSI1PK": "NAME#{lastName}"},
			Properties:  []string{"id", "lastName"},
		},
	}
	if diff := cmp.Diff(want, mappings); diff != "" {
		t.Fatalf("mappings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"PK", "SK", "GSI1PK"}, mappings[1].Keys()); diff != "" {
		t.Fatalf("key order mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "missing SK",
			doc: `
components:
  schemas:
    User:
      x-dynamodb-indexmap:
        PK: "USER#{id}"
      properties:
        id: {type: string}
`,
			want: "SK template",
		},
		{
			name: "unknown macro",
			doc: `
components:
  schemas:
    User:
      x-dynamodb-indexmap:
        PK: "USER#{userId}"
        SK: "PROFILE"
      properties:
        id: {type: string}
`,
			want: `unknown property "userId"`,
		},
		{
			name: "bad type name",
			doc: `
components:
  schemas:
    user-profile:
      x-storage-name: profiles
`,
			want: "not a valid Go type name",
		},
		{
			name: "not yaml",
			doc:  "components: [",
			want: "failed to parse",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	mappings, err := Parse(strings.NewReader(openAPIDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	var buf bytes.Buffer
	if err := Generate(&buf, "users", mappings); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := `// Code generated by indexmap; DO NOT EDIT.

package users

import "github.com/suparena/reactiverepo/registry"

func init() {
	registry.RegisterStorageName[Ticket]("tickets")
	registry.RegisterStorageName[User]("users")
	registry.RegisterIndexMap[User](map[string]string{
		"PK":     "USER#{id}",
		"SK":     "USER#{id}",
		"GSI1PK": "NAME#{lastName}",
	})
}
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("generated code mismatch (-want +got):\n%s", diff)
	}

	if err := Generate(&buf, "not-a-package", mappings); err == nil {
		t.Fatal("expected an invalid package name to be rejected")
	}
}
