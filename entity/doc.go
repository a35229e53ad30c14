/*
Package entity describes the records a repository persists.

An entity is a plain Go struct. Struct tags declare its storage shape:

	type User struct {
	    ID        string           `json:"id" entity:"id"`
	    Tenant    *string          `json:"tenant,omitempty" entity:"partitionKey"`
	    FirstName *string          `json:"firstName,omitempty"`
	    ETag      string           `json:"_etag,omitempty" entity:"system"`
	    Modified  *strfmt.DateTime `json:"_ts,omitempty" entity:"system"`
	}

The json tag names the attribute in the stored document. Pointer fields are
optional: nil means "not supplied", which is distinct from a pointer to the
empty string and is omitted from the document. When no partition key is
declared, the id routes the document.
*/
package entity
