/*
Package processor generates storage registrations from an OpenAPI document.

Schemas opt in with vendor extensions:

	User:
	  type: object
	  x-storage-name: users
	  x-dynamodb-indexmap:
	    PK: "USER#{id}"
	    SK: "USER#{id}"
	  properties:
	    id:
	      type: string

Macros reference document keys (the json names of the Go fields). The
generated file registers every opted-in type from an init function:

	func init() {
		registry.RegisterStorageName[User]("users")
		registry.RegisterIndexMap[User](map[string]string{
			"PK": "USER#{id}",
			"SK": "USER#{id}",
		})
	}

cmd/indexmap is the command-line front end, meant for go:generate.
*/
package processor
