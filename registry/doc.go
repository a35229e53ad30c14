/*
Package registry holds per-entity-type storage settings that drivers consult
when they are constructed.

Index maps give the DynamoDB key layout of a type:

	registry.RegisterIndexMap[User](map[string]string{
	    "PK":     "USER#{id}",
	    "SK":     "USER#{id}",
	    "GSI1PK": "NAME#{lastName}",
	})

Storage names give the MongoDB collection or Redis hash a type lives in:

	registry.RegisterStorageName[User]("users")

Both registries are safe for concurrent use and are meant to be populated
during initialization, before any driver for the type is built.
*/
package registry
