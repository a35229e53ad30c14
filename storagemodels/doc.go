/*
Package storagemodels defines the data structures shared by the repository and
its store drivers.

Document:
The schemaless form of an entity. Drivers persist documents; the repository
never sees them. Encode and Decode convert through the entity's json tags:

	doc, err := storagemodels.Encode(user)   // {"id": "1", "firstName": "Tasha", ...}
	back, err := storagemodels.Decode[User](doc)

Predicate:
The filter of a derived query, a list of equality clauses joined by one
combinator:

	p := &Predicate{
	    Combinator: And,
	    Clauses:    []Clause{{Key: "lastName", Comparator: Equal, Value: "Martin"}},
	}
	p.Match(doc)

Drivers that cannot push a predicate down to the store evaluate it with Match.

StreamResult:
Items flowing out of a driver stream. A result carrying an Error is the last
one on the channel:

	type StreamResult[T any] struct {
	    Item  T
	    Raw   Document
	    Error error
	    Meta  StreamMeta
	}

StreamOptions:
Paging and buffering of driver streams:

	opts := []StreamOption{
	    WithBufferSize(32),
	    WithPageSize(25),
	    WithMaxRetries(3),
	    WithProgressHandler(progressFunc),
	}
*/
package storagemodels
