/*
Package ddb provides a DynamoDB implementation of datastore.Driver.

Every entity type shares one table. Items carry an EntityType attribute
and key attributes expanded from an index map:

	registry.RegisterIndexMap[User](map[string]string{
	    "PK":     "USER#{tenant}",   // partition key attribute
	    "SK":     "USER#{id}",       // identity attribute
	    "GSI1PK": "EMAIL#{email}",   // partition key of the index GSI1
	})

Macros name document keys (json tags). A type without a registered index map
uses DefaultIndexMap, which keys PK on the partition key and SK on the id.
An unset partition key falls back to the id, so such entities get their own
partition.

A GSI<n>PK entry names the partition key attribute of the global secondary
index GSI<n>, which must project all attributes. Put refuses to replace an
item of another entity type under the same key.

Derived queries that fix every attribute the PK template references are
served by a Query on that partition. Failing that, a query that fixes a GSI
partition key template is served by a Query on the index; all others scan
the table with a filter expression. Each pages with retry on throttling:

	results := store.Query(ctx, predicate,
	    storagemodels.WithPageSize(25),
	    storagemodels.WithMaxRetries(3),
	    storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) {
	        log.Printf("Processed %d items", p.ItemsProcessed)
	    }),
	)
*/
package ddb
