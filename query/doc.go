/*
Package query derives repository queries from declared method shapes.

A repository declares its query methods once, at construction:

	query.FindMany("findByLastName", "lastName")
	query.FindOne("findByFirstNameAndLastName", "firstName", "lastName")
	query.DeleteBy("deleteByLastName", "lastName")

The name grammar is findBy<Field> or deleteBy<Field>, with further fields
chained by And or Or. Fields match the entity's Go field names exactly. Each
declaration also lists its positional parameters, one per field clause.

Declarations can skip name parsing entirely with a Spec:

	query.Spec{
	    Name:        "byTenant",
	    Attributes:  []string{"Tenant"},
	    Cardinality: query.Many,
	}

Either form yields an immutable Descriptor cached in a Table. A malformed
declaration is a QueryDerivationError raised by NewTable, so a repository
with a mistyped query never becomes usable.
*/
package query
