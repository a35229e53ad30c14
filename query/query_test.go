/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/suparena/reactiverepo/entity"
	"github.com/suparena/reactiverepo/errors"
	"github.com/suparena/reactiverepo/storagemodels"
)

type person struct {
	ID        string   `json:"id" entity:"id"`
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	OrderRef  *string  `json:"orderRef,omitempty"`
	Android   bool     `json:"android"`
	Age       int      `json:"age"`
	Nicknames []string `json:"nicknames,omitempty"`
	ETag      string   `json:"_etag,omitempty" entity:"system"`
}

func personSchema(t *testing.T) *entity.Schema {
	t.Helper()
	s, err := entity.SchemaOf[person]()
	if err != nil {
		t.Fatalf("SchemaOf failed: %v", err)
	}
	return s
}

func TestDerive(t *testing.T) {
	schema := personSchema(t)

	tests := []struct {
		name        string
		method      Method
		attrs       []string
		keys        []string
		combinator  storagemodels.Combinator
		cardinality Cardinality
	}{
		{
			name:        "find many",
			method:      FindMany("findByLastName", "lastName"),
			attrs:       []string{"LastName"},
			keys:        []string{"lastName"},
			combinator:  storagemodels.And,
			cardinality: Many,
		},
		{
			name:        "find one",
			method:      FindOne("findByFirstNameAndLastName", "first", "last"),
			attrs:       []string{"FirstName", "LastName"},
			keys:        []string{"firstName", "lastName"},
			combinator:  storagemodels.And,
			cardinality: Single,
		},
		{
			name:        "delete",
			method:      DeleteBy("deleteByLastName", "lastName"),
			attrs:       []string{"LastName"},
			keys:        []string{"lastName"},
			combinator:  storagemodels.And,
			cardinality: DeleteMany,
		},
		{
			name:        "or chain",
			method:      FindMany("findByFirstNameOrLastNameOrAge", "a", "b", "c"),
			attrs:       []string{"FirstName", "LastName", "Age"},
			keys:        []string{"firstName", "lastName", "age"},
			combinator:  storagemodels.Or,
			cardinality: Many,
		},
		{
			name:        "combinator words inside field names",
			method:      FindMany("findByOrderRefAndAndroid", "ref", "android"),
			attrs:       []string{"OrderRef", "Android"},
			keys:        []string{"orderRef", "android"},
			combinator:  storagemodels.And,
			cardinality: Many,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Derive(schema, tt.method)
			if err != nil {
				t.Fatalf("Derive failed: %v", err)
			}
			if !reflect.DeepEqual(d.Attributes(), tt.attrs) {
				t.Errorf("Expected attributes %v, got %v", tt.attrs, d.Attributes())
			}
			if !reflect.DeepEqual(d.Keys(), tt.keys) {
				t.Errorf("Expected keys %v, got %v", tt.keys, d.Keys())
			}
			if d.Combinator() != tt.combinator {
				t.Errorf("Expected combinator %s, got %s", tt.combinator, d.Combinator())
			}
			if d.Cardinality() != tt.cardinality {
				t.Errorf("Expected cardinality %s, got %s", tt.cardinality, d.Cardinality())
			}
			if d.Comparator() != storagemodels.Equal {
				t.Errorf("Expected equality comparator, got %s", d.Comparator())
			}
			if d.Name() != tt.method.Name || d.Arity() != len(tt.attrs) {
				t.Errorf("Unexpected descriptor %s", d)
			}
		})
	}
}

func TestDeriveRejects(t *testing.T) {
	schema := personSchema(t)

	tests := []struct {
		name   string
		method Method
		reason string
	}{
		{"unknown verb", FindMany("getByLastName", "x"), "must start with"},
		{"no field", FindMany("findBy"), "no field clause"},
		{"unknown field", FindMany("findByNickname", "x"), `no attribute "Nickname"`},
		{"case mismatch", FindMany("findByLastname", "x"), `no attribute "Lastname"`},
		{"lower-case field", FindMany("findBylastName", "x"), "upper-case"},
		{"too few params", FindMany("findByFirstNameAndLastName", "x"), "2 field clause(s) but 1 parameter(s)"},
		{"too many params", FindMany("findByLastName", "x", "y"), "1 field clause(s) but 2 parameter(s)"},
		{"mixed combinators", FindMany("findByFirstNameAndLastNameOrAge", "a", "b", "c"), "mixing"},
		{"single delete", Method{Name: "deleteByLastName", Params: []string{"x"}, One: true, Delete: true}, "cannot yield a single"},
		{"find named as delete", DeleteBy("findByLastName", "x"), "declared as a delete"},
		{"delete named as find", FindMany("deleteByLastName", "x"), "declared as a find"},
		{"one named as delete", FindOne("deleteByLastName", "x"), "declared as a find"},
		{"not scalar", FindMany("findByNicknames", "x"), "cannot be compared"},
		{"system field", FindMany("findByETag", "x"), "cannot be compared"},
		{"trailing combinator", FindMany("findByLastNameAnd", "x"), `no attribute "LastNameAnd"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Derive(schema, tt.method)
			if !errors.IsQueryDerivationError(err) {
				t.Fatalf("Expected QueryDerivationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Fatalf("Expected error mentioning %q, got %q", tt.reason, err.Error())
			}
		})
	}
}

func TestFromSpec(t *testing.T) {
	schema := personSchema(t)

	d, err := FromSpec(schema, Spec{
		Name:        "adults",
		Attributes:  []string{"Age", "LastName"},
		Combinator:  storagemodels.Or,
		Cardinality: Single,
	})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}
	if d.Cardinality() != Single || d.Combinator() != storagemodels.Or {
		t.Fatalf("Unexpected descriptor %s", d)
	}

	defaulted, err := FromSpec(schema, Spec{Name: "byAge", Attributes: []string{"Age"}})
	if err != nil {
		t.Fatalf("FromSpec failed: %v", err)
	}
	if defaulted.Combinator() != storagemodels.And || defaulted.Cardinality() != Many {
		t.Fatalf("Unexpected defaults %s", defaulted)
	}

	bad := []Spec{
		{Attributes: []string{"Age"}},
		{Name: "x"},
		{Name: "x", Attributes: []string{"Missing"}},
		{Name: "x", Attributes: []string{"Age"}, Combinator: "XOR"},
		{Name: "x", Attributes: []string{"Age"}, Cardinality: Cardinality(9)},
	}
	for _, s := range bad {
		if _, err := FromSpec(schema, s); !errors.IsQueryDerivationError(err) {
			t.Errorf("Expected QueryDerivationError for %+v, got %v", s, err)
		}
	}
}

func TestBind(t *testing.T) {
	schema := personSchema(t)
	d, err := Derive(schema, FindMany("findByLastNameAndAge", "lastName", "age"))
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	t.Run("converts arguments", func(t *testing.T) {
		name := "Martin"
		p, err := d.Bind(&name, int32(40))
		if err != nil {
			t.Fatalf("Bind failed: %v", err)
		}
		want := []storagemodels.Clause{
			{Key: "lastName", Comparator: storagemodels.Equal, Value: "Martin"},
			{Key: "age", Comparator: storagemodels.Equal, Value: float64(40)},
		}
		if !reflect.DeepEqual(p.Clauses, want) {
			t.Fatalf("Expected clauses %v, got %v", want, p.Clauses)
		}
		if p.Combinator != storagemodels.And {
			t.Fatalf("Expected AND, got %s", p.Combinator)
		}
	})

	t.Run("matches documents", func(t *testing.T) {
		p, err := d.Bind("Martin", 40)
		if err != nil {
			t.Fatalf("Bind failed: %v", err)
		}
		last := "Martin"
		doc, err := storagemodels.Encode(person{ID: "3", LastName: &last, Age: 40})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if !p.Match(doc) {
			t.Fatal("bound predicate should match the encoded entity")
		}
	})

	t.Run("rejects", func(t *testing.T) {
		var nilName *string
		cases := map[string][]any{
			"arity":        {"Martin"},
			"nil":          {nil, 1},
			"nil pointer":  {nilName, 1},
			"wrong type":   {"Martin", "forty"},
			"int for text": {7, 1},
		}
		for name, args := range cases {
			if _, err := d.Bind(args...); !errors.IsValidationError(err) {
				t.Errorf("%s: expected validation error, got %v", name, err)
			}
		}
	})
}

type stock struct {
	ID    string  `json:"id" entity:"id"`
	Qty   int     `json:"qty"`
	Small uint8   `json:"small"`
	Price float32 `json:"price"`
}

func TestBindNumbers(t *testing.T) {
	schema, err := entity.SchemaOf[stock]()
	if err != nil {
		t.Fatalf("SchemaOf failed: %v", err)
	}
	byQty, err := Derive(schema, DeleteBy("deleteByQty", "qty"))
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	bySmall, err := Derive(schema, FindMany("findBySmall", "small"))
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	byPrice, err := Derive(schema, FindMany("findByPrice", "price"))
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	t.Run("exact conversions", func(t *testing.T) {
		for _, tc := range []struct {
			d   *Descriptor
			arg any
		}{
			{byQty, 3.0},
			{byQty, int8(-3)},
			{byQty, uint64(3)},
			{bySmall, 255},
			{bySmall, float64(44)},
			{byPrice, 0.1},
			{byPrice, 7},
		} {
			if _, err := tc.d.Bind(tc.arg); err != nil {
				t.Errorf("%s(%v): unexpected error %v", tc.d.Name(), tc.arg, err)
			}
		}
	})

	t.Run("rejects", func(t *testing.T) {
		for name, tc := range map[string]struct {
			d   *Descriptor
			arg any
		}{
			"fraction for int":  {byQty, 3.7},
			"fraction for uint": {bySmall, 44.5},
			"overflow":          {bySmall, 300},
			"float overflow":    {bySmall, 256.0},
			"negative for uint": {bySmall, -1},
			"float32 overflow":  {byPrice, 1e300},
			"uint beyond int":   {byQty, uint64(1) << 63},
			"float beyond int":  {byQty, 1e30},
		} {
			if _, err := tc.d.Bind(tc.arg); !errors.IsValidationError(err) {
				t.Errorf("%s: expected validation error, got %v", name, err)
			}
		}
	})
}

func TestTable(t *testing.T) {
	schema := personSchema(t)

	table, err := NewTable(schema,
		FindMany("findByLastName", "lastName"),
		FindOne("findByFirstName", "firstName"),
		DeleteBy("deleteByLastName", "lastName"),
		Spec{Name: "byAge", Attributes: []string{"Age"}},
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	if table.Len() != 4 {
		t.Fatalf("Expected 4 descriptors, got %d", table.Len())
	}
	want := []string{"byAge", "deleteByLastName", "findByFirstName", "findByLastName"}
	if !reflect.DeepEqual(table.Names(), want) {
		t.Fatalf("Expected names %v, got %v", want, table.Names())
	}

	first, _ := table.Lookup("findByLastName")
	second, _ := table.Lookup("findByLastName")
	if first != second {
		t.Fatal("lookups must return the cached descriptor")
	}
	if _, ok := table.Lookup("findByAddress"); ok {
		t.Fatal("undeclared query must not be found")
	}

	t.Run("duplicate", func(t *testing.T) {
		_, err := NewTable(schema, FindMany("findByLastName", "a"), FindOne("findByLastName", "b"))
		if !errors.IsQueryDerivationError(err) {
			t.Fatalf("Expected QueryDerivationError, got %v", err)
		}
	})

	t.Run("malformed aborts", func(t *testing.T) {
		_, err := NewTable(schema, FindMany("findByLastName", "a"), FindMany("findByAddress", "b"))
		if !errors.IsQueryDerivationError(err) {
			t.Fatalf("Expected QueryDerivationError, got %v", err)
		}
	})
}

func TestProperty_DerivationIsDeterministic(t *testing.T) {
	schema := personSchema(t)
	fields := []string{"FirstName", "LastName", "OrderRef", "Android", "Age"}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("deriving twice yields identical descriptors", prop.ForAll(
		func(picks []int, useOr bool, del bool) bool {
			names := make([]string, len(picks))
			params := make([]string, len(picks))
			for i, p := range picks {
				names[i] = fields[p]
				params[i] = "p"
			}
			sep, verb := "And", "findBy"
			if useOr {
				sep = "Or"
			}
			if del {
				verb = "deleteBy"
			}
			m := Method{Name: verb + strings.Join(names, sep), Params: params, Delete: del}

			a, errA := Derive(schema, m)
			b, errB := Derive(schema, m)
			if errA != nil || errB != nil {
				t.Logf("unexpected derivation failure for %s: %v / %v", m.Name, errA, errB)
				return false
			}
			return a != b &&
				reflect.DeepEqual(a.Attributes(), names) &&
				reflect.DeepEqual(a.Attributes(), b.Attributes()) &&
				a.Combinator() == b.Combinator() &&
				a.Comparator() == b.Comparator() &&
				a.Cardinality() == b.Cardinality()
		},
		gen.SliceOfN(3, gen.IntRange(0, len(fields)-1)),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
