package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(kv ...any) Document {
	d := make(Document, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		var n Node
		switch v := kv[i+1].(type) {
		case string:
			n = str(v)
		case int:
			n = NewScalar(Int32(int32(v)))
		case int64:
			n = NewScalar(Int64(v))
		case Node:
			n = v
		}
		d = append(d, Element{Key: kv[i].(string), Value: n})
	}
	return d
}

func field(t *testing.T, p *Parser, name string) *Field {
	t.Helper()
	f, ok := p.Field(name)
	require.True(t, ok, "field %q", name)
	return f
}

func fieldType(t *testing.T, f *Field, name TypeName) *FieldType {
	t.Helper()
	ft, ok := f.Type(name)
	require.True(t, ok, "type %s of %q", name, f.Name)
	return ft
}

func TestParserSingleDocument(t *testing.T) {
	p := NewParser()
	p.Observe(doc("name", "Nori", "type", "Cat"))
	p.Finalize()

	assert.Equal(t, 1, p.Count())
	require.Len(t, p.Fields(), 2)
	for _, name := range []string{"name", "type"} {
		f := field(t, p, name)
		assert.Equal(t, 1, f.Count)
		assert.Equal(t, 1.0, f.Probability)
		assert.Equal(t, []TypeName{TypeString}, f.TypeNames())

		ft := fieldType(t, f, TypeString)
		assert.Equal(t, 1, ft.Count)
		assert.Len(t, ft.Values, 1)
	}
}

func TestParserMissingFieldBecomesNull(t *testing.T) {
	p := NewParser()
	p.Observe(doc("name", "Nori", "type", "Cat"))
	p.Observe(doc("name", "Rey"))

	typ := field(t, p, "type")
	assert.Equal(t, 1, typ.Count)
	_, ok := typ.Type(TypeNull)
	assert.False(t, ok)

	p.Finalize()

	assert.Equal(t, 2, typ.Count)
	assert.Equal(t, 1, typ.Observed())
	assert.Equal(t, 0.5, typ.Probability)
	assert.Equal(t, []TypeName{TypeString, TypeNull}, typ.TypeNames())

	s := fieldType(t, typ, TypeString)
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 0.5, s.Probability)

	null := fieldType(t, typ, TypeNull)
	assert.Equal(t, 1, null.Count)
	assert.Equal(t, 1, null.Missing())
	assert.Equal(t, 0.5, null.Probability)
	assert.Empty(t, null.Values)

	name := field(t, p, "name")
	assert.Equal(t, 2, name.Count)
	assert.Equal(t, 1.0, name.Probability)
}

func TestParserFlattensArrays(t *testing.T) {
	p := NewParser()
	p.Observe(doc("animals", Array{str("cat"), str("dog")}))
	p.Observe(doc("animals", Array{str("wallaby"), str("bird")}))
	p.Finalize()

	animals := field(t, p, "animals")
	assert.Equal(t, []TypeName{TypeArray}, animals.TypeNames())

	arr := fieldType(t, animals, TypeArray)
	assert.Equal(t, 2, arr.Count)
	assert.Len(t, arr.Values, 4)
	assert.Equal(t, []int{2, 2}, arr.Lengths)
	assert.Equal(t, 4, *arr.Unique)
	assert.False(t, arr.HasDuplicates)
}

func TestParserMixedTypes(t *testing.T) {
	p := NewParser()
	p.Observe(doc("phone_number", int64(491234568789)))
	p.Observe(doc("phone_number", "+441234456789"))
	p.Finalize()

	f := field(t, p, "phone_number")
	assert.Equal(t, 2, f.Count)
	assert.Equal(t, []TypeName{TypeLong, TypeString}, f.TypeNames())
	assert.Equal(t, 1, fieldType(t, f, TypeLong).Count)
	assert.Equal(t, 1, fieldType(t, f, TypeString).Count)
	assert.Equal(t, 0.5, fieldType(t, f, TypeLong).Probability)
}

func TestParserNestedDocuments(t *testing.T) {
	p := NewParser()
	p.Observe(doc("a", doc("b", 1)))
	p.Observe(doc("a", doc("c", 2)))
	p.Finalize()

	a := fieldType(t, field(t, p, "a"), TypeDocument)
	require.NotNil(t, a.Schema)
	assert.Nil(t, a.Unique)
	assert.Empty(t, a.Values)

	nested := a.Schema
	assert.Equal(t, 2, nested.Count())
	assert.Equal(t, "a", nested.Path())

	for _, name := range []string{"b", "c"} {
		f := field(t, nested, name)
		assert.Equal(t, "a."+name, f.Path)
		assert.Equal(t, 1, f.Observed())
		assert.Equal(t, 2, f.Count)
		assert.Equal(t, 1, fieldType(t, f, TypeInt32).Count)
		assert.Equal(t, 1, fieldType(t, f, TypeNull).Count)
	}
}

func TestParserDeepPaths(t *testing.T) {
	p := NewParser()
	p.Observe(doc("a", doc("b", doc("c", "x"))))
	p.Finalize()

	b := field(t, fieldType(t, field(t, p, "a"), TypeDocument).Schema, "b")
	c := field(t, fieldType(t, b, TypeDocument).Schema, "c")
	assert.Equal(t, "a.b", b.Path)
	assert.Equal(t, "a.b.c", c.Path)
	assert.Equal(t, "a.b.c", fieldType(t, c, TypeString).Path)
}

func TestParserRepeatedKeyCountsOnce(t *testing.T) {
	p := NewParser()
	p.Observe(doc("k", "first", "k", 2))
	p.Finalize()

	f := field(t, p, "k")
	assert.Equal(t, 1, f.Count)
	assert.Equal(t, []TypeName{TypeString}, f.TypeNames())
	assert.Equal(t, []Value{String("first")}, fieldType(t, f, TypeString).Values)
}

func TestParserFinalizeIsIdempotent(t *testing.T) {
	p := NewParser()
	p.Observe(doc("name", "Nori", "type", "Cat"))
	p.Observe(doc("name", "Rey"))
	p.Observe(doc("name", "Nori"))

	p.Finalize()
	typ := field(t, p, "type")
	first := fieldType(t, typ, TypeNull).Count

	p.Finalize()
	p.Finalize()
	assert.Equal(t, first, fieldType(t, typ, TypeNull).Count)
	assert.Equal(t, 3, typ.Count)
	assert.True(t, p.HasDuplicates())
}

func TestParserObserveAfterFinalize(t *testing.T) {
	p := NewParser()
	p.Observe(doc("name", "Nori", "type", "Cat"))
	p.Observe(doc("name", "Rey"))
	p.Finalize()

	p.Observe(doc("name", "Kiwi", "type", "Dog"))
	p.Finalize()

	typ := field(t, p, "type")
	assert.Equal(t, 3, typ.Count)
	assert.Equal(t, 2, fieldType(t, typ, TypeString).Count)
	assert.Equal(t, 1, fieldType(t, typ, TypeNull).Count)
	assert.InDelta(t, 2.0/3, typ.Probability, 1e-9)
}

func TestParserDropsImputedNullOnceFilled(t *testing.T) {
	p := NewParser()
	p.Observe(doc("a", "x"))
	p.Observe(doc("b", "y"))
	p.Finalize()
	assert.Equal(t, []TypeName{TypeString, TypeNull}, field(t, p, "a").TypeNames())

	// A fresh parser over a complete stream never grows a Null type.
	q := NewParser()
	q.Observe(doc("a", "x"))
	q.Observe(doc("a", "y"))
	q.Finalize()
	assert.Equal(t, []TypeName{TypeString}, field(t, q, "a").TypeNames())
}

func TestParserObservedNullKeepsValue(t *testing.T) {
	p := NewParser()
	p.Observe(doc("a", NewScalar(Null())))
	p.Observe(doc("b", "y"))
	p.Finalize()

	null := fieldType(t, field(t, p, "a"), TypeNull)
	assert.Equal(t, 2, null.Count)
	assert.Equal(t, 1, null.Missing())
	assert.Equal(t, []Value{Null()}, null.Values)
}

func TestParserEmpty(t *testing.T) {
	p := NewParser().Finalize()
	assert.Equal(t, 0, p.Count())
	assert.Empty(t, p.Fields())
	assert.False(t, p.HasDuplicates())
}

func TestParserEmptyDocument(t *testing.T) {
	p := NewParser()
	p.Observe(Document{})
	p.Observe(doc("a", 1))
	p.Finalize()

	a := field(t, p, "a")
	assert.Equal(t, 2, a.Count)
	assert.Equal(t, 0.5, a.Probability)
}

func TestParserValueLimitPropagates(t *testing.T) {
	p := NewParser(WithValueLimit(1))
	p.Observe(doc("a", doc("b", "x")))
	p.Observe(doc("a", doc("b", "y")))
	p.Finalize()

	b := field(t, fieldType(t, field(t, p, "a"), TypeDocument).Schema, "b")
	s := fieldType(t, b, TypeString)
	assert.Len(t, s.Values, 1)
	assert.True(t, s.Truncated)
}
