package render

import (
	"bytes"
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/siegeai/schemaparser/infer"
	"github.com/siegeai/schemaparser/schema"
)

func parse(t *testing.T, docs ...string) *schema.Parser {
	t.Helper()
	p := schema.NewParser()
	for _, d := range docs {
		doc, err := infer.ParseJSON([]byte(d))
		require.Nil(t, err)
		p.Observe(doc)
	}
	return p.Finalize()
}

func TestTreeShape(t *testing.T) {
	p := parse(t, `{"name": "Nori", "type": "Cat"}`, `{"name": "Rey"}`)
	tree := Tree(p)

	assert.Equal(t, 2, tree.Count)
	require.Len(t, tree.Fields, 2)

	name := tree.Fields[0]
	assert.Equal(t, "name", name.Name)
	assert.Equal(t, "String", name.FieldType)
	assert.Equal(t, 1.0, name.Probability)

	typ := tree.Fields[1]
	assert.Equal(t, "", typ.FieldType)
	require.Len(t, typ.Types, 2)
	assert.Equal(t, "String", typ.Types[0].Name)
	assert.Equal(t, "String", typ.Types[0].BSONType)
	assert.Equal(t, "Null", typ.Types[1].Name)
	assert.Empty(t, typ.Types[1].Values)
	assert.Equal(t, 0.5, typ.Types[1].Probability)
}

func TestJSONOutput(t *testing.T) {
	p := parse(t, `{"a": {"b": 1}, "tags": ["x", "y"]}`)

	var buf bytes.Buffer
	require.Nil(t, JSON(&buf, p, ""))

	var out map[string]any
	require.Nil(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, float64(1), out["count"])

	fields := out["fields"].([]any)
	a := fields[0].(map[string]any)
	aType := a["types"].([]any)[0].(map[string]any)
	assert.Equal(t, "Document", aType["name"])
	assert.NotContains(t, aType, "unique")
	assert.NotContains(t, aType, "has_duplicates")
	assert.NotContains(t, aType, "values")

	nested := aType["fields"].([]any)[0].(map[string]any)
	assert.Equal(t, "a.b", nested["path"])

	tags := fields[1].(map[string]any)["types"].([]any)[0].(map[string]any)
	assert.Equal(t, "Array", tags["bson_type"])
	assert.Equal(t, []any{"x", "y"}, tags["values"])
	assert.Equal(t, []any{float64(2)}, tags["lengths"])
	assert.Equal(t, float64(2), tags["unique"])
	assert.Equal(t, false, tags["has_duplicates"])
}

func TestJSONIndent(t *testing.T) {
	p := parse(t, `{"a": 1}`)
	var buf bytes.Buffer
	require.Nil(t, JSON(&buf, p, "  "))
	assert.Contains(t, buf.String(), "\n  \"fields\"")
}

func TestValueEncoding(t *testing.T) {
	cases := []struct {
		in   schema.Value
		want string
	}{
		{schema.String("x"), `"x"`},
		{schema.Int32(3), `3`},
		{schema.Int64(491234568789), `491234568789`},
		{schema.Double(1.5), `1.5`},
		{schema.Double(math.NaN()), `"NaN"`},
		{schema.Double(math.Inf(-1)), `"-Infinity"`},
		{schema.Bool(true), `true`},
		{schema.Null(), `null`},
		{schema.Decimal("12.50"), `"12.50"`},
		{schema.Binary([]byte{1, 2, 3}), `"AQID"`},
	}
	for _, c := range cases {
		b, err := json.Marshal(Value{c.in})
		require.Nil(t, err)
		assert.Equal(t, c.want, string(b))
	}
}

func TestYAMLOutput(t *testing.T) {
	p := parse(t, `{"name": "Nori"}`, `{"name": "Rey", "age": 3}`)

	var buf bytes.Buffer
	require.Nil(t, YAML(&buf, p))

	var out struct {
		Count  int
		Fields []struct {
			Name        string
			Probability float64
			Types       []struct {
				Name   string
				Values []any
			}
		}
	}
	require.Nil(t, yaml.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2, out.Count)
	require.Len(t, out.Fields, 2)
	assert.Equal(t, []any{"Nori", "Rey"}, out.Fields[0].Types[0].Values)

	age := out.Fields[1]
	assert.Equal(t, "age", age.Name)
	assert.Equal(t, 0.5, age.Probability)
	require.Len(t, age.Types, 2)
	assert.Equal(t, "Int32", age.Types[0].Name)
	assert.Equal(t, []any{3}, age.Types[0].Values)
	assert.Equal(t, "Null", age.Types[1].Name)
}

func TestArrayOfDocumentsSchema(t *testing.T) {
	p := parse(t, `{"pets": [{"name": "Nori"}, {"name": "Rey", "age": 3}]}`)
	pets := Tree(p).Fields[0].Types[0]

	require.NotNil(t, pets.Schema)
	assert.Equal(t, 2, pets.Schema.Count)
	assert.Len(t, pets.Schema.Fields, 2)
	assert.Equal(t, []ElementType{{Name: "Document", Count: 2}}, pets.ElementTypes)
}
