package apispec

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/siegeai/schemaparser/schema"
)

// ExtProbability carries the fraction of documents that held a property.
const ExtProbability = "x-probability"

// Schema describes the documents aggregated by a finalized parser as an
// OpenAPI object schema. Properties follow first-seen order in Required;
// a property is required when every document held it with a non-null value.
func Schema(p *schema.Parser) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Properties = make(openapi3.Schemas, len(p.Fields()))
	for _, f := range p.Fields() {
		s.Properties[f.Name] = fieldSchema(f).NewRef()
		if required(p, f) {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func required(p *schema.Parser, f *schema.Field) bool {
	if f.Observed() < p.Count() {
		return false
	}
	_, null := f.Type(schema.TypeNull)
	return !null
}

func fieldSchema(f *schema.Field) *openapi3.Schema {
	var (
		alts     []*openapi3.Schema
		nullable bool
	)
	for _, t := range f.Types() {
		if t.Name == schema.TypeNull {
			nullable = true
			continue
		}
		alts = append(alts, typeSchema(t))
	}

	var s *openapi3.Schema
	switch len(alts) {
	case 0:
		s = NewNullSchema()
	case 1:
		s = alts[0]
	default:
		s = &openapi3.Schema{}
		for _, a := range alts {
			s.OneOf = append(s.OneOf, a.NewRef())
		}
	}
	s.Nullable = nullable
	s.Extensions = map[string]interface{}{ExtProbability: f.Probability}
	return s
}

func typeSchema(t *schema.FieldType) *openapi3.Schema {
	switch t.Name {
	case schema.TypeDocument:
		if t.Schema == nil {
			return openapi3.NewObjectSchema()
		}
		return Schema(t.Schema)
	case schema.TypeArray:
		return arraySchema(t)
	}
	return scalarSchema(t.Name)
}

func arraySchema(t *schema.FieldType) *openapi3.Schema {
	s := openapi3.NewArraySchema()

	var items []*openapi3.Schema
	nullable := false
	for _, e := range t.ElementTypes() {
		switch e.Name {
		case schema.TypeNull:
			nullable = true
		case schema.TypeDocument:
			items = append(items, Schema(t.Schema))
		case schema.TypeArray:
			items = append(items, openapi3.NewArraySchema().WithItems(&openapi3.Schema{}))
		default:
			items = append(items, scalarSchema(e.Name))
		}
	}

	var item *openapi3.Schema
	switch len(items) {
	case 0:
		item = &openapi3.Schema{}
	case 1:
		item = items[0]
	default:
		item = &openapi3.Schema{}
		for _, i := range items {
			item.OneOf = append(item.OneOf, i.NewRef())
		}
	}
	item.Nullable = nullable
	s.Items = item.NewRef()

	if len(t.Lengths) > 0 {
		lo, hi := t.Lengths[0], t.Lengths[0]
		for _, n := range t.Lengths[1:] {
			lo, hi = min(lo, n), max(hi, n)
		}
		s.MinItems = uint64(lo)
		m := uint64(hi)
		s.MaxItems = &m
	}
	return s
}

func scalarSchema(name schema.TypeName) *openapi3.Schema {
	switch name {
	case schema.TypeString, schema.TypeSymbol:
		return openapi3.NewStringSchema()
	case schema.TypeInt32:
		return openapi3.NewInt32Schema()
	case schema.TypeLong, schema.TypeTimestamp:
		return openapi3.NewInt64Schema()
	case schema.TypeDouble:
		return openapi3.NewFloat64Schema().WithFormat("double")
	case schema.TypeBoolean:
		return openapi3.NewBoolSchema()
	case schema.TypeDecimal128:
		return openapi3.NewStringSchema().WithFormat("decimal")
	case schema.TypeUtcDatetime:
		return openapi3.NewDateTimeSchema()
	case schema.TypeBinData:
		return openapi3.NewBytesSchema()
	case schema.TypeObjectID:
		return openapi3.NewStringSchema().WithFormat("objectid").WithPattern("^[0-9a-f]{24}$")
	case schema.TypeRegex, schema.TypeJavaScriptCode, schema.TypeJavaScriptCodeWithScope:
		return openapi3.NewStringSchema().WithFormat(name.String())
	case schema.TypeNull:
		return NewNullSchema()
	}
	return &openapi3.Schema{}
}

// NewNullSchema is the schema of a value only ever seen as null.
func NewNullSchema() *openapi3.Schema {
	return &openapi3.Schema{Nullable: true}
}
