// Package render converts a finalized schema.Parser into plain data for
// serialization.
package render

import (
	"encoding/base64"
	"io"
	"math"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/siegeai/schemaparser/schema"
)

type Schema struct {
	Count  int     `json:"count" yaml:"count"`
	Fields []Field `json:"fields" yaml:"fields"`
}

type Field struct {
	Name          string  `json:"name" yaml:"name"`
	Path          string  `json:"path" yaml:"path"`
	Count         int     `json:"count" yaml:"count"`
	FieldType     string  `json:"field_type,omitempty" yaml:"field_type,omitempty"`
	Probability   float64 `json:"probability" yaml:"probability"`
	HasDuplicates bool    `json:"has_duplicates" yaml:"has_duplicates"`
	Types         []Type  `json:"types" yaml:"types"`
}

// Type is one per-type aggregate. Fields is set for documents, Schema for
// arrays holding documents.
type Type struct {
	Path          string        `json:"path" yaml:"path"`
	Count         int           `json:"count" yaml:"count"`
	BSONType      string        `json:"bson_type" yaml:"bson_type"`
	Name          string        `json:"name" yaml:"name"`
	Probability   float64       `json:"probability" yaml:"probability"`
	Values        []Value       `json:"values,omitempty" yaml:"values,omitempty"`
	Lengths       []int         `json:"lengths,omitempty" yaml:"lengths,omitempty"`
	HasDuplicates *bool         `json:"has_duplicates,omitempty" yaml:"has_duplicates,omitempty"`
	Unique        *int          `json:"unique,omitempty" yaml:"unique,omitempty"`
	ApproxUnique  uint64        `json:"approx_unique,omitempty" yaml:"approx_unique,omitempty"`
	Truncated     bool          `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	ElementTypes  []ElementType `json:"element_types,omitempty" yaml:"element_types,omitempty"`
	Fields        []Field       `json:"fields,omitempty" yaml:"fields,omitempty"`
	Schema        *Schema       `json:"schema,omitempty" yaml:"schema,omitempty"`
}

type ElementType struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// Value serializes untagged: numbers as numbers, text as strings, binary as
// base64 and non-finite doubles as "NaN", "Infinity" or "-Infinity".
type Value struct {
	schema.Value
}

func (v Value) plain() any {
	switch v.Kind() {
	case schema.KindDouble:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.IsInf(f, 1):
			return "Infinity"
		case math.IsInf(f, -1):
			return "-Infinity"
		}
		return f
	case schema.KindBinary:
		return base64.StdEncoding.EncodeToString(v.Bytes())
	}
	return v.Interface()
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.plain())
}

func (v Value) MarshalYAML() (any, error) {
	return v.plain(), nil
}

// Tree copies the statistics of p as of its last Finalize.
func Tree(p *schema.Parser) *Schema {
	return &Schema{
		Count:  p.Count(),
		Fields: fields(p),
	}
}

func fields(p *schema.Parser) []Field {
	fs := p.Fields()
	res := make([]Field, len(fs))
	for i, f := range fs {
		res[i] = field(f)
	}
	return res
}

func field(f *schema.Field) Field {
	ts := f.Types()
	res := Field{
		Name:          f.Name,
		Path:          f.Path,
		Count:         f.Count,
		Probability:   f.Probability,
		HasDuplicates: f.HasDuplicates,
		Types:         make([]Type, len(ts)),
	}
	if len(ts) == 1 {
		res.FieldType = ts[0].Name.String()
	}
	for i, t := range ts {
		res.Types[i] = fieldType(t)
	}
	return res
}

func fieldType(t *schema.FieldType) Type {
	name := t.Name.String()
	res := Type{
		Path:         t.Path,
		Count:        t.Count,
		BSONType:     name,
		Name:         name,
		Probability:  t.Probability,
		Lengths:      t.Lengths,
		ApproxUnique: t.ApproxUnique,
		Truncated:    t.Truncated,
	}
	if len(t.Values) > 0 {
		res.Values = make([]Value, len(t.Values))
		for i, v := range t.Values {
			res.Values[i] = Value{v}
		}
	}
	for _, e := range t.ElementTypes() {
		res.ElementTypes = append(res.ElementTypes, ElementType{Name: e.Name.String(), Count: e.Count})
	}

	if t.Name == schema.TypeDocument {
		if t.Schema != nil {
			res.Fields = fields(t.Schema)
		}
		return res
	}
	dup := t.HasDuplicates
	res.HasDuplicates = &dup
	if t.Unique != nil {
		u := *t.Unique
		res.Unique = &u
	}
	if t.Schema != nil {
		res.Schema = Tree(t.Schema)
	}
	return res
}

func JSON(w io.Writer, p *schema.Parser, indent string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", indent)
	return enc.Encode(Tree(p))
}

func YAML(w io.Writer, p *schema.Parser) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Tree(p)); err != nil {
		return err
	}
	return enc.Close()
}
