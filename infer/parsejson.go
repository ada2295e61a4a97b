package infer

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/siegeai/schemaparser/schema"
)

var ErrNotDocument = errors.New("infer: input is not a document")

var parserPool fastjson.ParserPool

// JSONDecoder turns JSON text into document trees. The zero value treats
// MongoDB Extended JSON wrappers ({"$oid": ...}) as plain objects; use
// NewJSONDecoder for the default behaviour.
type JSONDecoder struct {
	ExtendedJSON bool
}

func NewJSONDecoder() *JSONDecoder {
	return &JSONDecoder{ExtendedJSON: true}
}

var defaultDecoder = NewJSONDecoder()

// ParseJSON decodes a single JSON object with Extended JSON enabled.
func ParseJSON(b []byte) (schema.Document, error) {
	return defaultDecoder.Parse(b)
}

func (d *JSONDecoder) Parse(b []byte) (schema.Document, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(b)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("%w: found %s", ErrNotDocument, v.Type())
	}
	return d.document(v)
}

// Documents decodes either one object or an array of objects, the shape
// written by mongoexport --jsonArray.
func (d *JSONDecoder) Documents(b []byte) ([]schema.Document, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(b)
	if err != nil {
		return nil, err
	}
	switch v.Type() {
	case fastjson.TypeObject:
		doc, err := d.document(v)
		if err != nil {
			return nil, err
		}
		return []schema.Document{doc}, nil
	case fastjson.TypeArray:
		vs, _ := v.Array()
		docs := make([]schema.Document, len(vs))
		for i, e := range vs {
			if e.Type() != fastjson.TypeObject {
				return nil, fmt.Errorf("%w: element %d is %s", ErrNotDocument, i, e.Type())
			}
			if docs[i], err = d.document(e); err != nil {
				return nil, err
			}
		}
		return docs, nil
	}
	return nil, fmt.Errorf("%w: found %s", ErrNotDocument, v.Type())
}

func (d *JSONDecoder) document(v *fastjson.Value) (schema.Document, error) {
	o, err := v.Object()
	if err != nil {
		return nil, err
	}

	doc := make(schema.Document, 0, o.Len())
	var visitErr error
	o.Visit(func(key []byte, v *fastjson.Value) {
		if visitErr != nil {
			return
		}
		n, err := d.node(v)
		if err != nil {
			visitErr = fmt.Errorf("%s: %w", key, err)
			return
		}
		doc = append(doc, schema.Element{Key: string(key), Value: n})
	})
	if visitErr != nil {
		return nil, visitErr
	}
	return doc, nil
}

func (d *JSONDecoder) node(v *fastjson.Value) (schema.Node, error) {
	switch v.Type() {
	case fastjson.TypeObject:
		if d.ExtendedJSON {
			o, _ := v.Object()
			if n, ok := extended(o); ok {
				return n, nil
			}
		}
		return d.document(v)
	case fastjson.TypeArray:
		vs, _ := v.Array()
		arr := make(schema.Array, len(vs))
		for i, e := range vs {
			n, err := d.node(e)
			if err != nil {
				return nil, err
			}
			arr[i] = n
		}
		return arr, nil
	case fastjson.TypeString:
		s, _ := v.StringBytes()
		return schema.NewScalar(schema.String(string(s))), nil
	case fastjson.TypeNumber:
		return number(v)
	case fastjson.TypeTrue:
		return schema.NewScalar(schema.Bool(true)), nil
	case fastjson.TypeFalse:
		return schema.NewScalar(schema.Bool(false)), nil
	case fastjson.TypeNull:
		return schema.NewScalar(schema.Null()), nil
	}
	return nil, fmt.Errorf("infer: unexpected json type %s", v.Type())
}

// number keeps the narrowest native width: int32, then int64, then double.
func number(v *fastjson.Value) (schema.Node, error) {
	if i, err := v.Int64(); err == nil {
		if int64(int32(i)) == i {
			return schema.NewScalar(schema.Int32(int32(i))), nil
		}
		return schema.NewScalar(schema.Int64(i)), nil
	}
	f, err := v.Float64()
	if err != nil {
		return nil, err
	}
	return schema.NewScalar(schema.Double(f)), nil
}
