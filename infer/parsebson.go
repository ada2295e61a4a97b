package infer

import (
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/siegeai/schemaparser/schema"
)

// ParseBSON decodes one raw BSON document.
func ParseBSON(raw []byte) (schema.Document, error) {
	doc, err := bsonDocument(bson.Raw(raw))
	if err != nil {
		return nil, fmt.Errorf("bson: %w", err)
	}
	return doc, nil
}

// ReadBSON decodes concatenated BSON documents, the layout of a mongodump
// .bson file, and hands each to fn.
func ReadBSON(r io.Reader, fn func(schema.Document) error) error {
	for i := 0; ; i++ {
		raw, err := bson.NewFromIOReader(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("bson document %d: %w", i, err)
		}
		doc, err := bsonDocument(raw)
		if err != nil {
			return fmt.Errorf("bson document %d: %w", i, err)
		}
		if err := fn(doc); err != nil {
			return fmt.Errorf("bson document %d: %w", i, err)
		}
	}
}

func bsonDocument(raw bson.Raw) (schema.Document, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	return bsonElements(raw)
}

func bsonElements(raw bson.Raw) (schema.Document, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, err
	}
	doc := make(schema.Document, 0, len(elems))
	for _, e := range elems {
		n, err := bsonNode(e.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Key(), err)
		}
		doc = append(doc, schema.Element{Key: e.Key(), Value: n})
	}
	return doc, nil
}

// bsonArray walks the array as a document; its keys are the indexes.
func bsonArray(raw bson.Raw) (schema.Array, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, err
	}
	arr := make(schema.Array, 0, len(elems))
	for _, e := range elems {
		n, err := bsonNode(e.Value())
		if err != nil {
			return nil, err
		}
		arr = append(arr, n)
	}
	return arr, nil
}

func bsonNode(v bson.RawValue) (schema.Node, error) {
	switch v.Type {
	case bson.TypeEmbeddedDocument:
		return bsonElements(bson.Raw(v.Value))
	case bson.TypeArray:
		return bsonArray(bson.Raw(v.Value))
	case bson.TypeDouble:
		return schema.NewScalar(schema.Double(v.Double())), nil
	case bson.TypeString:
		return schema.NewScalar(schema.String(v.StringValue())), nil
	case bson.TypeBinary:
		_, b := v.Binary()
		return schema.NewScalar(schema.Binary(b)), nil
	case bson.TypeObjectID:
		return schema.Scalar{Type: schema.TypeObjectID, Value: schema.String(v.ObjectID().Hex())}, nil
	case bson.TypeBoolean:
		return schema.NewScalar(schema.Bool(v.Boolean())), nil
	case bson.TypeDateTime:
		return schema.Scalar{Type: schema.TypeUtcDatetime, Value: schema.String(formatDate(v.DateTime()))}, nil
	case bson.TypeNull:
		return schema.NewScalar(schema.Null()), nil
	case bson.TypeRegex:
		pattern, options := v.Regex()
		return schema.Scalar{Type: schema.TypeRegex, Value: schema.String(formatRegex(pattern, options))}, nil
	case bson.TypeJavaScript:
		return schema.Scalar{Type: schema.TypeJavaScriptCode, Value: schema.String(v.JavaScript())}, nil
	case bson.TypeSymbol:
		return schema.Scalar{Type: schema.TypeSymbol, Value: schema.String(v.Symbol())}, nil
	case bson.TypeCodeWithScope:
		code, _ := v.CodeWithScope()
		return schema.Scalar{Type: schema.TypeJavaScriptCodeWithScope, Value: schema.String(code)}, nil
	case bson.TypeInt32:
		return schema.NewScalar(schema.Int32(v.Int32())), nil
	case bson.TypeTimestamp:
		t, i := v.Timestamp()
		return schema.Scalar{Type: schema.TypeTimestamp, Value: schema.Int64(int64(t)<<32 | int64(i))}, nil
	case bson.TypeInt64:
		return schema.NewScalar(schema.Int64(v.Int64())), nil
	case bson.TypeDecimal128:
		return schema.NewScalar(schema.Decimal(v.Decimal128().String())), nil
	}
	// undefined, DBPointer, min/max key
	return schema.Scalar{Type: schema.TypeUnsupported}, nil
}
