package schema

// TypeName discriminates the kinds of values a field can hold. String gives
// the name used in serialized output.
type TypeName uint8

const (
	TypeUnsupported TypeName = iota
	TypeString
	TypeInt32
	TypeLong
	TypeDouble
	TypeBoolean
	TypeBinData
	TypeDecimal128
	TypeNull
	TypeObjectID
	TypeUtcDatetime
	TypeTimestamp
	TypeRegex
	TypeJavaScriptCode
	TypeJavaScriptCodeWithScope
	TypeSymbol
	TypeDocument
	TypeArray
)

var typeNames = [...]string{
	TypeUnsupported:             "Unsupported",
	TypeString:                  "String",
	TypeInt32:                   "Int32",
	TypeLong:                    "Long",
	TypeDouble:                  "Double",
	TypeBoolean:                 "Boolean",
	TypeBinData:                 "BinData",
	TypeDecimal128:              "Decimal128",
	TypeNull:                    "Null",
	TypeObjectID:                "ObjectId",
	TypeUtcDatetime:             "UtcDatetime",
	TypeTimestamp:               "Timestamp",
	TypeRegex:                   "Regex",
	TypeJavaScriptCode:          "JavaScriptCode",
	TypeJavaScriptCodeWithScope: "JavaScriptCodeWithScope",
	TypeSymbol:                  "Symbol",
	TypeDocument:                "Document",
	TypeArray:                   "Array",
}

func (t TypeName) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return typeNames[TypeUnsupported]
}

// ParseTypeName is the inverse of TypeName.String.
func ParseTypeName(s string) (TypeName, bool) {
	for i, n := range typeNames {
		if n == s {
			return TypeName(i), true
		}
	}
	return TypeUnsupported, false
}

// Node is one element of a decoded document tree: a Scalar, a Document or an
// Array.
type Node interface {
	TypeName() TypeName
}

// Scalar is a leaf of the document tree. Type may be richer than the kind of
// Value: an ObjectId, date or regex carries a String value, a Timestamp an
// Int64 value.
type Scalar struct {
	Type  TypeName
	Value Value
}

func (s Scalar) TypeName() TypeName { return s.Type }

// Element is a key/value pair of a Document.
type Element struct {
	Key   string
	Value Node
}

// Document is an ordered list of elements, in the order the decoder saw them.
type Document []Element

func (Document) TypeName() TypeName { return TypeDocument }

// Lookup returns the value of the first element named key.
func (d Document) Lookup(key string) (Node, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

type Array []Node

func (Array) TypeName() TypeName { return TypeArray }

// NewScalar wraps v using the type name that matches its kind.
func NewScalar(v Value) Scalar {
	return Scalar{Type: scalarTypeOf(v.Kind()), Value: v}
}

func scalarTypeOf(k ValueKind) TypeName {
	switch k {
	case KindNull:
		return TypeNull
	case KindBool:
		return TypeBoolean
	case KindInt32:
		return TypeInt32
	case KindInt64:
		return TypeLong
	case KindDouble:
		return TypeDouble
	case KindDecimal:
		return TypeDecimal128
	case KindString:
		return TypeString
	case KindBinary:
		return TypeBinData
	}
	return TypeUnsupported
}

// TypeOf classifies a node. A nil node is Unsupported.
func TypeOf(n Node) TypeName {
	if n == nil {
		return TypeUnsupported
	}
	return n.TypeName()
}
