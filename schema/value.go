package schema

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindDecimal
	KindString
	KindBinary
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	}
	return "unknown"
}

// Value is a single scalar pulled out of a document. The zero Value is null.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
	b    []byte
}

func Null() Value { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Int32(n int32) Value { return Value{kind: KindInt32, i: int64(n)} }
func Int64(n int64) Value { return Value{kind: KindInt64, i: n} }
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }
func Decimal(s string) Value { return Value{kind: KindDecimal, s: s} }
func Binary(b []byte) Value { return Value{kind: KindBinary, b: bytes.Clone(b)} }
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the text of a String or Decimal value.
func (v Value) Str() string { return v.s }

// Int returns the integer of an Int32 or Int64 value.
func (v Value) Int() int64 { return v.i }

func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool { return v.i != 0 }

// Bytes returns a copy of a Binary value's payload.
func (v Value) Bytes() []byte { return bytes.Clone(v.b) }

// Interface returns the Go representation of v, for serializers.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.Bool()
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindDouble:
		return v.f
	case KindDecimal, KindString:
		return v.s
	case KindBinary:
		return v.Bytes()
	}
	return nil
}

// Equal reports whether a and b are the same under Compare.
func Equal(a, b Value) bool { return Compare(a, b) == 0 }

// Compare defines a total order over values. Values of different kinds order
// by kind. NaN sorts after every other double and is equal only to NaN.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmpOrdered(a.kind, b.kind)
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool, KindInt32, KindInt64:
		return cmpOrdered(a.i, b.i)
	case KindDouble:
		return compareDouble(a.f, b.f)
	case KindDecimal:
		return compareDecimal(a.s, b.s)
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindBinary:
		return bytes.Compare(a.b, b.b)
	}
	return 0
}

func compareDouble(a, b float64) int {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	return cmpOrdered(a, b)
}

// compareDecimal orders parsable decimals numerically and puts the rest
// (NaN, Infinity) after them in text order.
func compareDecimal(a, b string) int {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	switch {
	case errA == nil && errB == nil:
		return da.Cmp(db)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func cmpOrdered[T int64 | float64 | ValueKind](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// AppendKey appends a kind-tagged encoding of v to dst. Two values produce the
// same key exactly when Equal reports true, decimals aside (1.0 and 1.00
// compare equal but encode differently).
func (v Value) AppendKey(dst []byte) []byte {
	dst = append(dst, byte(v.kind))
	switch v.kind {
	case KindBool, KindInt32, KindInt64:
		dst = binary.BigEndian.AppendUint64(dst, uint64(v.i))
	case KindDouble:
		f := v.f
		if math.IsNaN(f) {
			f = math.NaN()
		}
		if f == 0 {
			f = 0
		}
		dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(f))
	case KindDecimal, KindString:
		dst = append(dst, v.s...)
	case KindBinary:
		dst = append(dst, v.b...)
	}
	return dst
}
