package infer

import (
	"encoding/base64"
	"encoding/hex"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastjson"

	"github.com/siegeai/schemaparser/schema"
)

// extended recognizes the MongoDB Extended JSON wrappers, canonical and
// relaxed v2 as well as the legacy shell forms. Anything malformed is left
// for the caller to treat as an ordinary object.
func extended(o *fastjson.Object) (schema.Node, bool) {
	n := o.Len()
	if n == 0 || n > 2 {
		return nil, false
	}
	var keys []string
	o.Visit(func(k []byte, _ *fastjson.Value) { keys = append(keys, string(k)) })
	if !strings.HasPrefix(keys[0], "$") {
		return nil, false
	}
	slices.Sort(keys)

	if n == 2 {
		switch {
		case keys[0] == "$binary" && keys[1] == "$type":
			return legacyBinary(o)
		case keys[0] == "$options" && keys[1] == "$regex":
			return regex(o.Get("$regex"), o.Get("$options"))
		case keys[0] == "$code" && keys[1] == "$scope":
			return code(o.Get("$code"), schema.TypeJavaScriptCodeWithScope)
		}
		return nil, false
	}

	v := o.Get(keys[0])
	switch keys[0] {
	case "$oid":
		s := str(v)
		if len(s) != 24 {
			return nil, false
		}
		if _, err := hex.DecodeString(s); err != nil {
			return nil, false
		}
		return schema.Scalar{Type: schema.TypeObjectID, Value: schema.String(s)}, true
	case "$date":
		return date(v)
	case "$numberInt":
		i, err := strconv.ParseInt(str(v), 10, 32)
		if err != nil {
			return nil, false
		}
		return schema.NewScalar(schema.Int32(int32(i))), true
	case "$numberLong":
		i, err := strconv.ParseInt(str(v), 10, 64)
		if err != nil {
			return nil, false
		}
		return schema.NewScalar(schema.Int64(i)), true
	case "$numberDouble":
		f, ok := parseDouble(str(v))
		if !ok {
			return nil, false
		}
		return schema.NewScalar(schema.Double(f)), true
	case "$numberDecimal":
		if v.Type() != fastjson.TypeString {
			return nil, false
		}
		return schema.NewScalar(schema.Decimal(str(v))), true
	case "$binary":
		return binary(v)
	case "$uuid":
		id, err := uuid.Parse(str(v))
		if err != nil {
			return nil, false
		}
		return schema.NewScalar(schema.Binary(id[:])), true
	case "$regularExpression":
		if v.Type() != fastjson.TypeObject {
			return nil, false
		}
		return regex(v.Get("pattern"), v.Get("options"))
	case "$timestamp":
		if v.Type() != fastjson.TypeObject {
			return nil, false
		}
		t, okT := uint32Of(v.Get("t"))
		i, okI := uint32Of(v.Get("i"))
		if !okT || !okI {
			return nil, false
		}
		return schema.Scalar{Type: schema.TypeTimestamp, Value: schema.Int64(int64(t)<<32 | int64(i))}, true
	case "$symbol":
		if v.Type() != fastjson.TypeString {
			return nil, false
		}
		return schema.Scalar{Type: schema.TypeSymbol, Value: schema.String(str(v))}, true
	case "$code":
		return code(v, schema.TypeJavaScriptCode)
	case "$minKey", "$maxKey", "$undefined":
		return schema.Scalar{Type: schema.TypeUnsupported}, true
	}
	return nil, false
}

// str returns the text of a string value and "" for anything else,
// including a nil value.
func str(v *fastjson.Value) string {
	if v == nil || v.Type() != fastjson.TypeString {
		return ""
	}
	b, _ := v.StringBytes()
	return string(b)
}

func uint32Of(v *fastjson.Value) (uint32, bool) {
	if v == nil {
		return 0, false
	}
	n, err := v.Uint64()
	if err != nil || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

func parseDouble(s string) (float64, bool) {
	switch s {
	case "Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	case "NaN":
		return math.NaN(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

// date accepts {"$date": <iso string>}, {"$date": <millis>} and
// {"$date": {"$numberLong": <millis>}}. Dates are carried as RFC 3339 text in
// UTC.
func date(v *fastjson.Value) (schema.Node, bool) {
	var ms int64
	switch v.Type() {
	case fastjson.TypeString:
		t, err := time.Parse(time.RFC3339Nano, str(v))
		if err != nil {
			return nil, false
		}
		ms = t.UnixMilli()
	case fastjson.TypeNumber:
		i, err := v.Int64()
		if err != nil {
			return nil, false
		}
		ms = i
	case fastjson.TypeObject:
		i, err := strconv.ParseInt(str(v.Get("$numberLong")), 10, 64)
		if err != nil {
			return nil, false
		}
		ms = i
	default:
		return nil, false
	}
	return schema.Scalar{Type: schema.TypeUtcDatetime, Value: schema.String(formatDate(ms))}, true
}

func formatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func binary(v *fastjson.Value) (schema.Node, bool) {
	if v.Type() != fastjson.TypeObject {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(str(v.Get("base64")))
	if err != nil {
		return nil, false
	}
	return schema.NewScalar(schema.Binary(b)), true
}

func legacyBinary(o *fastjson.Object) (schema.Node, bool) {
	b, err := base64.StdEncoding.DecodeString(str(o.Get("$binary")))
	if err != nil {
		return nil, false
	}
	return schema.NewScalar(schema.Binary(b)), true
}

func regex(pattern, options *fastjson.Value) (schema.Node, bool) {
	if pattern == nil || pattern.Type() != fastjson.TypeString {
		return nil, false
	}
	return schema.Scalar{Type: schema.TypeRegex, Value: schema.String(formatRegex(str(pattern), str(options)))}, true
}

func formatRegex(pattern, options string) string {
	return "/" + pattern + "/" + options
}

func code(v *fastjson.Value, t schema.TypeName) (schema.Node, bool) {
	if v == nil || v.Type() != fastjson.TypeString {
		return nil, false
	}
	return schema.Scalar{Type: t, Value: schema.String(str(v))}, true
}
