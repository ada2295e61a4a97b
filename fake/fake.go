// Package fake generates random documents for tests and load generation.
package fake

import (
	"math/rand"

	"github.com/siegeai/schemaparser/schema"
)

const maxDepth = 4

var keys = []string{"id", "name", "type", "tags", "owner", "count", "score", "active", "meta", "address"}

// Document returns a random document. Keys come from a small pool so that
// fields recur across documents.
func Document(r *rand.Rand) schema.Document {
	return document(r, 0)
}

func document(r *rand.Rand, depth int) schema.Document {
	nkeys := 1 + r.Intn(len(keys))
	doc := make(schema.Document, 0, nkeys)
	for _, i := range r.Perm(len(keys))[:nkeys] {
		doc = append(doc, schema.Element{Key: keys[i], Value: node(r, depth+1)})
	}
	return doc
}

func node(r *rand.Rand, depth int) schema.Node {
	n := r.Intn(100)
	switch {
	case depth < maxDepth && n < 10:
		return document(r, depth)
	case depth < maxDepth && n < 20:
		arr := make(schema.Array, r.Intn(4))
		for i := range arr {
			arr[i] = node(r, depth+1)
		}
		return arr
	}
	return schema.NewScalar(Value(r))
}

// Value returns a random scalar of any kind. Draws collide often enough to
// produce duplicates.
func Value(r *rand.Rand) schema.Value {
	switch r.Intn(7) {
	case 0:
		return schema.Null()
	case 1:
		return schema.Bool(r.Intn(2) == 0)
	case 2:
		return schema.Int32(int32(r.Intn(50)))
	case 3:
		return schema.Int64(r.Int63n(1 << 40))
	case 4:
		return schema.Double(float64(r.Intn(100)) / 4)
	case 5:
		return schema.Binary([]byte(String(r, 1+r.Intn(3))))
	}
	return schema.String(String(r, 1+r.Intn(3)))
}

// JSON returns a random JSON-compatible object.
func JSON(r *rand.Rand) map[string]any {
	return jsonRecursive(r, 0)
}

func jsonRecursive(r *rand.Rand, depth int) map[string]any {
	nkeys := 1 + r.Intn(len(keys))
	obj := make(map[string]any, nkeys)
	for _, i := range r.Perm(len(keys))[:nkeys] {
		if r.Intn(100) < 70 || depth+1 >= maxDepth {
			obj[keys[i]] = String(r, 1+r.Intn(8))
		} else {
			obj[keys[i]] = jsonRecursive(r, depth+1)
		}
	}
	return obj
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func String(r *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}
