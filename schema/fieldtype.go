package schema

import (
	"slices"

	"github.com/axiomhq/hyperloglog"
)

// FieldType holds everything known about one type of value seen under a path.
type FieldType struct {
	Path        string
	Name        TypeName
	Count       int
	Probability float64

	// Values holds every scalar seen, array elements flattened one level.
	// Documents contribute nothing here; their detail lives in Schema.
	Values []Value

	// Lengths has one entry per array instance, for Array types only.
	Lengths []int

	// Unique and HasDuplicates are set by Finalize. Unique stays nil for
	// Document types.
	Unique        *int
	HasDuplicates bool

	// ApproxUnique is a HyperLogLog estimate of the distinct values offered,
	// including the ones dropped once the value limit was reached.
	ApproxUnique uint64
	Truncated    bool

	// Schema describes nested documents: the value itself for Document
	// types, the document elements for Array types.
	Schema *Parser

	elemOrder  []TypeName
	elemCounts map[TypeName]int

	observed int
	missing  int
	offered  int
	sketch   *hyperloglog.Sketch
	scratch  []byte
	opts     options
}

// TypeCount pairs a type name with how often it was seen.
type TypeCount struct {
	Name  TypeName
	Count int
}

func newFieldType(path string, name TypeName, opts options) *FieldType {
	return &FieldType{
		Path: path,
		Name: name,
		opts: opts,
	}
}

// Missing is the number of documents without the field that Finalize folded
// into this type. Only ever non-zero for Null.
func (t *FieldType) Missing() int { return t.missing }

// ElementTypes lists the types of array elements in first-seen order.
func (t *FieldType) ElementTypes() []TypeCount {
	res := make([]TypeCount, len(t.elemOrder))
	for i, n := range t.elemOrder {
		res[i] = TypeCount{Name: n, Count: t.elemCounts[n]}
	}
	return res
}

func (t *FieldType) update(n Node) {
	t.observed++
	t.Count = t.observed + t.missing

	switch v := n.(type) {
	case Scalar:
		if v.Type != TypeUnsupported {
			t.addValue(v.Value)
		}
	case Array:
		t.Lengths = append(t.Lengths, len(v))
		for _, e := range v {
			t.addElement(e)
		}
	case Document:
		t.nested().Observe(v)
	}
}

func (t *FieldType) addElement(n Node) {
	name := TypeOf(n)
	if t.elemCounts == nil {
		t.elemCounts = make(map[TypeName]int)
	}
	if _, ok := t.elemCounts[name]; !ok {
		t.elemOrder = append(t.elemOrder, name)
	}
	t.elemCounts[name]++

	switch e := n.(type) {
	case Scalar:
		if e.Type != TypeUnsupported {
			t.addValue(e.Value)
		}
	case Document:
		t.nested().Observe(e)
	}
}

func (t *FieldType) addValue(v Value) {
	if t.sketch == nil {
		t.sketch = hyperloglog.New()
	}
	t.scratch = v.AppendKey(t.scratch[:0])
	t.sketch.Insert(t.scratch)
	t.offered++

	if t.opts.valueLimit > 0 && len(t.Values) >= t.opts.valueLimit {
		t.Truncated = true
		return
	}
	t.Values = append(t.Values, v)
}

func (t *FieldType) nested() *Parser {
	if t.Schema == nil {
		t.Schema = newParser(t.Path, t.opts)
	}
	return t.Schema
}

func (t *FieldType) finalize(parentCount int) bool {
	t.Count = t.observed + t.missing
	t.Probability = ratio(t.Count, parentCount)

	if t.Name == TypeDocument {
		t.Unique = nil
		t.HasDuplicates = t.Schema != nil && t.Schema.finalize()
		return t.HasDuplicates
	}

	if t.sketch != nil {
		t.ApproxUnique = t.sketch.Estimate()
	}
	unique := t.uniqueCount()
	t.Unique = &unique
	t.HasDuplicates = unique != t.offered

	if t.Schema != nil && t.Schema.finalize() {
		t.HasDuplicates = true
	}
	return t.HasDuplicates
}

// uniqueCount is exact unless values were dropped, in which case the sketch
// estimate is clamped between what was retained and what was offered.
func (t *FieldType) uniqueCount() int {
	vs := slices.Clone(t.Values)
	slices.SortFunc(vs, Compare)
	exact := len(slices.CompactFunc(vs, Equal))
	if !t.Truncated {
		return exact
	}
	est := int(t.ApproxUnique)
	return max(exact, min(est, t.offered))
}

func ratio(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}
