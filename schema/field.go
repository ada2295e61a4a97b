package schema

// Field holds everything known about one key path across all documents at
// its nesting level.
type Field struct {
	Name string
	Path string

	// Count is the number of documents holding the field until Finalize,
	// which raises it to the document count by imputing Null for the rest.
	Count         int
	Probability   float64
	HasDuplicates bool

	order    []TypeName
	types    map[TypeName]*FieldType
	observed int
	opts     options
}

func newField(name, path string, opts options) *Field {
	return &Field{
		Name:  name,
		Path:  path,
		types: make(map[TypeName]*FieldType),
		opts:  opts,
	}
}

// TypeNames returns the type names seen, in first-seen order.
func (f *Field) TypeNames() []TypeName {
	return append([]TypeName(nil), f.order...)
}

// Types returns the per-type aggregates in first-seen order.
func (f *Field) Types() []*FieldType {
	res := make([]*FieldType, len(f.order))
	for i, n := range f.order {
		res[i] = f.types[n]
	}
	return res
}

func (f *Field) Type(name TypeName) (*FieldType, bool) {
	t, ok := f.types[name]
	return t, ok
}

// Observed is the number of documents that actually held the field.
func (f *Field) Observed() int { return f.observed }

func (f *Field) update(n Node) {
	name := TypeOf(n)
	t, ok := f.types[name]
	if !ok {
		t = newFieldType(f.Path, name, f.opts)
		f.types[name] = t
		f.order = append(f.order, name)
	}
	t.update(n)

	f.observed++
	f.Count = f.observed
}

func (f *Field) finalize(total int) bool {
	f.impute(total - f.observed)
	f.Count = max(total, f.observed)
	f.Probability = ratio(f.observed, total)

	f.HasDuplicates = false
	for _, n := range f.order {
		if f.types[n].finalize(f.Count) {
			f.HasDuplicates = true
		}
	}
	return f.HasDuplicates
}

// impute records the documents lacking the field as Null. The deficit is
// set, not added, so running it again gives the same counts.
func (f *Field) impute(deficit int) {
	null, ok := f.types[TypeNull]
	if deficit <= 0 {
		if ok {
			null.missing = 0
			if null.observed == 0 {
				f.drop(TypeNull)
			}
		}
		return
	}
	if !ok {
		null = newFieldType(f.Path, TypeNull, f.opts)
		f.types[TypeNull] = null
		f.order = append(f.order, TypeNull)
	}
	null.missing = deficit
}

func (f *Field) drop(name TypeName) {
	delete(f.types, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			return
		}
	}
}
