// Package schema infers a probabilistic schema from a stream of decoded
// documents.
//
// A Parser is fed one Document at a time with Observe. Finalize then fills in
// Null for fields absent from some documents and computes probabilities,
// unique counts and duplicate flags for the whole tree. Values are retained
// per field type to answer uniqueness exactly, so memory grows with the
// input; WithValueLimit bounds it at the cost of estimated unique counts.
//
// A Parser is not safe for concurrent use.
package schema

type options struct {
	valueLimit int
}

type Option func(*options)

// WithValueLimit caps the values retained per field type. Zero, the default,
// retains everything.
func WithValueLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.valueLimit = n
		}
	}
}

// Parser aggregates documents at one nesting level. Nested documents are
// aggregated by a Parser owned by the FieldType they were found under.
type Parser struct {
	path   string
	count  int
	order  []string
	fields map[string]*Field
	opts   options
}

func NewParser(opts ...Option) *Parser {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return newParser("", o)
}

func newParser(path string, opts options) *Parser {
	return &Parser{
		path:   path,
		fields: make(map[string]*Field),
		opts:   opts,
	}
}

// Count is the number of documents observed at this level.
func (p *Parser) Count() int { return p.count }

// Path is the dotted path of the documents this parser describes, empty at
// the root.
func (p *Parser) Path() string { return p.path }

// Fields returns the fields in first-seen order.
func (p *Parser) Fields() []*Field {
	res := make([]*Field, len(p.order))
	for i, k := range p.order {
		res[i] = p.fields[k]
	}
	return res
}

func (p *Parser) Field(name string) (*Field, bool) {
	f, ok := p.fields[name]
	return f, ok
}

// Observe folds one document into the aggregate. Only the first occurrence of
// a key repeated within the document is counted.
func (p *Parser) Observe(doc Document) {
	p.count++

	seen := make(map[string]struct{}, len(doc))
	for _, e := range doc {
		if _, dup := seen[e.Key]; dup {
			continue
		}
		seen[e.Key] = struct{}{}

		f, ok := p.fields[e.Key]
		if !ok {
			f = newField(e.Key, joinPath(p.path, e.Key), p.opts)
			p.fields[e.Key] = f
			p.order = append(p.order, e.Key)
		}
		f.update(e.Value)
	}
}

// Finalize imputes missing fields and computes the derived statistics for
// the whole tree. It can be called repeatedly, and Observe may be called
// again afterwards.
func (p *Parser) Finalize() *Parser {
	p.finalize()
	return p
}

func (p *Parser) finalize() bool {
	dup := false
	for _, k := range p.order {
		if p.fields[k].finalize(p.count) {
			dup = true
		}
	}
	return dup
}

// HasDuplicates reports whether any field at or below this level holds
// duplicate values, as of the last Finalize.
func (p *Parser) HasDuplicates() bool {
	for _, f := range p.fields {
		if f.HasDuplicates {
			return true
		}
	}
	return false
}

// joinPath does not escape dots, so a key containing "." cannot be told
// apart from a nesting boundary.
func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
