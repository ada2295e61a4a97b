// Package collection keeps named schema parsers that are safe to share
// between goroutines.
package collection

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/siegeai/schemaparser/apispec"
	"github.com/siegeai/schemaparser/metrics"
	"github.com/siegeai/schemaparser/render"
	"github.com/siegeai/schemaparser/schema"
)

var (
	ErrExists   = errors.New("collection already exists")
	ErrNotFound = errors.New("collection not found")
)

// Collection guards one parser with a mutex. Snapshots finalize in place,
// so observing may continue after one is taken.
type Collection struct {
	Name    string
	Created time.Time

	mu      sync.Mutex
	parser  *schema.Parser
	updated time.Time
}

func newCollection(name string, opts []schema.Option) *Collection {
	now := time.Now()
	return &Collection{
		Name:    name,
		Created: now,
		parser:  schema.NewParser(opts...),
		updated: now,
	}
}

func (c *Collection) Observe(docs ...schema.Document) {
	if len(docs) == 0 {
		return
	}
	c.mu.Lock()
	for _, d := range docs {
		c.parser.Observe(d)
	}
	c.updated = time.Now()
	c.mu.Unlock()

	metrics.DocumentsObserved.WithLabelValues(c.Name).Add(float64(len(docs)))
}

func (c *Collection) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parser.Count()
}

// Snapshot is a consistent copy of the schema inferred so far.
type Snapshot struct {
	Tree    *render.Schema
	OpenAPI *openapi3.Schema
}

func (c *Collection) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	c.parser.Finalize()
	metrics.FinalizeDuration.Observe(time.Since(start).Seconds())

	return Snapshot{
		Tree:    render.Tree(c.parser),
		OpenAPI: apispec.Schema(c.parser),
	}
}

// With runs fn on the finalized parser while holding the lock. fn must not
// keep the parser.
func (c *Collection) With(fn func(*schema.Parser)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.parser.Finalize())
}

type Info struct {
	Name    string    `json:"name"`
	Count   int       `json:"count"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

func (c *Collection) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{Name: c.Name, Count: c.parser.Count(), Created: c.Created, Updated: c.updated}
}

type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	opts        []schema.Option
}

// NewRegistry returns an empty registry whose collections are created with
// opts.
func NewRegistry(opts ...schema.Option) *Registry {
	return &Registry{
		collections: make(map[string]*Collection),
		opts:        opts,
	}
}

// Create adds a collection. An empty name is replaced by a random uuid.
func (r *Registry) Create(name string) (*Collection, error) {
	if name == "" {
		name = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collections[name]; ok {
		return nil, ErrExists
	}
	c := newCollection(name, r.opts)
	r.collections[name] = c
	metrics.Collections.Inc()
	return c, nil
}

func (r *Registry) Get(name string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (r *Registry) GetOrCreate(name string) *Collection {
	if c, err := r.Get(name); err == nil {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.collections[name]; ok {
		return c
	}
	c := newCollection(name, r.opts)
	r.collections[name] = c
	metrics.Collections.Inc()
	return c
}

func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collections[name]; !ok {
		return ErrNotFound
	}
	delete(r.collections, name)
	metrics.Collections.Dec()
	return nil
}

// List returns the collections sorted by name.
func (r *Registry) List() []*Collection {
	r.mu.RLock()
	res := make([]*Collection, 0, len(r.collections))
	for _, c := range r.collections {
		res = append(res, c)
	}
	r.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
