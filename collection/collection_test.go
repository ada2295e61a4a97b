package collection

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siegeai/schemaparser/fake"
	"github.com/siegeai/schemaparser/schema"
)

func TestCreateGetDelete(t *testing.T) {
	r := NewRegistry()

	c, err := r.Create("pets")
	require.Nil(t, err)
	assert.Equal(t, "pets", c.Name)

	_, err = r.Create("pets")
	assert.ErrorIs(t, err, ErrExists)

	got, err := r.Get("pets")
	require.Nil(t, err)
	assert.Same(t, c, got)

	require.Nil(t, r.Delete("pets"))
	_, err = r.Get("pets")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Delete("pets"), ErrNotFound)
}

func TestCreateGeneratesName(t *testing.T) {
	r := NewRegistry()
	c, err := r.Create("")
	require.Nil(t, err)
	_, err = uuid.Parse(c.Name)
	assert.Nil(t, err)
}

func TestGetOrCreate(t *testing.T) {
	r := NewRegistry()
	a := r.GetOrCreate("a")
	assert.Same(t, a, r.GetOrCreate("a"))
	assert.Len(t, r.List(), 1)
}

func TestListSorted(t *testing.T) {
	r := NewRegistry()
	for _, n := range []string{"c", "a", "b"} {
		r.GetOrCreate(n)
	}
	var names []string
	for _, c := range r.List() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestSnapshot(t *testing.T) {
	c := NewRegistry().GetOrCreate("pets")
	c.Observe(
		schema.Document{{Key: "name", Value: schema.NewScalar(schema.String("Nori"))}},
		schema.Document{{Key: "age", Value: schema.NewScalar(schema.Int32(3))}},
	)

	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Tree.Count)
	require.Len(t, snap.Tree.Fields, 2)
	assert.Equal(t, 0.5, snap.Tree.Fields[0].Probability)
	assert.Len(t, snap.OpenAPI.Properties, 2)
	assert.Empty(t, snap.OpenAPI.Required)

	// Observing after a snapshot keeps counting from where it was.
	c.Observe(schema.Document{{Key: "name", Value: schema.NewScalar(schema.String("Rey"))}})
	snap = c.Snapshot()
	assert.Equal(t, 3, snap.Tree.Count)
	assert.Equal(t, 3, snap.Tree.Fields[0].Count)
	assert.Equal(t, 3, c.Info().Count)
}

func TestConcurrentObserve(t *testing.T) {
	c := NewRegistry(schema.WithValueLimit(10)).GetOrCreate("load")

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 100; i++ {
				c.Observe(fake.Document(r))
				if i%25 == 0 {
					c.Snapshot()
				}
			}
		}(int64(w))
	}
	wg.Wait()

	assert.Equal(t, 800, c.Count())
	for _, f := range c.Snapshot().Tree.Fields {
		assert.Equal(t, 800, f.Count)
	}
}
