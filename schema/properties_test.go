package schema_test

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siegeai/schemaparser/fake"
	"github.com/siegeai/schemaparser/schema"
)

func randomParser(seed int64, n int) *schema.Parser {
	r := rand.New(rand.NewSource(seed))
	p := schema.NewParser()
	for i := 0; i < n; i++ {
		p.Observe(fake.Document(r))
	}
	return p.Finalize()
}

// walk visits every parser in the tree, the root included.
func walk(p *schema.Parser, fn func(*schema.Parser)) {
	fn(p)
	for _, f := range p.Fields() {
		for _, ft := range f.Types() {
			if ft.Schema != nil {
				walk(ft.Schema, fn)
			}
		}
	}
}

func TestCountsAddUp(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		walk(randomParser(seed, 200), func(p *schema.Parser) {
			for _, f := range p.Fields() {
				assert.Equal(t, p.Count(), f.Count, "field %s", f.Path)

				sum := 0
				for _, ft := range f.Types() {
					sum += ft.Count
				}
				assert.Equal(t, f.Count, sum, "types of %s", f.Path)
			}
		})
	}
}

func TestProbabilitiesInRange(t *testing.T) {
	walk(randomParser(7, 500), func(p *schema.Parser) {
		for _, f := range p.Fields() {
			assert.Greater(t, f.Probability, 0.0)
			assert.LessOrEqual(t, f.Probability, 1.0)

			total := 0.0
			for _, ft := range f.Types() {
				assert.GreaterOrEqual(t, ft.Probability, 0.0)
				assert.LessOrEqual(t, ft.Probability, 1.0)
				total += ft.Probability
			}
			assert.InDelta(t, 1.0, total, 1e-9, "types of %s", f.Path)
		}
	})
}

func TestArrayLengthsMatchElements(t *testing.T) {
	walk(randomParser(3, 500), func(p *schema.Parser) {
		for _, f := range p.Fields() {
			ft, ok := f.Type(schema.TypeArray)
			if !ok {
				continue
			}
			assert.Len(t, ft.Lengths, ft.Count)

			sum, elems := 0, 0
			for _, n := range ft.Lengths {
				sum += n
			}
			for _, e := range ft.ElementTypes() {
				elems += e.Count
			}
			assert.Equal(t, sum, elems, "array %s", f.Path)
		}
	})
}

func TestUniqueMatchesValues(t *testing.T) {
	walk(randomParser(11, 300), func(p *schema.Parser) {
		for _, f := range p.Fields() {
			for _, ft := range f.Types() {
				if ft.Name == schema.TypeDocument {
					assert.Nil(t, ft.Unique)
					continue
				}
				require.NotNil(t, ft.Unique)

				vs := slices.Clone(ft.Values)
				slices.SortFunc(vs, schema.Compare)
				distinct := len(slices.CompactFunc(vs, schema.Equal))
				assert.Equal(t, distinct, *ft.Unique, "type %s of %s", ft.Name, f.Path)
				if distinct < len(ft.Values) {
					assert.True(t, ft.HasDuplicates)
					assert.True(t, f.HasDuplicates)
				}
			}
		}
	})
}

func TestFinalizeTwiceChangesNothing(t *testing.T) {
	p := randomParser(5, 300)

	snapshot := func() []int {
		var counts []int
		walk(p, func(q *schema.Parser) {
			for _, f := range q.Fields() {
				counts = append(counts, f.Count)
				for _, ft := range f.Types() {
					counts = append(counts, ft.Count, len(ft.Values))
				}
			}
		})
		return counts
	}

	before := snapshot()
	p.Finalize()
	assert.Equal(t, before, snapshot())
}

func TestSameInputSameResult(t *testing.T) {
	a, b := randomParser(42, 100), randomParser(42, 100)
	require.Len(t, b.Fields(), len(a.Fields()))
	for i, f := range a.Fields() {
		g := b.Fields()[i]
		assert.Equal(t, f.Name, g.Name)
		assert.Equal(t, f.TypeNames(), g.TypeNames())
	}
}
