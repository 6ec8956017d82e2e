package relation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_DescribeMemoized(t *testing.T) {
	r := NewResolver(blogSchema(), Config{})

	first, err := r.Describe("posts")
	require.NoError(t, err)
	second, err := r.Describe("posts")
	require.NoError(t, err)

	require.NotEmpty(t, first)
	// Memoized: the cached slice is returned, not a fresh derivation.
	assert.Equal(t, &first[0], &second[0])
}

func TestResolver_UnknownTable(t *testing.T) {
	r := NewResolver(blogSchema(), Config{})

	_, err := r.Describe("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestResolver_Find(t *testing.T) {
	r := NewResolver(blogSchema(), Config{})

	d, ok := r.Find("posts", "author")
	require.True(t, ok)
	assert.Equal(t, KindOne, d.Kind)

	_, ok = r.Find("posts", "nope")
	assert.False(t, ok)
}

func TestResolver_ConcurrentDescribe(t *testing.T) {
	r := NewResolver(blogSchema(), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, table := range []string{"posts", "authors", "tags", "profiles"} {
				_, err := r.Describe(table)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
