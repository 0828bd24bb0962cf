package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_Seed(t *testing.T) {
	seed := map[string]any{"storage.backend": "memory"}
	store := NewConfigStore(seed)
	seed["storage.backend"] = "changed"

	assert.Equal(t, "memory", store.GetString("storage.backend"))
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(nil)
	require.NoError(t, store.Set("a.int", 3))
	require.NoError(t, store.Set("a.int64", int64(4)))
	require.NoError(t, store.Set("a.float", 5.9))
	require.NoError(t, store.Set("a.bool", true))
	require.NoError(t, store.Set("a.list", []any{"x", 1, "y"}))
	require.NoError(t, store.Set("a.strings", []string{"p"}))

	assert.Equal(t, 3, store.GetInt("a.int"))
	assert.Equal(t, 4, store.GetInt("a.int64"))
	assert.Equal(t, 5, store.GetInt("a.float"))
	assert.True(t, store.GetBool("a.bool"))
	assert.Equal(t, []string{"x", "y"}, store.GetStringSlice("a.list"))
	assert.Equal(t, []string{"p"}, store.GetStringSlice("a.strings"))

	assert.Empty(t, store.GetString("a.int"))
	assert.Zero(t, store.GetInt("missing"))
	assert.False(t, store.GetBool("a.int"))
	assert.Nil(t, store.GetStringSlice("a.bool"))

	assert.Equal(t, []string{"a.bool", "a.float", "a.int", "a.int64", "a.list", "a.strings"}, store.Keys())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("retrieval.top_k", n)
		}(i)
		go func() {
			defer wg.Done()
			_ = store.GetInt("retrieval.top_k")
			_ = store.Keys()
		}()
	}
	wg.Wait()

	_, ok := store.Get("retrieval.top_k")
	assert.True(t, ok)
}
