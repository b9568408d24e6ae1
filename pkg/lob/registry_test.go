package lob

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddSymbol(t *testing.T) {
	reg := NewRegistry()

	assert.True(t, reg.AddSymbol("META", 5))
	assert.False(t, reg.AddSymbol("META", 9), "second registration must be rejected")
	assert.Equal(t, 5, reg.Depth("META"), "depth must not change on conflict")

	book, ok := reg.Book("META")
	require.True(t, ok)
	assert.Equal(t, "META", book.Symbol())
}

func TestRegistryRemoveSymbol(t *testing.T) {
	reg := NewRegistry()
	reg.AddSymbol("META", 5)

	held, _ := reg.Book("META")

	assert.True(t, reg.RemoveSymbol("META"))
	assert.False(t, reg.RemoveSymbol("META"))

	_, ok := reg.Book("META")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Depth("META"))

	// A handle taken before removal stays usable.
	held.Add(gtc(1, Buy, 10, 5))
	assert.Equal(t, 1, held.Size())
}

func TestRegistryUnknownSymbol(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Book("NOPE")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Depth("NOPE"))
	assert.False(t, reg.RemoveSymbol("NOPE"))
}

func TestRegistryConcurrentLookups(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < 8; i++ {
		reg.AddSymbol(fmt.Sprintf("SYM%d", i), 5)
	}

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				symbol := fmt.Sprintf("SYM%d", i%8)
				if book, ok := reg.Book(symbol); ok {
					book.Size()
				}
				reg.Depth(symbol)
			}
		}(w)
	}
	for i := 0; i < 100; i++ {
		reg.AddSymbol(fmt.Sprintf("EXTRA%d", i), 3)
		reg.Symbols()
	}
	wg.Wait()

	assert.Len(t, reg.Symbols(), 108)
}
