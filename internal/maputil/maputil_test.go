package maputil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertAndPop(t *testing.T) {
	var mu sync.Mutex
	items := map[string]int{}

	assert.True(t, Insert(&mu, items, "a", 1))
	assert.False(t, Insert(&mu, items, "a", 2))

	value, ok := Pop(&mu, items, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = Pop(&mu, items, "a")
	assert.False(t, ok)
}

func TestInsertConcurrent(t *testing.T) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		wins  sync.Map
		items = map[string]int{}
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Insert(&mu, items, "slot", i) {
				wins.Store(i, true)
			}
		}()
	}
	wg.Wait()

	count := 0
	wins.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count)
}
