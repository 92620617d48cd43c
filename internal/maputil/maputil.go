// Package maputil holds lock-guarded helpers for maps shared between
// goroutines.
package maputil

import "sync"

// Pop removes key from map under lock and returns the previous value if present.
func Pop[K comparable, V any](mu *sync.Mutex, items map[K]V, key K) (V, bool) {
	mu.Lock()
	defer mu.Unlock()

	value, ok := items[key]
	if ok {
		delete(items, key)
	}
	return value, ok
}

// Insert stores value under key unless key is already present. It reports
// whether the value was stored.
func Insert[K comparable, V any](mu *sync.Mutex, items map[K]V, key K, value V) bool {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := items[key]; exists {
		return false
	}
	items[key] = value
	return true
}
