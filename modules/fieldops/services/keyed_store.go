package services

import (
	"context"
	"sync"
	"sync/atomic"
)

// keyedStore memoizes values per key. Reads of a filled entry take no lock;
// filling an entry is serialized per key so create runs at most once while it
// keeps succeeding. Failed results are never cached; a nil result is
// remembered only by find.
type keyedStore[K comparable, V any] struct {
	entries sync.Map // K -> *storeEntry[V]
}

type storeEntry[V any] struct {
	mu     sync.Mutex
	value  atomic.Pointer[V]
	absent atomic.Bool
}

func (s *keyedStore[K, V]) entry(key K) *storeEntry[V] {
	if e, ok := s.entries.Load(key); ok {
		return e.(*storeEntry[V])
	}
	e, _ := s.entries.LoadOrStore(key, &storeEntry[V]{})
	return e.(*storeEntry[V])
}

// getOrCreate reports hit=true when the value came from the store.
func (s *keyedStore[K, V]) getOrCreate(ctx context.Context, key K, create func(context.Context) (*V, error)) (v *V, hit bool, err error) {
	e := s.entry(key)
	if v := e.value.Load(); v != nil {
		return v, true, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if v := e.value.Load(); v != nil {
		return v, true, nil
	}
	v, err = create(ctx)
	if err != nil {
		return nil, false, err
	}
	if v != nil {
		e.value.Store(v)
	}
	return v, false, nil
}

// find memoizes a lookup including a miss. A key remembered as absent is
// still filled by a later getOrCreate or put.
func (s *keyedStore[K, V]) find(ctx context.Context, key K, lookup func(context.Context) (*V, error)) (v *V, hit bool, err error) {
	e := s.entry(key)
	if v, ok := e.cached(); ok {
		return v, true, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.cached(); ok {
		return v, true, nil
	}
	v, err = lookup(ctx)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		e.absent.Store(true)
	} else {
		e.value.Store(v)
	}
	return v, false, nil
}

func (e *storeEntry[V]) cached() (*V, bool) {
	if v := e.value.Load(); v != nil {
		return v, true
	}
	return nil, e.absent.Load()
}

func (s *keyedStore[K, V]) put(key K, v *V) {
	if v == nil {
		return
	}
	s.entry(key).value.Store(v)
}

func (s *keyedStore[K, V]) len() int {
	n := 0
	s.entries.Range(func(_, e any) bool {
		if e.(*storeEntry[V]).value.Load() != nil {
			n++
		}
		return true
	})
	return n
}

// keyedMutex serializes work per key.
type keyedMutex[K comparable] struct {
	locks sync.Map // K -> *sync.Mutex
}

func (m *keyedMutex[K]) lock(key K) func() {
	mu, _ := m.locks.LoadOrStore(key, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}
