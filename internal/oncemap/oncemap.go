// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package oncemap provides a concurrent map whose values are computed at most
// once per key.
package oncemap

import "sync"

// Map lazily computes a value for each key using the function passed to New.
// Both the value and the error from that computation are cached, so a failed
// lookup is not retried.
type Map[K comparable, V any] struct {
	m   sync.Map /*[K, *entry[V]]*/
	new func(K) (V, error)
}

type entry[V any] struct {
	once sync.Once
	val  V
	err  error
}

func New[K comparable, V any](new func(K) (V, error)) *Map[K, V] {
	return &Map[K, V]{new: new}
}

// Get returns the value for key, computing it if this is the first call for
// key. Concurrent callers for the same key block until the first computation
// finishes.
func (m *Map[K, V]) Get(key K) (V, error) {
	var ent *entry[V]
	entX, ok := m.m.Load(key)
	if ok {
		ent = entX.(*entry[V])
	} else {
		ent = new(entry[V])
		entX, ok = m.m.LoadOrStore(key, ent)
		if ok {
			// We lost a race.
			ent = entX.(*entry[V])
		}
	}

	ent.once.Do(func() {
		ent.val, ent.err = m.new(key)
	})

	return ent.val, ent.err
}

// Forget drops the cached value for key. The next Get recomputes it.
func (m *Map[K, V]) Forget(key K) {
	m.m.Delete(key)
}
