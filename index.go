// index.go: concurrent key -> node index.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mneme

import "github.com/puzpuzpuz/xsync/v3"

// keyIndex is the concurrent key -> node index backing the cache,
// following the same split the pack's own s3fifo shard implementations
// use around their entries map: entries is an xsync.MapOf, giving every
// plain Load a lock-free read path; mu (an xsync.RBMutex, reader-biased
// under the BRAVO algorithm) is taken around every write: Store, Delete,
// and the compound check-then-act sequences a plain map Load/Store/Delete
// can't express atomically on its own (LoadOrStore, CompareAndDelete).
// Range, like Load, takes no lock.
type keyIndex[V any] struct {
	entries *xsync.MapOf[string, *node[V]]
	mu      *xsync.RBMutex
}

func newKeyIndex[V any]() keyIndex[V] {
	return keyIndex[V]{
		entries: xsync.NewMapOf[string, *node[V]](),
		mu:      xsync.NewRBMutex(),
	}
}

func (idx *keyIndex[V]) Load(key string) (*node[V], bool) {
	return idx.entries.Load(key)
}

// LoadOrStore inserts n if key is absent, returning the node actually
// stored (either n, or a pre-existing node from a racing writer) and
// whether it was the one already present.
func (idx *keyIndex[V]) LoadOrStore(key string, n *node[V]) (*node[V], bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if actual, ok := idx.entries.Load(key); ok {
		return actual, true
	}
	idx.entries.Store(key, n)
	return n, false
}

func (idx *keyIndex[V]) Store(key string, n *node[V]) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries.Store(key, n)
}

func (idx *keyIndex[V]) Delete(key string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries.Delete(key)
}

// CompareAndDelete removes key only if its current node is n, avoiding
// a race where maintenance evicts a stale node just as a writer
// installs a fresh one under the same key.
func (idx *keyIndex[V]) CompareAndDelete(key string, n *node[V]) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	actual, ok := idx.entries.Load(key)
	if !ok || actual != n {
		return false
	}
	idx.entries.Delete(key)
	return true
}

func (idx *keyIndex[V]) Range(f func(key string, n *node[V]) bool) {
	idx.entries.Range(f)
}
