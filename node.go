// node.go: cache entry and its segment-list linkage.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mneme

import (
	"sync"
	"sync/atomic"

	"github.com/agilira/mneme/internal/seqlock"
)

// segmentTag identifies which of the three FIFOs a node currently
// belongs to, or PendingRemove/NotPresent for nodes mid-transition.
type segmentTag int32

const (
	tagNotPresent segmentTag = iota
	tagHot
	tagWarm
	tagCold
	tagPendingRemove
)

// node is one cache entry. Segment linkage (prev/next) is mutated only
// by the single maintenance goroutine and is therefore a plain,
// unsynchronized field; every other field that a reader touches
// concurrently with maintenance is atomic.
type node[V any] struct {
	key     string
	keyHash uint64
	value   seqlock.Seq[V]

	segment  atomic.Int32 // segmentTag
	accessed atomic.Bool
	removed  atomic.Bool

	expireAt atomic.Int64 // nanoseconds; meaning depends on the active policy

	// mu serializes concurrent AddOrUpdate/TryUpdate writers racing on
	// the same key; maintenance never needs it, since it is the sole
	// owner of segment linkage and runs single-threaded.
	mu sync.Mutex

	prev, next *node[V] // maintenance-owned; nil outside a segment
}

func newNode[V any](key string, keyHash uint64, value V, expireAt int64) *node[V] {
	n := &node[V]{key: key, keyHash: keyHash}
	n.value.Store(value)
	n.expireAt.Store(expireAt)
	n.segment.Store(int32(tagNotPresent))
	return n
}

func (n *node[V]) Segment() segmentTag { return segmentTag(n.segment.Load()) }
func (n *node[V]) setSegment(s segmentTag) { n.segment.Store(int32(s)) }

func (n *node[V]) Accessed() bool      { return n.accessed.Load() }
func (n *node[V]) markAccessed()       { n.accessed.Store(true) }
func (n *node[V]) clearAccessed() bool { return n.accessed.Swap(false) }

func (n *node[V]) Removed() bool  { return n.removed.Load() }
func (n *node[V]) markRemoved()   { n.removed.Store(true) }

// ExpireAtNano and SetExpireAtNano satisfy policy arithmetic that
// operates purely on timestamps (see policy.Policy); the node stores
// the timestamp, the policy decides how to move it.
func (n *node[V]) ExpireAtNano() int64           { return n.expireAt.Load() }
func (n *node[V]) SetExpireAtNano(nanos int64) { n.expireAt.Store(nanos) }

func (n *node[V]) loadValue() (V, bool) { return n.value.Load() }
func (n *node[V]) storeValue(v V)       { n.value.Store(v) }
