// cache.go: public API - concurrent bounded cache with segmented eviction.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mneme

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/agilira/mneme/internal/longadder"
	"github.com/agilira/mneme/internal/ringbuf"
	"github.com/agilira/mneme/internal/xbits"
	"github.com/agilira/mneme/policy"
)

// Cache is a bounded, concurrent, in-process cache. The zero value is
// not usable; construct with New, NewLRU, NewTinyLFU or NewWithExpiry.
//
// Basic usage:
//
//	c, err := mneme.New[string](mneme.Config{Capacity: 10_000})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.AddOrUpdate("k", "v")
//	v, ok := c.TryGet("k")
type Cache[V any] struct {
	cfg Config

	idx  keyIndex[V]
	hot  *segment[V]
	warm *segment[V]
	cold *segment[V]

	readBufs []*ringbuf.Ring[*node[V]]

	writeBuf writeBuffer[V]

	maintRunning atomic.Bool
	count        longadder.LongAdder

	policy policy.Policy
	clock  policy.Clock

	admission *admission

	factory singleflight.Group

	closed atomic.Bool
}

// New constructs a plain segmented-LRU cache (no frequency-aware
// admission, no expiration).
func New[V any](cfg Config) (*Cache[V], error) {
	return newCache[V](cfg, false, nil, nil)
}

// NewLRU is an alias for New, spelled out for callers who want to be
// explicit that frequency-aware admission is off.
func NewLRU[V any](cfg Config) (*Cache[V], error) {
	return newCache[V](cfg, false, nil, nil)
}

// NewTinyLFU constructs a cache with TinyLFU-guided admission: when
// Cold is at capacity, a candidate arriving from Hot or Warm is only
// admitted if it is estimated to be accessed more often than the
// incumbent it would displace.
func NewTinyLFU[V any](cfg Config) (*Cache[V], error) {
	return newCache[V](cfg, true, nil, nil)
}

// NewWithExpiry attaches an expiration policy (ExpireAfterWrite,
// ExpireAfterAccess or CustomExpiry) on top of segmented-LRU routing,
// with TinyLFU-guided admission when cfg.FrequencyAware is set. p must
// not be nil.
func NewWithExpiry[V any](cfg Config, p policy.Policy) (*Cache[V], error) {
	if p == nil {
		return nil, errNilPolicy
	}
	return newCache[V](cfg, cfg.FrequencyAware, p, policy.NewSystemClock())
}

func newCache[V any](cfg Config, frequencyAware bool, p policy.Policy, clock policy.Clock) (*Cache[V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if p == nil {
		p = policy.NoExpiry{}
	}

	hotCap, warmCap, coldCap := cfg.segmentCapacities()

	c := &Cache[V]{
		cfg:    cfg,
		idx:    newKeyIndex[V](),
		hot:    newSegment[V](tagHot, hotCap),
		warm:   newSegment[V](tagWarm, warmCap),
		cold:   newSegment[V](tagCold, coldCap),
		policy: p,
		clock:  clock,
	}
	if frequencyAware {
		c.admission = newAdmission(cfg.Capacity, true)
	}

	stripes := cfg.Stripes
	if stripes <= 0 {
		stripes = runtime.GOMAXPROCS(0)
	}
	if stripes < 1 {
		stripes = 1
	}
	stripes = int(xbits.NextPow2(uint64(stripes)))
	c.readBufs = make([]*ringbuf.Ring[*node[V]], stripes)
	for i := range c.readBufs {
		r, err := ringbuf.New[*node[V]](cfg.ReadBufferLength)
		if err != nil {
			return nil, newError(InvalidArgument, "New", err)
		}
		c.readBufs[i] = r
	}

	return c, nil
}

func (c *Cache[V]) nowNano() int64 {
	if c.clock == nil {
		return 0
	}
	return c.clock.NowNano()
}

// TryGet looks up key. It returns the zero value and false if the key
// is absent, was concurrently removed, or has expired under the active
// policy (a lazy check; the entry itself may not be physically evicted
// until the next maintenance pass reaches it).
func (c *Cache[V]) TryGet(key string) (V, bool) {
	var zero V
	n, ok := c.idx.Load(key)
	if !ok || n.Removed() {
		return zero, false
	}
	if c.discard(n) {
		return zero, false
	}
	v, ok := n.loadValue()
	if !ok {
		// The sequence lock exhausted its bounded retry budget against a
		// writer that never let up; report it and treat the entry as a
		// transient miss rather than blocking the reader further.
		c.cfg.reportError("TryGet", newError(ExhaustedRetry, "TryGet", nil))
		return zero, false
	}

	if c.policy != nil {
		n.SetExpireAtNano(c.policy.Touch(n.ExpireAtNano(), c.nowNano()))
	}
	n.markAccessed()
	c.recordRead(n)
	return v, true
}

// recordRead pushes n into this goroutine's read-buffer stripe and, if
// the stripe is full, attempts a maintenance pass (skipping rather than
// blocking if one is already running).
func (c *Cache[V]) recordRead(n *node[V]) {
	stripe := xbits.Stripe(len(c.readBufs))
	if c.readBufs[stripe].TryAdd(n) == ringbuf.Full {
		c.tryMaintenance()
	}
}

// GetOrAdd returns the existing value for key, or calls factory exactly
// once per key (even under concurrent callers) and stores its result.
func (c *Cache[V]) GetOrAdd(key string, factory func() (V, error)) (V, error) {
	if v, ok := c.TryGet(key); ok {
		return v, nil
	}

	v, err, _ := c.factory.Do(key, func() (interface{}, error) {
		if v, ok := c.TryGet(key); ok {
			return v, nil
		}
		val, err := factory()
		if err != nil {
			return nil, err
		}
		c.AddOrUpdate(key, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// AddOrUpdate inserts key with value, or updates it in place if already
// present.
func (c *Cache[V]) AddOrUpdate(key string, value V) {
	now := c.nowNano()
	if existing, ok := c.idx.Load(key); ok && !existing.Removed() {
		existing.mu.Lock()
		existing.storeValue(value)
		if c.policy != nil {
			existing.SetExpireAtNano(c.policy.Update(existing.ExpireAtNano(), now))
		}
		existing.mu.Unlock()
		return
	}

	expireAt := int64(0)
	if c.policy != nil {
		expireAt = c.policy.InitialExpiry(now)
	}
	n := newNode[V](key, xbits.HashString(key), value, expireAt)
	actual, loaded := c.idx.LoadOrStore(key, n)
	if loaded {
		// Lost the race to a concurrent inserter; fold our write into
		// the node that won instead of leaving an orphan.
		actual.mu.Lock()
		actual.storeValue(value)
		if c.policy != nil {
			actual.SetExpireAtNano(c.policy.Update(actual.ExpireAtNano(), now))
		}
		actual.mu.Unlock()
		return
	}

	c.writeBuf.push(n, opAdd)
	c.tryMaintenance()
}

// TryUpdate replaces the value for an existing key without creating one.
// Reports whether the key was present.
func (c *Cache[V]) TryUpdate(key string, value V) bool {
	n, ok := c.idx.Load(key)
	if !ok || n.Removed() {
		return false
	}
	n.mu.Lock()
	n.storeValue(value)
	if c.policy != nil {
		now := c.nowNano()
		n.SetExpireAtNano(c.policy.Update(n.ExpireAtNano(), now))
	}
	n.mu.Unlock()
	return true
}

// TryRemove deletes key if present, reporting whether it was.
func (c *Cache[V]) TryRemove(key string) bool {
	n, ok := c.idx.Load(key)
	if !ok || n.Removed() {
		return false
	}
	n.markRemoved()
	c.idx.CompareAndDelete(key, n)
	c.writeBuf.push(n, opRemove)
	c.tryMaintenance()
	return true
}

// Clear empties the cache. Not safe to call concurrently with other
// mutating operations; callers should quiesce writers first.
func (c *Cache[V]) Clear() {
	c.idx.Range(func(key string, n *node[V]) bool {
		n.markRemoved()
		c.idx.CompareAndDelete(key, n)
		return true
	})
	c.hot = newSegment[V](tagHot, c.hot.capacity)
	c.warm = newSegment[V](tagWarm, c.warm.capacity)
	c.cold = newSegment[V](tagCold, c.cold.capacity)
	for _, r := range c.readBufs {
		r.Clear()
	}
	c.writeBuf.drain()
	c.count.Reset()
}

// Count returns a snapshot of the number of entries currently retained,
// accurate to within one maintenance cycle.
func (c *Cache[V]) Count() int {
	n := c.count.Sum()
	if n < 0 {
		return 0
	}
	return int(n)
}

// Capacity returns the configured maximum entry count.
func (c *Cache[V]) Capacity() int {
	return c.cfg.Capacity
}

// Close releases the cache's background resources (the monotonic clock
// ticker, when one was started for an expiration policy).
func (c *Cache[V]) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if sc, ok := c.clock.(*policy.SystemClock); ok {
		sc.Stop()
	}
}
