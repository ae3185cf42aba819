// maintenance.go: single-threaded segment routing and buffer draining.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mneme

import "github.com/agilira/mneme/policy"

// DoMaintenance drains the read and write buffers, applies routing
// across Hot/Warm/Cold, and processes any pending expirations it
// encounters along the way. Only one pass runs at a time: a caller that
// finds maintenance already in progress skips rather than waits, per
// the concurrency model's single-flag gate.
func (c *Cache[V]) DoMaintenance() {
	c.tryMaintenance()
}

func (c *Cache[V]) tryMaintenance() {
	if !c.maintRunning.CompareAndSwap(false, true) {
		return
	}
	defer c.maintRunning.Store(false)
	c.drainReadBuffers()
	c.drainWriteBuffer()
}

// drainReadBuffers feeds every buffered access into the frequency
// sketch. The access flag on each node was already set synchronously
// by the reader; this pass only performs the deferred, maintenance-only
// sketch bookkeeping.
func (c *Cache[V]) drainReadBuffers() {
	buf := make([]*node[V], 64)
	for _, r := range c.readBufs {
		for {
			n := r.DrainTo(buf)
			if n == 0 {
				break
			}
			for i := 0; i < n; i++ {
				if c.admission != nil {
					c.admission.recordAccess(buf[i].keyHash)
				}
			}
			if n < len(buf) {
				break
			}
		}
	}
}

// drainWriteBuffer applies every pending Add/Remove event, routing
// overflow out of Hot and Warm as capacity requires.
func (c *Cache[V]) drainWriteBuffer() {
	events := c.writeBuf.drain()
	for _, ev := range events {
		switch ev.op {
		case opAdd:
			c.applyAdd(ev.n)
		case opRemove:
			c.applyRemove(ev.n)
		}
	}
}

func (c *Cache[V]) applyAdd(n *node[V]) {
	if n.Removed() {
		// Removed before maintenance ever placed it; nothing to do.
		return
	}
	c.hot.pushTail(n)
	c.count.Increment()
	for c.hot.full() {
		victim := c.hot.popHead()
		if victim == nil {
			break
		}
		c.routeFromHot(victim)
	}
}

func (c *Cache[V]) applyRemove(n *node[V]) {
	switch n.Segment() {
	case tagHot:
		c.hot.unlink(n)
	case tagWarm:
		c.warm.unlink(n)
	case tagCold:
		c.cold.unlink(n)
	default:
		return
	}
	n.setSegment(tagNotPresent)
	c.count.Decrement()
}

func (c *Cache[V]) routeFromHot(n *node[V]) {
	if c.discard(n) {
		c.evict(n)
		return
	}
	accessed := n.clearAccessed()
	switch c.policy.RouteHot(accessed) {
	case policy.ToWarm:
		c.warm.pushTail(n)
		c.overflowWarm()
	case policy.ToCold:
		c.admitToCold(n)
	case policy.Evict:
		c.evict(n)
	}
}

func (c *Cache[V]) overflowWarm() {
	recirculated := 0
	for c.warm.full() {
		victim := c.warm.popHead()
		if victim == nil {
			break
		}
		if c.discard(victim) {
			c.evict(victim)
			continue
		}
		accessed := victim.clearAccessed()
		switch c.policy.RouteWarm(accessed) {
		case policy.ToWarm:
			// Re-circulate to the Warm tail, at most capacity times per
			// call so items re-accessed concurrently can't spin this
			// loop forever; past that budget the head demotes to Cold
			// so Warm still shrinks back to its capacity.
			if recirculated < c.warm.capacity {
				recirculated++
				c.warm.pushTail(victim)
				continue
			}
			c.admitToCold(victim)
		case policy.ToCold:
			c.admitToCold(victim)
		case policy.Evict:
			c.evict(victim)
		}
	}
}

// admitToCold is the pending-admission coordinator of 4.6: candidate is
// a node arriving at Cold from Hot or Warm. When Cold is at capacity and
// frequency-aware admission is enabled, candidate is compared against
// the incumbent Cold head (the victim that would otherwise be evicted);
// the lower-frequency one loses. Ties favour the incumbent victim. When
// admission is disabled, candidate is simply appended and any resulting
// overflow is routed the ordinary way.
func (c *Cache[V]) admitToCold(candidate *node[V]) {
	if c.cold.count < c.cold.capacity {
		c.cold.pushTail(candidate)
		return
	}

	if c.admission == nil || !c.admission.enabled {
		c.cold.pushTail(candidate)
		c.overflowCold()
		return
	}

	victim := c.cold.head
	if victim == nil {
		c.cold.pushTail(candidate)
		return
	}
	if c.discard(victim) {
		c.cold.unlink(victim)
		c.evict(victim)
		c.cold.pushTail(candidate)
		return
	}

	if c.admission.admit(candidate.keyHash, victim.keyHash) {
		c.cold.unlink(victim)
		c.evict(victim)
		c.cold.pushTail(candidate)
		return
	}
	// Tie or victim wins: candidate is rejected outright, the
	// incumbent keeps its place.
	c.evict(candidate)
}

func (c *Cache[V]) overflowCold() {
	for c.cold.full() {
		victim := c.cold.popHead()
		if victim == nil {
			break
		}
		if c.discard(victim) {
			c.evict(victim)
			continue
		}
		accessed := victim.clearAccessed()
		switch c.policy.RouteCold(accessed) {
		case policy.ToWarm:
			c.warm.pushTail(victim)
			c.overflowWarm()
		case policy.ToCold:
			c.cold.pushTail(victim)
		case policy.Evict:
			c.evict(victim)
		}
	}
}

// discard reports whether the active expiry policy says n must be
// removed right now, regardless of its access flag.
func (c *Cache[V]) discard(n *node[V]) bool {
	if c.policy == nil || !c.policy.CanDiscard() {
		return false
	}
	return c.policy.ShouldDiscard(n.ExpireAtNano(), c.clock.NowNano())
}

// evict removes n from the index and marks it gone. Defensive about
// missing index entries: a concurrent TryRemove may have already
// deleted this key, in which case CompareAndDelete is simply a no-op.
func (c *Cache[V]) evict(n *node[V]) {
	n.markRemoved()
	n.setSegment(tagNotPresent)
	c.idx.CompareAndDelete(n.key, n)
	c.count.Decrement()
}

// TrimExpired runs one maintenance pass, then walks every segment
// removing items whose ShouldDiscard returns true. Per the design
// notes, this is a best-effort single pass: a caller requiring a strict
// bound must call it repeatedly until no further items are removed.
func (c *Cache[V]) TrimExpired() {
	c.tryMaintenance()
	if c.policy == nil || !c.policy.CanDiscard() {
		return
	}
	c.trimSegment(c.hot)
	c.trimSegment(c.warm)
	c.trimSegment(c.cold)
}

func (c *Cache[V]) trimSegment(s *segment[V]) {
	n := s.head
	for n != nil {
		next := n.next
		if c.discard(n) {
			s.unlink(n)
			c.evict(n)
		}
		n = next
	}
}

// Trim runs maintenance, then removes up to n items starting from the
// Cold head.
func (c *Cache[V]) Trim(n int) {
	c.tryMaintenance()
	for i := 0; i < n; i++ {
		victim := c.cold.popHead()
		if victim == nil {
			break
		}
		c.evict(victim)
	}
}
