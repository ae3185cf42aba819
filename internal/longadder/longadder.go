// longadder.go: striped, contention-avoiding sum counter.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package longadder implements a striped counter in the style of Java's
// java.util.concurrent.atomic.LongAdder: a single base cell absorbs
// uncontended increments, and only once CAS contention is actually
// observed does the counter fan out into a lazily grown array of
// cache-line-padded cells. Reading the total (Sum) is cheap and frequent;
// writing (Add/Increment/Decrement) is the hot path optimised for many
// concurrent goroutines.
package longadder

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/agilira/mneme/internal/xbits"
)

const lineSize = 64

// cell is a single padded counter used once the base cell is contended.
type cell struct {
	_ [lineSize]byte
	v atomic.Int64
	_ [lineSize]byte
}

// LongAdder is a striped 64-bit counter. The zero value is ready to use.
// Sum is an approximate snapshot, not linearizable with concurrent Add
// calls, but it never reports a negative total.
type LongAdder struct {
	base  atomic.Int64
	cells atomic.Pointer[[]*cell]
	mu    sync.Mutex // guards growth of the cells slice only
}

// Add adds delta to the counter.
func (a *LongAdder) Add(delta int64) {
	cellsPtr := a.cells.Load()
	if cellsPtr == nil {
		old := a.base.Load()
		if a.base.CompareAndSwap(old, old+delta) {
			return
		}
		// Contention on the base cell: fan out to striped cells.
		a.grow(2)
		cellsPtr = a.cells.Load()
	}

	cells := *cellsPtr
	mask := uint64(len(cells) - 1)
	start := uint64(xbits.Stripe(len(cells)))

	for i := uint64(0); i < uint64(len(cells)); i++ {
		c := cells[(start+i)&mask]
		old := c.v.Load()
		if c.v.CompareAndSwap(old, old+delta) {
			return
		}
	}

	// Every probed cell was contended. Grow further if we have not yet
	// hit the CPU-count cap, otherwise fall back to a spin-CAS on one
	// cell so the increment is never silently dropped.
	if a.grow(len(cells) * 2) {
		a.Add(delta)
		return
	}
	c := cells[start&mask]
	for {
		old := c.v.Load()
		if c.v.CompareAndSwap(old, old+delta) {
			return
		}
	}
}

// Increment adds 1 to the counter.
func (a *LongAdder) Increment() { a.Add(1) }

// Decrement subtracts 1 from the counter.
func (a *LongAdder) Decrement() { a.Add(-1) }

// Sum returns base + the sum of every cell, without fencing between
// reads. Concurrent Add calls may cause the snapshot to be slightly
// stale in either direction, but the clamp below ensures callers never
// observe a negative total.
func (a *LongAdder) Sum() int64 {
	sum := a.base.Load()
	if p := a.cells.Load(); p != nil {
		for _, c := range *p {
			sum += c.v.Load()
		}
	}
	if sum < 0 {
		sum = 0
	}
	return sum
}

// Reset zeroes the counter. Not linearizable with concurrent Add calls;
// intended for maintenance-style resets between measurement windows.
func (a *LongAdder) Reset() {
	a.base.Store(0)
	if p := a.cells.Load(); p != nil {
		for _, c := range *p {
			c.v.Store(0)
		}
	}
}

// grow enlarges the cells slice to at least min, capped at the next
// power of two >= GOMAXPROCS. It reports whether the slice is now at
// least as large as min (false means the cap was already reached).
func (a *LongAdder) grow(min int) bool {
	capLimit := int(xbits.NextPow2(uint64(runtime.GOMAXPROCS(0))))
	if capLimit < 2 {
		capLimit = 2
	}
	target := min
	if target > capLimit {
		target = capLimit
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.cells.Load()
	curLen := 0
	if cur != nil {
		curLen = len(*cur)
	}
	if curLen >= target {
		// Already big enough for this request; report whether there is
		// still headroom before the CPU-count cap.
		return curLen < capLimit
	}

	next := make([]*cell, target)
	for i := range next {
		if cur != nil && i < curLen {
			next[i] = (*cur)[i]
		} else {
			next[i] = &cell{}
		}
	}
	a.cells.Store(&next)
	return true
}
