// ringbuf.go: lock-free MPSC bounded ring buffer.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package ringbuf implements a multi-producer / single-consumer bounded
// ring buffer. Producers reserve a slot with a CAS on the tail counter
// and then publish their value into it; the single consumer advances the
// head counter only after it has observed a published value, so a
// producer that has reserved a slot but not yet written into it is
// surfaced to the consumer as Contended rather than corrupting the
// buffer. This mirrors the MPSC ring buffer used for high-throughput
// write batching elsewhere in this codebase's lineage, generalised here
// to carry arbitrary payloads instead of raw byte slices.
package ringbuf

import (
	"errors"
	"sync/atomic"

	"github.com/agilira/mneme/internal/padding"
	"github.com/agilira/mneme/internal/xbits"
)

// ErrInvalidCapacity is returned by New when capacity is negative.
var ErrInvalidCapacity = errors.New("ringbuf: capacity must be >= 0")

// Status is the result of a single TryAdd/TryTake attempt.
type Status int

const (
	// Success indicates the operation completed.
	Success Status = iota
	// Full indicates a producer found no room to reserve a slot.
	Full
	// Empty indicates a consumer found no reserved slots to take.
	Empty
	// Contended indicates a producer lost a CAS race (TryAdd), or the
	// consumer observed a slot that a producer has reserved but not yet
	// published (TryTake/DrainTo). The caller should retry later; this
	// status is never surfaced outside the cache core.
	Contended
)

// Ring is a bounded MPSC ring buffer over values of type T. The zero
// value is not usable; construct with New.
type Ring[T any] struct {
	buf  []atomic.Pointer[T]
	mask uint64
	ht   padding.HeadAndTail
}

// New creates a ring buffer whose capacity is rounded up to the next
// power of two (minimum 1). capacity must be >= 0.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}
	size := xbits.NextPow2(uint64(capacity))
	if size < 1 {
		size = 1
	}
	return &Ring[T]{
		buf:  make([]atomic.Pointer[T], size),
		mask: size - 1,
	}, nil
}

// Len returns the rounded, power-of-two capacity of the buffer.
func (r *Ring[T]) Len() int {
	return len(r.buf)
}

// Count returns a snapshot of the number of items currently buffered.
func (r *Ring[T]) Count() int {
	tail := r.ht.Tail.Load()
	head := r.ht.Head.Load()
	return int(tail - head)
}

// TryAdd attempts to reserve a slot and publish item into it. Safe for
// any number of concurrent producers. A single attempt only: on CAS
// contention it returns Contended rather than retrying internally, so
// callers control their own backoff/retry policy.
func (r *Ring[T]) TryAdd(item T) Status {
	tail := r.ht.Tail.Load()
	head := r.ht.Head.Load()
	if tail-head >= uint64(len(r.buf)) {
		return Full
	}
	if !r.ht.Tail.CompareAndSwap(tail, tail+1) {
		return Contended
	}
	v := item
	r.buf[tail&r.mask].Store(&v)
	return Success
}

// TryTake attempts to take the oldest buffered item into *out. Must only
// be called by a single consumer goroutine at a time.
func (r *Ring[T]) TryTake(out *T) Status {
	head := r.ht.Head.Load()
	tail := r.ht.Tail.Load()
	if head == tail {
		return Empty
	}
	idx := head & r.mask
	p := r.buf[idx].Load()
	if p == nil {
		// A producer has reserved this slot but has not yet published.
		return Contended
	}
	*out = *p
	r.buf[idx].Store(nil)
	r.ht.Head.Store(head + 1)
	return Success
}

// DrainTo copies buffered items into dst, stopping when dst is full, the
// buffer is empty, or an unpublished (reserved but not yet written) slot
// is observed. It returns the number of items copied. The head counter
// is published once at the end of the loop rather than once per item.
// Must only be called by a single consumer goroutine at a time.
func (r *Ring[T]) DrainTo(dst []T) int {
	head := r.ht.Head.Load()
	tail := r.ht.Tail.Load()

	n := 0
	for n < len(dst) {
		if head+uint64(n) >= tail {
			break
		}
		idx := (head + uint64(n)) & r.mask
		p := r.buf[idx].Load()
		if p == nil {
			break
		}
		dst[n] = *p
		r.buf[idx].Store(nil)
		n++
	}

	if n > 0 {
		r.ht.Head.Store(head + uint64(n))
	}
	return n
}

// Clear resets the buffer to empty. Not thread-safe: callers must ensure
// no producer or consumer is concurrently active.
func (r *Ring[T]) Clear() {
	for i := range r.buf {
		r.buf[i].Store(nil)
	}
	r.ht.Head.Store(0)
	r.ht.Tail.Store(0)
}
