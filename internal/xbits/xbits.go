// xbits.go: bit-twiddling and hashing helpers shared by the cache core.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package xbits collects the small, allocation-free bit operations the
// cache core leans on repeatedly: power-of-two rounding, population count,
// integer mixing, and key hashing. None of this is cache-specific; it is
// kept separate so the cache core, ring buffer, and striped adder can all
// pull from one well-tested place. The frequency sketch keeps its own
// private copies of the power-of-two and mixing formulas.
package xbits

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// NextPow2 returns the smallest power of two >= x. NextPow2(0) and
// NextPow2(1) both return 1.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(x-1))
}

// PopCount returns the number of set bits in x.
func PopCount(x uint64) int {
	return bits.OnesCount64(x)
}

// Mix applies a 64-bit avalanche mix (xorshift-multiply, twice, then a
// final xorshift) to spread low-entropy inputs across the full width of
// the word. Used by Stripe to pick a read-buffer stripe or striped
// counter cell.
func Mix(h uint64) uint64 {
	h = (h ^ (h >> 16)) * 0x45d9f3b
	h = (h ^ (h >> 16)) * 0x45d9f3b
	h ^= h >> 16
	return h
}

// HashString returns a fast, non-cryptographic 64-bit hash of s. The
// cache computes it once when a node is created and stores it as the
// node's key hash, which feeds the frequency sketch; the key index is
// keyed by the string itself.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

// probeCounter supplies entropy for Stripe below. It does not need to be
// goroutine-local: its only job is to make successive calls from the same
// goroutine land on different stripes often enough to spread contention,
// not to guarantee a stable per-goroutine affinity.
var probeCounter atomic.Uint64

// Stripe picks a pseudo-random index in [0, n) for the calling goroutine.
// Go has no first-class thread/goroutine id, so this combines a
// monotonic counter with the stack address of a local variable (which
// differs across concurrently running goroutines) as cheap, allocation-
// free entropy. n must be a power of two; the result is undefined
// otherwise.
func Stripe(n int) int {
	var local byte
	seed := uint64(uintptr(unsafe.Pointer(&local))) ^ probeCounter.Add(1)
	return int(Mix(seed) & uint64(n-1))
}
