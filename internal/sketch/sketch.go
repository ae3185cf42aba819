// sketch.go: 4-bit counting Count-Min sketch for frequency estimation.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package sketch implements the TinyLFU frequency sketch: a four-bit
// counting Count-Min sketch over 64-bit words, each holding sixteen
// saturating counters. Four independent hash probes touch four words
// per key; within each word a per-key offset selects one of four
// counters. The sketch ages itself by halving every counter once the
// number of recorded increments reaches a sample-size threshold, so
// frequency estimates track a recent window rather than accumulating
// forever.
package sketch

import "math/bits"

// seed mirrors the fixed per-row seeds used by the reference Count-Min
// sketch this design descends from.
var seed = [4]uint64{
	0xc3a5c85c97cb3127,
	0xb492b66fbe98f273,
	0x9ae16a3b2f90404f,
	0xcbf29ce484222325,
}

const (
	oneMask   = 0x1111111111111111
	sevenMask = 0x7777777777777777
)

// Sketch is a 4-bit counting Count-Min sketch. It is not safe for
// concurrent use by multiple writers; callers must serialize Increment
// and Reset/Clear (the cache core restricts these to its single
// maintenance owner). EstimateFrequency may be called concurrently with
// reads, but not concurrently with a mutation, for the same reason the
// wider design restricts the table to maintenance-only access.
type Sketch struct {
	table      []uint64 // length = next power of two >= capacity
	mask       uint64
	size       int64
	sampleSize int64
}

// New constructs a sketch sized for capacity entries. capacity must be
// > 0. sampleSize is 10 * capacity, minimum 10.
func New(capacity int) *Sketch {
	if capacity < 1 {
		capacity = 1
	}
	size := nextPow2(uint64(capacity))
	sampleSize := int64(10 * capacity)
	if sampleSize < 10 {
		sampleSize = 10
	}
	return &Sketch{
		table:      make([]uint64, size),
		mask:       size - 1,
		sampleSize: sampleSize,
	}
}

func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len64(x-1)
}

// spread mixes a raw hash so that its four probe indices are well
// distributed even when the input hash has low entropy in its low bits.
func spread(h uint64) uint64 {
	h = (h ^ (h >> 16)) * 0x45d9f3b
	h = (h ^ (h >> 16)) * 0x45d9f3b
	h ^= h >> 16
	return h
}

// indexOf computes the word index for probe i of hash h.
func (s *Sketch) indexOf(h uint64, i int) uint64 {
	hi := (h + seed[i]) * seed[i]
	hi += hi >> 32
	return hi & s.mask
}

// EstimateFrequency returns the minimum of the four counters addressed
// by the given key's hash, a value in [0, 15].
func (s *Sketch) EstimateFrequency(keyHash uint64) byte {
	h := spread(keyHash)
	counterSlot := byte((h & 3) << 2)

	var min byte = 15
	for i := 0; i < 4; i++ {
		idx := s.indexOf(h, i)
		word := s.table[idx]
		shift := (counterSlot + byte(i)) * 4
		c := byte(word>>shift) & 0xf
		if c < min {
			min = c
		}
	}
	return min
}

// Increment records one observation of the key, incrementing up to four
// saturating counters (cap 15). It returns whether any counter actually
// changed (false if every addressed counter was already saturated).
// size advances on every call so that a Reset is guaranteed once
// sampleSize observations have been recorded, whether or not those
// observations landed on already-saturated counters.
func (s *Sketch) Increment(keyHash uint64) bool {
	h := spread(keyHash)
	counterSlot := byte((h & 3) << 2)

	changed := false
	for i := 0; i < 4; i++ {
		idx := s.indexOf(h, i)
		shift := (counterSlot + byte(i)) * 4
		word := s.table[idx]
		c := byte(word>>shift) & 0xf
		if c < 15 {
			s.table[idx] = word + (1 << shift)
			changed = true
		}
	}

	s.size++
	if s.size == s.sampleSize {
		s.Reset()
	}
	return changed
}

// Reset halves every counter in the table in a single pass and adjusts
// size to reflect the residual occupancy, per the reference aging
// algorithm: count the number of odd (low-bit-set) counters in each
// word before halving, then size = (size - count/4) / 2.
func (s *Sketch) Reset() {
	var count int64
	for i, word := range s.table {
		count += int64(bits.OnesCount64(word & oneMask))
		s.table[i] = (word >> 1) & sevenMask
	}
	s.size = (s.size - (count >> 2)) >> 1
	if s.size < 0 {
		s.size = 0
	}
}

// Clear zeroes the table and the size counter.
func (s *Sketch) Clear() {
	for i := range s.table {
		s.table[i] = 0
	}
	s.size = 0
}

// ResetSampleSize recomputes sampleSize for a new capacity (10x,
// minimum 10) without otherwise touching the table.
func (s *Sketch) ResetSampleSize(capacity int) {
	sampleSize := int64(10 * capacity)
	if sampleSize < 10 {
		sampleSize = 10
	}
	s.sampleSize = sampleSize
}

// Size returns the number of recorded increments since the last reset.
func (s *Sketch) Size() int64 {
	return s.size
}
