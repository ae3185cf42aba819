// doc.go: package overview and usage examples.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package mneme provides an in-process concurrent cache with bounded
// capacity and pluggable eviction. Entries are routed through a
// three-segment Hot/Warm/Cold state machine maintained one pass at a
// time by whichever caller goroutine wins the maintenance gate (there is
// no background goroutine), optionally guided by a TinyLFU frequency
// sketch for admission decisions. Time-based expiration is supported
// through the policy sub-package.
//
// # Quick Start
//
// A plain LRU cache with a fixed capacity:
//
//	c, err := mneme.New[string](mneme.Config{Capacity: 10_000})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.AddOrUpdate("user:42", "alice")
//	if v, ok := c.TryGet("user:42"); ok {
//		fmt.Println(v)
//	}
//
// # Frequency-Aware Admission (TinyLFU)
//
// NewTinyLFU enables sketch-guided admission when Cold items are
// evicted under pressure:
//
//	c, err := mneme.NewTinyLFU[int](mneme.Config{Capacity: 100_000})
//
// # Expiring Entries
//
// NewWithExpiry attaches a policy.Policy controlling per-item TTL
// arithmetic:
//
//	ttlPolicy, _ := policy.NewExpireAfterWrite(5 * time.Minute)
//	c, err := mneme.NewWithExpiry[string](mneme.Config{Capacity: 10_000}, ttlPolicy)
//
// # Maintenance
//
// Most callers never need to call DoMaintenance directly: a read
// triggers it when its read-buffer stripe is full, and every insert of
// a new key or TryRemove triggers it as well. It is exposed
// for callers that want deterministic eviction timing in tests, and
// TrimExpired/Trim for explicit cleanup:
//
//	c.DoMaintenance()
//	c.TrimExpired()
package mneme
