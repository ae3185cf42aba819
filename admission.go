// admission.go: TinyLFU-guided admission coordinator.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package mneme

import "github.com/agilira/mneme/internal/sketch"

// admission plugs the frequency sketch into Cold-segment eviction. When
// disabled it always admits the candidate, reducing the cache to plain
// segmented-LRU behavior.
type admission struct {
	sk      *sketch.Sketch
	enabled bool
}

func newAdmission(capacity int, enabled bool) *admission {
	return &admission{sk: sketch.New(capacity), enabled: enabled}
}

// recordAccess feeds one observation into the sketch. Called only from
// the maintenance goroutine while draining read buffers; the sketch
// table itself is never touched by reader goroutines directly.
func (a *admission) recordAccess(keyHash uint64) {
	if a.enabled {
		a.sk.Increment(keyHash)
	}
}

// admit decides whether a Hot candidate being routed should displace
// the Cold victim about to be evicted. Ties favour the incumbent
// (the victim already resident in Cold).
func (a *admission) admit(candidateHash, victimHash uint64) bool {
	if !a.enabled {
		return true
	}
	cf := a.sk.EstimateFrequency(candidateHash)
	vf := a.sk.EstimateFrequency(victimHash)
	return cf > vf
}
