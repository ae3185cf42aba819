// policy.go: time-expiration policies and segment routing decisions.
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

// Package policy implements the expiration policies consumed by the
// cache's maintenance thread, plus the access-flag-driven segment
// routing decisions shared by every policy. A Policy governs only
// expiry timestamp arithmetic (InitialExpiry/Touch/Update/ShouldDiscard);
// routing between Hot, Warm and Cold is identical across all policies
// and lives in the embeddable Router.
package policy

import (
	"errors"
	"time"

	timecache "github.com/agilira/go-timecache"
)

// ErrInvalidTTL is returned when a policy is constructed with a
// non-positive TTL, or one whose tick representation would overflow.
var ErrInvalidTTL = errors.New("policy: invalid TTL")

// maxTTL bounds the largest TTL this package will convert to
// nanoseconds, guarding against overflow when a caller-supplied
// duration is converted and added to a monotonic timestamp. This
// mirrors the "reject TTLs whose tick representation would exceed
// long.Max/100" guidance: nanosecond ticks are the finest grain in use
// here, so the divisor is folded into this single constant.
const maxTTL = time.Duration(1<<63-1) / 100

// ValidateTTL rejects a TTL that is not strictly positive or that would
// overflow once converted to the clock's tick representation.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	if ttl > maxTTL {
		return ErrInvalidTTL
	}
	return nil
}

// Clock is a monotonic time source used for expiry arithmetic. NowNano
// must never go backwards.
type Clock interface {
	NowNano() int64
}

// SystemClock wraps a cached monotonic time source so that hot-path
// expiry checks do not each pay for a fresh syscall.
type SystemClock struct {
	tc *timecache.TimeCache
}

// NewSystemClock constructs a SystemClock with millisecond resolution,
// sufficient for TTL arithmetic without imposing syscall overhead on
// every access.
func NewSystemClock() *SystemClock {
	return &SystemClock{tc: timecache.NewWithResolution(time.Millisecond)}
}

// NowNano returns the current cached time as nanoseconds since the Unix
// epoch.
func (c *SystemClock) NowNano() int64 {
	return c.tc.CachedTime().UnixNano()
}

// Stop releases the background ticker backing the cached clock.
func (c *SystemClock) Stop() {
	c.tc.Stop()
}

// FakeClock is a manually-advanced Clock for deterministic tests.
type FakeClock struct {
	now int64
}

// NewFakeClock returns a FakeClock starting at the given nanosecond
// timestamp.
func NewFakeClock(startNano int64) *FakeClock {
	return &FakeClock{now: startNano}
}

func (c *FakeClock) NowNano() int64 { return c.now }

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now += int64(d)
}

// Set pins the fake clock to an absolute nanosecond timestamp.
func (c *FakeClock) Set(nowNano int64) {
	c.now = nowNano
}

// Decision is the outcome of routing a node out of a segment during
// maintenance.
type Decision int

const (
	// ToWarm routes the node to the tail of Warm.
	ToWarm Decision = iota
	// ToCold routes the node to the tail of Cold.
	ToCold
	// Evict removes the node from the cache entirely.
	Evict
)

func (d Decision) String() string {
	switch d {
	case ToWarm:
		return "ToWarm"
	case ToCold:
		return "ToCold"
	case Evict:
		return "Evict"
	default:
		return "Decision(?)"
	}
}

// Router implements the access-flag-driven segment routing shared by
// every concrete Policy. Embed it to satisfy the routing half of the
// cache's policy contract.
type Router struct{}

// RouteHot routes a node evicted from the head of Hot: accessed nodes
// go to Warm, everything else falls through to Cold.
func (Router) RouteHot(accessed bool) Decision {
	if accessed {
		return ToWarm
	}
	return ToCold
}

// RouteWarm routes a node evicted from the head of Warm: accessed nodes
// re-circulate to the Warm tail, everything else demotes to Cold.
func (Router) RouteWarm(accessed bool) Decision {
	if accessed {
		return ToWarm
	}
	return ToCold
}

// RouteCold routes a node evicted from the head of Cold: accessed nodes
// are promoted back to Warm, everything else is evicted.
func (Router) RouteCold(accessed bool) Decision {
	if accessed {
		return ToWarm
	}
	return Evict
}

// Policy governs expiry timestamp arithmetic for one TTL discipline. A
// Policy never decides segment routing directly; ShouldDiscard takes
// priority over routing when it returns true, forcing Evict regardless
// of the access flag.
type Policy interface {
	// InitialExpiry returns the expiry timestamp to stamp on a freshly
	// created item, given the current time.
	InitialExpiry(now int64) int64
	// Touch returns the expiry timestamp after a read of an item whose
	// current expiry is expireAt, given the current time.
	Touch(expireAt int64, now int64) int64
	// Update returns the expiry timestamp after a write to an item whose
	// current expiry is expireAt, given the current time.
	Update(expireAt int64, now int64) int64
	// ShouldDiscard reports whether an item with the given expiry
	// timestamp must be evicted now.
	ShouldDiscard(expireAt int64, now int64) bool
	// CanDiscard reports whether this policy ever discards items,
	// letting the maintenance loop skip the check entirely when false.
	CanDiscard() bool

	RouteHot(accessed bool) Decision
	RouteWarm(accessed bool) Decision
	RouteCold(accessed bool) Decision
}

// NoExpiry never discards items; timestamps are unused and always zero.
type NoExpiry struct {
	Router
}

func (NoExpiry) InitialExpiry(now int64) int64              { return 0 }
func (NoExpiry) Touch(expireAt int64, now int64) int64       { return expireAt }
func (NoExpiry) Update(expireAt int64, now int64) int64      { return expireAt }
func (NoExpiry) ShouldDiscard(expireAt int64, now int64) bool { return false }
func (NoExpiry) CanDiscard() bool                            { return false }

// ExpireAfterWrite stamps the expiry timestamp on create and update
// only; reads never extend an item's lifetime.
type ExpireAfterWrite struct {
	Router
	TTL time.Duration
}

// NewExpireAfterWrite validates ttl and returns a ready policy.
func NewExpireAfterWrite(ttl time.Duration) (*ExpireAfterWrite, error) {
	if err := ValidateTTL(ttl); err != nil {
		return nil, err
	}
	return &ExpireAfterWrite{TTL: ttl}, nil
}

func (p *ExpireAfterWrite) InitialExpiry(now int64) int64 { return now + int64(p.TTL) }
func (p *ExpireAfterWrite) Touch(expireAt int64, now int64) int64 { return expireAt }
func (p *ExpireAfterWrite) Update(expireAt int64, now int64) int64 {
	return now + int64(p.TTL)
}
func (p *ExpireAfterWrite) ShouldDiscard(expireAt int64, now int64) bool {
	return now >= expireAt
}
func (p *ExpireAfterWrite) CanDiscard() bool { return true }

// ExpireAfterAccess refreshes the expiry timestamp on every read as
// well as on create and update.
type ExpireAfterAccess struct {
	Router
	TTL time.Duration
}

// NewExpireAfterAccess validates ttl and returns a ready policy.
func NewExpireAfterAccess(ttl time.Duration) (*ExpireAfterAccess, error) {
	if err := ValidateTTL(ttl); err != nil {
		return nil, err
	}
	return &ExpireAfterAccess{TTL: ttl}, nil
}

func (p *ExpireAfterAccess) InitialExpiry(now int64) int64 { return now + int64(p.TTL) }
func (p *ExpireAfterAccess) Touch(expireAt int64, now int64) int64 {
	return now + int64(p.TTL)
}
func (p *ExpireAfterAccess) Update(expireAt int64, now int64) int64 {
	return now + int64(p.TTL)
}
func (p *ExpireAfterAccess) ShouldDiscard(expireAt int64, now int64) bool {
	return now >= expireAt
}
func (p *ExpireAfterAccess) CanDiscard() bool { return true }

// ExpiryFunc computes the next expiry timestamp for an item, given the
// current time and its present expiry; returning the unchanged value
// leaves the TTL as-is.
type ExpiryFunc func(now int64, currentExpireAt int64) int64

// CustomExpiry delegates expiry computation to caller-supplied
// functions for creation, read and update events.
type CustomExpiry struct {
	Router
	OnCreate ExpiryFunc
	OnRead   ExpiryFunc
	OnUpdate ExpiryFunc
}

func (p *CustomExpiry) InitialExpiry(now int64) int64 {
	if p.OnCreate == nil {
		return now
	}
	return p.OnCreate(now, now)
}

func (p *CustomExpiry) Touch(expireAt int64, now int64) int64 {
	if p.OnRead == nil {
		return expireAt
	}
	return p.OnRead(now, expireAt)
}

func (p *CustomExpiry) Update(expireAt int64, now int64) int64 {
	if p.OnUpdate == nil {
		return expireAt
	}
	return p.OnUpdate(now, expireAt)
}

func (p *CustomExpiry) ShouldDiscard(expireAt int64, now int64) bool {
	return now >= expireAt
}

func (p *CustomExpiry) CanDiscard() bool { return true }
