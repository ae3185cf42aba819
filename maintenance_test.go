package mneme

import (
	"fmt"
	"testing"
)

// TestMaintenanceSingleFlightGate confirms only one maintenance pass
// runs at a time: a contender finds maintRunning already set and skips.
func TestMaintenanceSingleFlightGate(t *testing.T) {
	c, _ := New[int](Config{Capacity: 10})
	c.maintRunning.Store(true)
	// tryMaintenance must return immediately without clearing the flag
	// a concurrent real pass set.
	c.tryMaintenance()
	if !c.maintRunning.Load() {
		t.Fatalf("tryMaintenance cleared maintRunning set by another pass")
	}
	c.maintRunning.Store(false)
}

func TestApplyAddRoutesToHotAndOverflows(t *testing.T) {
	c, _ := New[int](Config{Capacity: 10})
	for i := 0; i < 20; i++ {
		c.AddOrUpdate(fmt.Sprintf("k%d", i), i)
	}
	c.DoMaintenance()

	total := c.hot.count + c.warm.count + c.cold.count
	if total > c.cfg.Capacity {
		t.Fatalf("hot+warm+cold = %d, want <= capacity %d", total, c.cfg.Capacity)
	}
}

func TestTrimRemovesFromColdHead(t *testing.T) {
	c, _ := New[int](Config{Capacity: 30})
	for i := 0; i < 30; i++ {
		c.AddOrUpdate(fmt.Sprintf("k%d", i), i)
	}
	c.DoMaintenance()

	before := c.Count()
	c.Trim(3)
	after := c.Count()
	if before-after != 3 && before >= 3 {
		t.Fatalf("Count() went from %d to %d, want a drop of 3 (cold had enough entries)", before, after)
	}
}

func TestTrimExpiredIsNoopWithoutPolicy(t *testing.T) {
	c, _ := New[int](Config{Capacity: 10})
	c.AddOrUpdate("k", 1)
	c.DoMaintenance()
	c.TrimExpired()
	if _, ok := c.TryGet("k"); !ok {
		t.Fatalf("TryGet(k) after TrimExpired with no policy = false, want true")
	}
}
