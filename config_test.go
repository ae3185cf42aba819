package mneme

import "testing"

func TestConfigValidate(t *testing.T) {
	if err := (Config{Capacity: 0}).validate(); err == nil {
		t.Fatalf("validate() with Capacity 0 = nil, want error")
	}
	if err := (Config{Capacity: 10}).validate(); err != nil {
		t.Fatalf("validate() with Capacity 10 = %v, want nil", err)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{Capacity: 10}.withDefaults()
	if c.ReadBufferLength != defaultReadBufferLength {
		t.Fatalf("ReadBufferLength = %d, want default %d", c.ReadBufferLength, defaultReadBufferLength)
	}

	c2 := Config{Capacity: 10, ReadBufferLength: 128}.withDefaults()
	if c2.ReadBufferLength != 128 {
		t.Fatalf("ReadBufferLength = %d, want unchanged 128", c2.ReadBufferLength)
	}
}

func TestConfigSegmentCapacities(t *testing.T) {
	hot, warm, cold := Config{Capacity: 100}.segmentCapacities()
	if hot+warm+cold != 100 {
		t.Fatalf("hot+warm+cold = %d, want 100", hot+warm+cold)
	}
	if hot != 10 || cold != 10 || warm != 80 {
		t.Fatalf("segmentCapacities() = (%d,%d,%d), want (10,80,10)", hot, warm, cold)
	}
}

func TestConfigSegmentCapacitiesSmallCapacity(t *testing.T) {
	hot, warm, cold := Config{Capacity: 3}.segmentCapacities()
	if hot < 1 || cold < 1 || warm < 1 {
		t.Fatalf("segmentCapacities() for tiny capacity = (%d,%d,%d), want all >= 1", hot, warm, cold)
	}
}

// TestConfigSegmentCapacitiesNeverExceedsCapacity covers invariant 1
// (0 <= Count <= Capacity) at the capacities small enough that Hot and
// Cold's 1-entry floors can't both be honored without leaving Warm
// nothing: the three must still sum to at most Capacity.
func TestConfigSegmentCapacitiesNeverExceedsCapacity(t *testing.T) {
	for capacity := 1; capacity <= 5; capacity++ {
		hot, warm, cold := Config{Capacity: capacity}.segmentCapacities()
		if total := hot + warm + cold; total > capacity {
			t.Fatalf("Capacity %d: hot+warm+cold = %d, want <= %d", capacity, total, capacity)
		}
		if hot < 0 || warm < 1 || cold < 0 {
			t.Fatalf("Capacity %d: segmentCapacities() = (%d,%d,%d), want hot,cold >= 0 and warm >= 1", capacity, hot, warm, cold)
		}
	}
}

func TestConfigReportErrorCallback(t *testing.T) {
	var gotOp string
	var gotErr error
	cfg := Config{Capacity: 10, ErrorCallback: func(op string, err error) {
		gotOp, gotErr = op, err
	}}
	sentinel := errNonPositiveCapacity
	cfg.reportError("op", sentinel)
	if gotOp != "op" || gotErr != sentinel {
		t.Fatalf("ErrorCallback got (%q, %v), want (op, sentinel)", gotOp, gotErr)
	}
}
