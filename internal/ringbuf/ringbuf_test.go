package ringbuf

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewRoundsToPowerOfTwo(t *testing.T) {
	r, err := New[int](10)
	if err != nil {
		t.Fatalf("New(10) error: %v", err)
	}
	if got := r.Len(); got != 16 {
		t.Fatalf("Len() = %d, want 16", got)
	}
}

func TestNewRejectsNegativeCapacity(t *testing.T) {
	if _, err := New[int](-1); err != ErrInvalidCapacity {
		t.Fatalf("New(-1) error = %v, want ErrInvalidCapacity", err)
	}
}

// TestRingFull: construct buffer with bounded length 10 (rounds to 16).
// Sixteen successful TryAdd; the seventeenth returns Full. One TryTake
// succeeds; a further TryAdd succeeds.
func TestRingFull(t *testing.T) {
	r, err := New[int](10)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 16; i++ {
		if got := r.TryAdd(i); got != Success {
			t.Fatalf("TryAdd(%d) = %v, want Success", i, got)
		}
	}
	if got := r.TryAdd(16); got != Full {
		t.Fatalf("17th TryAdd = %v, want Full", got)
	}

	var out int
	if got := r.TryTake(&out); got != Success {
		t.Fatalf("TryTake = %v, want Success", got)
	}
	if out != 0 {
		t.Fatalf("TryTake out = %d, want 0 (FIFO order)", out)
	}

	if got := r.TryAdd(99); got != Success {
		t.Fatalf("TryAdd after a take = %v, want Success", got)
	}
}

// TestDrainWithOffset: add "1","2","3"; drain into an output window
// offset by 6 of length 10 -> writes "1","2","3" at positions 6,7,8;
// returns 3.
func TestDrainWithOffset(t *testing.T) {
	r, err := New[string](16)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"1", "2", "3"} {
		if got := r.TryAdd(s); got != Success {
			t.Fatalf("TryAdd(%q) = %v, want Success", s, got)
		}
	}

	window := make([]string, 10)
	n := r.DrainTo(window[6:])
	if n != 3 {
		t.Fatalf("DrainTo returned %d, want 3", n)
	}
	if window[6] != "1" || window[7] != "2" || window[8] != "3" {
		t.Fatalf("window = %#v, want [1 2 3] at offsets 6,7,8", window)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() after full drain = %d, want 0", r.Count())
	}
}

func TestTryTakeEmpty(t *testing.T) {
	r, _ := New[int](4)
	var out int
	if got := r.TryTake(&out); got != Empty {
		t.Fatalf("TryTake on empty buffer = %v, want Empty", got)
	}
}

func TestClear(t *testing.T) {
	r, _ := New[int](4)
	r.TryAdd(1)
	r.TryAdd(2)
	r.Clear()
	if r.Count() != 0 {
		t.Fatalf("Count() after Clear() = %d, want 0", r.Count())
	}
	if got := r.TryAdd(3); got != Success {
		t.Fatalf("TryAdd after Clear() = %v, want Success", got)
	}
}

// TestMPSCUnderContention: 4 producers fill a length-1024 buffer; a
// single consumer drains; terminates with all items accounted for and
// buffer empty.
func TestMPSCUnderContention(t *testing.T) {
	r, err := New[int](1024)
	if err != nil {
		t.Fatal(err)
	}

	const producers = 4
	const perProducer = 2000 // intentionally > capacity to exercise Full/retry

	var produced atomic.Int64
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for {
					status := r.TryAdd(1)
					if status == Success {
						produced.Add(1)
						break
					}
					if status == Full {
						// Buffer momentarily full: yield to the
						// consumer and retry.
						continue
					}
					// Contended: another producer raced us for this
					// slot; retry.
				}
			}
		}()
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	var consumed atomic.Int64
	go func() {
		defer close(finished)
		buf := make([]int, 256)
		for {
			n := r.DrainTo(buf)
			consumed.Add(int64(n))
			select {
			case <-done:
				// Final drain after producers signalled completion.
				for {
					n := r.DrainTo(buf)
					consumed.Add(int64(n))
					if n == 0 {
						return
					}
				}
			default:
			}
		}
	}()

	wg.Wait()
	close(done)

	// Wait for the single consumer goroutine to drain the tail of the
	// buffer; it exits on its own once its final drain finds it empty.
	<-finished

	if got, want := produced.Load(), int64(producers*perProducer); got != want {
		t.Fatalf("produced = %d, want %d", got, want)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() after drain = %d, want 0", r.Count())
	}
}
