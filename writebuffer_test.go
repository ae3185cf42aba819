package mneme

import (
	"sync"
	"testing"
)

func TestWriteBufferEmptyDrain(t *testing.T) {
	var w writeBuffer[int]
	if !w.empty() {
		t.Fatalf("empty() on fresh buffer = false, want true")
	}
	if got := w.drain(); got != nil {
		t.Fatalf("drain() on fresh buffer = %v, want nil", got)
	}
}

func TestWriteBufferPreservesInsertionOrder(t *testing.T) {
	var w writeBuffer[int]
	n1 := newNode[int]("a", 1, 1, 0)
	n2 := newNode[int]("b", 2, 2, 0)
	n3 := newNode[int]("c", 3, 3, 0)

	w.push(n1, opAdd)
	w.push(n2, opAdd)
	w.push(n3, opRemove)

	events := w.drain()
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].n != n1 || events[1].n != n2 || events[2].n != n3 {
		t.Fatalf("drain order = [%s %s %s], want [a b c]",
			events[0].n.key, events[1].n.key, events[2].n.key)
	}
	if events[2].op != opRemove {
		t.Fatalf("events[2].op = %v, want opRemove", events[2].op)
	}

	if !w.empty() {
		t.Fatalf("empty() after drain = false, want true")
	}
}

func TestWriteBufferConcurrentPush(t *testing.T) {
	var w writeBuffer[int]
	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				w.push(newNode[int]("k", uint64(p), i, 0), opAdd)
			}
		}(p)
	}
	wg.Wait()

	events := w.drain()
	if len(events) != producers*perProducer {
		t.Fatalf("len(events) = %d, want %d", len(events), producers*perProducer)
	}
}
