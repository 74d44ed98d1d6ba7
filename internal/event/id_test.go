package event

import (
	"sync"
	"testing"
)

func TestIDGenerator_Origin(t *testing.T) {
	for _, origin := range []Origin{OriginReader, OriginDispatcher, OriginOther} {
		g := NewIDGenerator(origin)
		for i := 0; i < 10; i++ {
			id := g.Next()
			if OriginOf(id) != origin {
				t.Errorf("OriginOf(%#x) = %v, want %v", uint32(id), OriginOf(id), origin)
			}
			if uint32(id)&counterMask == 0 {
				t.Errorf("id %#x has a zero counter", uint32(id))
			}
		}
	}
}

func TestIDGenerator_Monotonic(t *testing.T) {
	g := NewIDGenerator(OriginDispatcher)
	prev := uint32(g.Next()) & counterMask
	for i := 0; i < 1000; i++ {
		cur := uint32(g.Next()) & counterMask
		if cur <= prev {
			t.Fatalf("counter went from %d to %d", prev, cur)
		}
		prev = cur
	}
}

func TestIDGenerator_WrapSkipsZero(t *testing.T) {
	g := NewIDGenerator(OriginReader)
	g.next.Store(counterMask - 1)

	if got := uint32(g.Next()) & counterMask; got != counterMask {
		t.Fatalf("counter = %#x, want %#x", got, counterMask)
	}
	if got := uint32(g.Next()) & counterMask; got != 1 {
		t.Errorf("counter after wrap = %d, want 1", got)
	}
}

func TestIDGenerator_Concurrent(t *testing.T) {
	g := NewIDGenerator(OriginOther)
	const workers, perWorker = 8, 500

	var mu sync.Mutex
	seen := make(map[ID]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]ID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				if seen[id] {
					t.Errorf("duplicate id %#x", uint32(id))
				}
				seen[id] = true
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
}

func TestOriginResolver(t *testing.T) {
	id := NewIDGenerator(OriginReader).Next()
	e := newTestKey(id)

	always := OriginResolverFunc(func(ID) Origin { return OriginOther })
	if !e.IsSynthesizedBy(always) {
		t.Error("custom resolver reporting OriginOther should make the entry synthesized")
	}
	if e.IsSynthesizedBy(DefaultOriginResolver) {
		t.Error("reader id should not be synthesized with the default resolver")
	}
}

func TestOrigin_String(t *testing.T) {
	tests := map[Origin]string{
		OriginReader:     "reader",
		OriginDispatcher: "dispatcher",
		OriginOther:      "other",
	}
	for o, want := range tests {
		if o.String() != want {
			t.Errorf("String() = %q, want %q", o.String(), want)
		}
	}
}
