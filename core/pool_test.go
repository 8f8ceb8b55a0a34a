package core

import "testing"

func TestSizeClassRoundsUpToPowerOfTwoMinimum(t *testing.T) {
	cases := map[int]int{
		1:    MinPoolBlockSize,
		1024: 1024,
		1025: 2048,
		4096: 4096,
		4097: 8192,
	}
	for in, want := range cases {
		if got := sizeClass(in); got != want {
			t.Fatalf("sizeClass(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestBufPoolAcquireZeroedAndSized(t *testing.T) {
	p := NewBufPool(false)
	b := p.Acquire(100)
	if b.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", b.Len())
	}
	for _, c := range b.Get() {
		if c != 0 {
			t.Fatalf("freshly acquired buffer not zeroed")
		}
	}
}

func TestBufPoolReusesReleasedBlockAndZeroesIt(t *testing.T) {
	p := NewBufPool(false)
	b := p.Acquire(10)
	copy(b.Get(), []byte("dirtydata!"))
	b.Release()

	b2 := p.Acquire(10)
	for _, c := range b2.Get() {
		if c != 0 {
			t.Fatalf("reused buffer must be zeroed on acquire, got %v", b2.Get())
		}
	}
}

func TestBufReleaseIsIdempotent(t *testing.T) {
	p := NewBufPool(false)
	b := p.Acquire(10)
	b.Release()
	b.Release() // must not panic
}

func TestBufPoolDebugDetectsDoubleRelease(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on double release under debug tracking")
		}
	}()

	p := NewBufPool(true)
	b := p.Acquire(10)
	raw := b.Take()
	p.ReleaseRaw(raw, 10)
	p.ReleaseRaw(raw, 10) // second release of the same block: must panic
}

func TestBufPoolInUseCountTracksDebugOnly(t *testing.T) {
	p := NewBufPool(true)
	b1 := p.Acquire(10)
	_ = p.Acquire(10)
	if p.InUseCount() != 2 {
		t.Fatalf("InUseCount = %d, want 2", p.InUseCount())
	}
	b1.Release()
	if p.InUseCount() != 1 {
		t.Fatalf("InUseCount after one release = %d, want 1", p.InUseCount())
	}

	plain := NewBufPool(false)
	if plain.InUseCount() != 0 {
		t.Fatalf("non-debug pool must always report 0")
	}
}

func TestBufResizeWithinCapacity(t *testing.T) {
	p := NewBufPool(false)
	b := p.Acquire(10)
	b.Resize(MinPoolBlockSize)
	if b.Len() != MinPoolBlockSize {
		t.Fatalf("Len() after Resize = %d, want %d", b.Len(), MinPoolBlockSize)
	}
}

func TestBufResizeBeyondCapacityPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic resizing beyond backing capacity")
		}
	}()
	p := NewBufPool(false)
	b := p.Acquire(10)
	b.Resize(MinPoolBlockSize + 1)
}

func TestTypedPoolResetsToZeroValue(t *testing.T) {
	type node struct {
		Method string
		Seq    int
	}
	tp := NewTypedPool[node]()

	n := tp.Acquire()
	n.Method, n.Seq = "echo", 7
	tp.Release(n)

	n2 := tp.Acquire()
	if n2.Method != "" || n2.Seq != 0 {
		t.Fatalf("reused typed pool entry not reset, got %+v", n2)
	}
}
