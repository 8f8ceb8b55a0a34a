package core

import (
	"fmt"
	"sync"
)

// BufPool is the sized pool of §4.3: a size-class freelist allocator for
// opaque byte buffers. Requests are rounded up to a power-of-two size
// class, minimum MinPoolBlockSize. Grounded on
// original_source/src/bufPool.h's bufPoolChunk, redesigned per spec §4.3
// to round to power-of-two classes (the original rounds to multiples of
// 1KiB) and to return a Buf owning-handle instead of a raw pointer.
//
// Acquire and Release take an internal mutex around the freelists and the
// debug in-use tracking, so the pool may be shared between goroutines; a
// single Buf must still have one owner at a time.
type BufPool struct {
	mu      sync.Mutex // guards classes and inUse
	classes map[int][][]byte

	debug  bool
	inUse  map[*byte]int // block identity -> size class, for double-free/foreign-release detection
}

// NewBufPool returns an empty sized pool. debug enables in-use tracking
// and assertions on double-free / release of foreign memory, matching the
// original's BUFPOOL_TRACK_MEMORY compile-time flag.
func NewBufPool(debug bool) *BufPool {
	p := &BufPool{classes: make(map[int][][]byte)}
	p.debug = debug
	if debug {
		p.inUse = make(map[*byte]int)
	}
	return p
}

func sizeClass(requested int) int {
	class := MinPoolBlockSize
	for class < requested {
		class <<= 1
	}
	return class
}

// Buf is the owning handle over a pooled byte buffer: move-only in spirit
// (Go can't enforce that statically), released to its pool exactly once.
// The zero Buf is valid and represents "no buffer".
type Buf struct {
	pool  *BufPool
	class int
	b     []byte
	freed bool
}

// Acquire returns a zeroed buffer of at least size bytes, owned by the
// returned Buf.
func (p *BufPool) Acquire(size int) Buf {
	class := sizeClass(size)

	p.mu.Lock()
	var block []byte
	if q := p.classes[class]; len(q) > 0 {
		block = q[len(q)-1]
		p.classes[class] = q[:len(q)-1]
	}
	p.mu.Unlock()

	if block == nil {
		block = make([]byte, class)
	} else {
		clear(block)
	}

	buf := Buf{pool: p, class: class, b: block[:size]}
	if p.debug {
		p.mu.Lock()
		p.inUse[&block[0]] = class
		p.mu.Unlock()
	}
	return buf
}

// Get returns the raw byte slice without transferring ownership.
func (b *Buf) Get() []byte {
	return b.b
}

// Len returns the current exposed length (may be less than the backing
// size class, e.g. after Buf.Resize or mutate-in-place shrinking).
func (b *Buf) Len() int {
	return len(b.b)
}

// Resize re-slices the exposed view to n bytes, which must not exceed the
// buffer's size class. Used by the response-encoding path (§4.6) to shrink
// a request frame down to its rewritten response length.
func (b *Buf) Resize(n int) {
	if n > cap(b.b) {
		panic("core: Buf.Resize beyond backing capacity")
	}
	b.b = b.b[:n]
}

// Release returns the buffer to the pool. Safe to call on an already-freed
// or zero Buf (no-op), matching the idempotent-disconnect style used
// elsewhere in this package.
func (b *Buf) Release() {
	if b.pool == nil || b.freed || len(b.b) == 0 && cap(b.b) == 0 {
		return
	}
	p := b.pool
	block := b.b[:cap(b.b)]

	if p.debug {
		p.mu.Lock()
		class, ok := p.inUse[&block[0]]
		if !ok {
			p.mu.Unlock()
			panic(fmt.Errorf("%w", ErrDoubleRelease))
		}
		delete(p.inUse, &block[0])
		p.mu.Unlock()
		_ = class
	}

	p.mu.Lock()
	p.classes[b.class] = append(p.classes[b.class], block)
	p.mu.Unlock()

	b.freed = true
	b.b = nil
	b.pool = nil
}

// Take relinquishes ownership to the caller, returning the raw slice and
// suppressing Buf's own release. Used when handing a buffer to a
// fire-and-forget writer that will release it on write completion (§4.3).
func (b *Buf) Take() []byte {
	out := b.b
	b.freed = true
	b.b = nil
	b.pool = nil
	return out
}

// Reset releases the current block (if any) and takes ownership of a new
// one, matching the §4.3 owning-handle contract.
func (b *Buf) Reset(new Buf) {
	b.Release()
	*b = new
}

// InUseCount reports the number of blocks the debug pool believes are
// currently checked out. Zero for non-debug pools.
func (p *BufPool) InUseCount() int {
	if !p.debug {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

// ReleaseRaw returns raw bytes previously obtained via Buf.Take back to the
// pool, given the size class they were allocated at. Used by a Transport's
// send-completion callback (§6) which only has the raw []byte, not a Buf.
func (p *BufPool) ReleaseRaw(raw []byte, originalSize int) {
	b := Buf{pool: p, class: sizeClass(originalSize), b: raw}
	b.Release()
}

// TypedPool is the §4.3 "typed pool" half: a freelist of fixed-layout
// values of type T, constructed in place on Acquire and reset to the zero
// value on Release. Grounded on original_source/src/bufPool.h's
// bufPoolT<T>. The client does not draw RPCCall descriptors from it:
// onRPCCallReceived allocates a fresh RPCCall per request.
type TypedPool[T any] struct {
	mu   sync.Mutex
	free []*T
}

// NewTypedPool returns an empty typed pool.
func NewTypedPool[T any]() *TypedPool[T] {
	return &TypedPool[T]{}
}

// Acquire returns a pointer to a zeroed T, reused from the freelist if
// available.
func (p *TypedPool[T]) Acquire() *T {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		t := p.free[n-1]
		p.free = p.free[:n-1]
		var zero T
		*t = zero
		return t
	}
	return new(T)
}

// Release returns t to the freelist.
func (p *TypedPool[T]) Release(t *T) {
	if t == nil {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, t)
	p.mu.Unlock()
}
