// Package pool provides a size-classed byte-buffer allocator for parser
// scratch space. Buffers round up to power-of-two size classes and are
// recycled through per-class free lists.
//
// A BufferPool is an optimization layer, not a correctness boundary:
// recoverable misuse (double release, releasing a foreign buffer) logs a
// warning and continues. A single instance shared across goroutines needs
// external synchronization; the counters and free lists are unprotected.
package pool

import (
	"log/slog"
	"math/bits"
)

// Default limits.
const (
	// MinBufferSize is the smallest size class handed out.
	MinBufferSize = 64
	// DefaultMaxPerClass caps how many unused buffers one class retains.
	DefaultMaxPerClass = 32
	// DefaultMaxTotalMemory caps pooled (unused) bytes across all classes.
	DefaultMaxTotalMemory = 64 << 20 // 64 MiB
)

// Stats is an immutable snapshot of pool accounting. Mutating a returned
// Stats value never affects the pool.
type Stats struct {
	PooledBuffers int
	InUseBuffers  int
	TotalMemory   int64
	PooledMemory  int64
}

// sizeClass tracks one power-of-two bucket.
type sizeClass struct {
	free  [][]byte
	inUse int
}

// BufferPool is a size-classed buffer allocator.
type BufferPool struct {
	classes map[int]*sizeClass
	// inFlight maps the identity of handed-out buffers to their class
	// size, so Release can tell a pool buffer from a foreign one.
	inFlight map[*byte]int

	maxPerClass    int
	maxTotalMemory int64

	totalMemory  int64
	pooledMemory int64

	logger *slog.Logger
}

// Option configures a BufferPool.
type Option func(*BufferPool)

// WithMaxPerClass caps the pooled-but-unused buffers per size class.
func WithMaxPerClass(n int) Option {
	return func(p *BufferPool) { p.maxPerClass = n }
}

// WithMaxTotalMemory caps pooled bytes across all classes.
func WithMaxTotalMemory(n int64) Option {
	return func(p *BufferPool) { p.maxTotalMemory = n }
}

// WithLogger sets the logger used for misuse warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *BufferPool) { p.logger = logger }
}

// New creates a buffer pool with the given options.
func New(opts ...Option) *BufferPool {
	p := &BufferPool{
		classes:        make(map[int]*sizeClass),
		inFlight:       make(map[*byte]int),
		maxPerClass:    DefaultMaxPerClass,
		maxTotalMemory: DefaultMaxTotalMemory,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewDefault creates a pool with default limits. The process-wide default
// instance is constructed explicitly by the bootstrapping layer, never
// implicitly ambient.
func NewDefault() *BufferPool {
	return New()
}

// Acquire returns a buffer whose length is the next power of two at or
// above max(n, 1), never below the minimum class. Degenerate sizes
// (negative) degrade to the minimum class rather than failing.
func (p *BufferPool) Acquire(n int) []byte {
	size := classFor(n)
	class := p.class(size)

	var buf []byte
	if len(class.free) > 0 {
		buf = class.free[len(class.free)-1]
		class.free = class.free[:len(class.free)-1]
		p.pooledMemory -= int64(size)
	} else {
		buf = make([]byte, size)
		p.totalMemory += int64(size)
	}

	class.inUse++
	p.inFlight[&buf[0]] = size
	return buf
}

// Release returns a buffer to its size-class free list. Releasing a
// buffer the pool does not know about, or one already released, logs a
// warning and is a no-op.
func (p *BufferPool) Release(buf []byte) {
	if len(buf) == 0 {
		p.logger.Warn("buffer pool: release of empty buffer ignored")
		return
	}
	size, ok := p.inFlight[&buf[0]]
	if !ok || size != len(buf) {
		p.logger.Warn("buffer pool: release of unknown buffer ignored",
			slog.Int("len", len(buf)))
		return
	}
	delete(p.inFlight, &buf[0])

	class := p.class(size)
	class.inUse--

	if len(class.free) >= p.maxPerClass ||
		p.pooledMemory+int64(size) > p.maxTotalMemory {
		// Over budget: drop the buffer instead of retaining it.
		p.totalMemory -= int64(size)
		return
	}
	class.free = append(class.free, buf)
	p.pooledMemory += int64(size)
}

// Prune halves each class's pooled-but-unused buffer count to reclaim
// memory.
func (p *BufferPool) Prune() {
	for size, class := range p.classes {
		keep := len(class.free) / 2
		dropped := len(class.free) - keep
		class.free = class.free[:keep]
		p.pooledMemory -= int64(dropped) * int64(size)
		p.totalMemory -= int64(dropped) * int64(size)
	}
}

// Clear drops all pooled buffers and forgets in-flight ones.
func (p *BufferPool) Clear() {
	p.classes = make(map[int]*sizeClass)
	p.inFlight = make(map[*byte]int)
	p.totalMemory = 0
	p.pooledMemory = 0
}

// Stats returns a snapshot of the pool's accounting.
func (p *BufferPool) Stats() Stats {
	s := Stats{
		TotalMemory:  p.totalMemory,
		PooledMemory: p.pooledMemory,
	}
	for _, class := range p.classes {
		s.PooledBuffers += len(class.free)
		s.InUseBuffers += class.inUse
	}
	return s
}

func (p *BufferPool) class(size int) *sizeClass {
	class, ok := p.classes[size]
	if !ok {
		class = &sizeClass{}
		p.classes[size] = class
	}
	return class
}

// classFor rounds n up to the pool's power-of-two size class.
func classFor(n int) int {
	if n < MinBufferSize {
		return MinBufferSize
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len(uint(n))
}
