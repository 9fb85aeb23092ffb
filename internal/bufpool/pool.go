// Package bufpool provides reusable, size-classed byte buffers for the
// datagram hot path: one allocation class for header-only frames (Ping,
// Ack), one for typical MTU-sized video/audio chunks, and one for
// oversized bursts, instead of allocating a fresh slice per datagram.
package bufpool

import "sync"

// sizeClasses are tailored to UDP datagram traffic: 64 covers any
// header-only or small Value/PeriodicValue/Ack frame, 1500 covers a
// typical Ethernet-MTU video/audio chunk, 65536 covers the largest
// datagram the kernel will hand back from a single recvfrom.
var sizeClasses = []int{64, 1500, 65536}

type classPool struct {
	size int
	pool *sync.Pool
}

// Pool hands out byte slices from predefined size classes.
type Pool struct {
	pools []classPool
}

var defaultPool = New()

// Get acquires a buffer from the package-level default pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put releases a buffer back to the package-level default pool.
func Put(buf []byte) { defaultPool.Put(buf) }

// New creates a buffer pool with the predefined size classes.
func New() *Pool {
	pools := make([]classPool, len(sizeClasses))
	for i, classSize := range sizeClasses {
		size := classSize
		pools[i] = classPool{
			size: size,
			pool: &sync.Pool{
				New: func() any { return make([]byte, size) },
			},
		}
	}
	return &Pool{pools: pools}
}

// Get returns a byte slice of exactly the requested length, backed by the
// smallest size class that can hold it. Requests larger than the largest
// class allocate a fresh, unpooled slice.
func (p *Pool) Get(size int) []byte {
	if p == nil || size <= 0 {
		return nil
	}
	for i := range p.pools {
		class := &p.pools[i]
		if size <= class.size {
			buf := class.pool.Get().([]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the pool if its capacity exactly matches a size
// class. Buffers of any other capacity are simply discarded.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	capBuf := cap(buf)
	for i := range p.pools {
		class := &p.pools[i]
		if capBuf == class.size {
			full := buf[:class.size]
			clear(full)
			class.pool.Put(full)
			return
		}
	}
}
