// ring.go: the per-sink mirrored SPSC ring buffer (spec.md §4.1-§4.2).
//
// Grounded on hayabusa-cloud-lfq/spsc.go's Lamport ring buffer (cached
// index optimization: the producer shadows the consumer's index and vice
// versa, so the hot path touches exactly one shared cache line) and on
// code.hybscloud.com/atomix/code.hybscloud.com/spin for the atomics and
// spin-wait primitive, generalized from a typed []T slot array to a raw
// byte buffer backed by internal/mmap's double-mapped region so that a
// record straddling the wrap point is exposed as one contiguous span.

package xtrlog

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/xtrlog/internal/mmap"
)

// WriteTag selects how write_span behaves when there is not enough space.
type WriteTag int

const (
	// Blocking spins with a CPU-pause hint until enough space is available.
	// This is the default.
	Blocking WriteTag = iota
	// NonBlocking attempts once; on insufficient space it increments the
	// dropped counter and returns an empty span.
	NonBlocking
	// Speculative skips the acquire load entirely and trusts the last
	// cached read_plus_capacity value. Intended for small writes the
	// caller knows will fit; a following non-speculative call validates.
	Speculative
)

// Align is the alignment unit records are rounded up to: the size of a
// machine word / formatter ID on a 64-bit target.
const Align = 8

// ring is a single-producer/single-consumer byte queue built on a mirrored
// virtual-memory region.
type ring struct {
	region *mmap.Region
	buf    []byte // len(buf) == 2*capacity
	mask   uint64
	cap    uint64

	_ [64]byte // cache-line pad, mirrors teacher's `pad` fields

	written atomix.Uint64 // producer-owned, consumer-read
	_       [64]byte

	readPlusCapacity atomix.Uint64 // consumer-owned, producer-read
	_                [64]byte

	// Producer-local shadow of readPlusCapacity; consumer-local shadow of
	// written. Never touched from the other side.
	cachedReadPlusCapacity uint64
	cachedWritten          uint64

	// dropped is a plain stats counter, not part of the SPSC handshake, so
	// it uses the standard library the way agilira-lethe's droppedCount does.
	dropped atomic.Uint64

	// refs is the ref side-table for NoCopy string arguments (record.go,
	// refqueue.go). Sized generously against the smallest possible
	// record (one aligned word), an upper bound on in-flight records.
	refs *refQueue
}

// newRing creates a ring buffer of the given capacity (power of two,
// multiple of the page size).
func newRing(capacity int) (*ring, error) {
	region, err := mmap.New(capacity)
	if err != nil {
		return nil, err
	}
	c := uint64(capacity)
	r := &ring{
		region: region,
		buf:    region.Bytes(),
		mask:   c - 1,
		cap:    c,
		refs:   newRefQueue(capacity / Align),
	}
	r.readPlusCapacity.StoreRelaxed(c)
	r.cachedReadPlusCapacity = c
	return r, nil
}

func (r *ring) capacity() int { return int(r.cap) }

// used reports the number of bytes currently buffered (written but not
// yet read), for status reporting (spec.md §4.8's status handler).
func (r *ring) used() int {
	return int(r.written.LoadRelaxed() - r.consumerReadPos())
}

// writeSpan returns a contiguous writable span of at least minSize bytes,
// or an empty span under the NonBlocking tag when space is insufficient.
func (r *ring) writeSpan(minSize int, tag WriteTag) []byte {
	written := r.written.LoadRelaxed() // producer-owned; relaxed is fine, only this goroutine writes it
	need := uint64(minSize)

	avail := r.cachedReadPlusCapacity - written
	if avail < need {
		switch tag {
		case Speculative:
			// Trust the cached value; caller accepts the risk.
		case NonBlocking:
			r.cachedReadPlusCapacity = r.readPlusCapacity.LoadAcquire()
			avail = r.cachedReadPlusCapacity - written
			if avail < need {
				r.dropped.Add(1)
				return nil
			}
		default: // Blocking
			sw := spin.Wait{}
			for {
				r.cachedReadPlusCapacity = r.readPlusCapacity.LoadAcquire()
				avail = r.cachedReadPlusCapacity - written
				if avail >= need {
					break
				}
				sw.Once()
			}
		}
	}

	offset := written & r.mask
	return r.buf[offset : offset+avail]
}

// reduceWritable publishes n bytes, releasing them to the consumer.
func (r *ring) reduceWritable(n int) {
	written := r.written.LoadRelaxed()
	offset := written & r.mask

	// On platforms without true mirroring, any bytes landed past the end
	// of the low mapping must be copied down so the consumer's read_span
	// (which only ever looks at [0, capacity)) sees them. On a true
	// mirrored region this is a no-op fixup of already-aliased bytes.
	if !r.region.Mirrored() {
		end := offset + uint64(n)
		if end > r.cap {
			overflow := end - r.cap
			copy(r.buf[0:overflow], r.buf[r.cap:r.cap+overflow])
		}
	}

	r.written.StoreRelease(written + uint64(n))
}

// readSpan returns a contiguous readable span, capped so it never crosses
// the end of the low mapping. Returns nil when nothing is available.
func (r *ring) readSpan() []byte {
	readPos := r.consumerReadPos()

	avail := r.cachedWritten - readPos
	if avail == 0 {
		r.cachedWritten = r.written.LoadAcquire()
		avail = r.cachedWritten - readPos
		if avail == 0 {
			return nil
		}
	}

	offset := readPos & r.mask
	if offset+avail > r.cap {
		avail = r.cap - offset
	}
	return r.buf[offset : offset+avail]
}

// consumerReadPos derives the read cursor from read_plus_capacity, which is
// the only counter the consumer actually owns (spec.md §3: "written" is
// producer-owned, "read_plus_capacity" is consumer-owned).
func (r *ring) consumerReadPos() uint64 {
	return r.readPlusCapacity.LoadRelaxed() - r.cap
}

// reduceReadable releases n bytes back to the producer.
func (r *ring) reduceReadable(n int) {
	cur := r.readPlusCapacity.LoadRelaxed()
	r.readPlusCapacity.StoreRelease(cur + uint64(n))
}

// takeDroppedCount atomically reads and resets the dropped-write counter.
func (r *ring) takeDroppedCount() uint64 {
	return r.dropped.Swap(0)
}

// droppedCount reads the dropped-write counter without resetting it.
func (r *ring) droppedCount() uint64 {
	return r.dropped.Load()
}

func (r *ring) close() error {
	return r.region.Close()
}
