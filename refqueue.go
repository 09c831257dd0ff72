// refqueue.go: the ref side-table a ring uses to pass NoCopy string
// arguments from producer to consumer without copying them into the
// mmap'd byte ring (record.go, SPEC_FULL.md §4.3's "Ref side-table").
//
// A string's backing array is an ordinary Go pointer; it cannot be
// embedded inside off-heap mmap'd memory without becoming invisible to
// the garbage collector. refQueue instead holds those references in a
// plain Go slice the GC does scan, indexed implicitly by FIFO order
// rather than by an explicit sequence number: writeRecord pushes exactly
// one entry (possibly nil) per string-bearing record, in the same order
// those records are published to the byte ring, and readRecord pops
// exactly one entry per string-bearing record it decodes. The two rings
// share the same single-producer/single-consumer discipline, so FIFO
// order alone is sufficient to keep them in lockstep.
//
// Structurally this is commandQueue's cached-index Lamport ring
// (hayabusa-cloud-lfq/spsc.go), holding []string payloads instead of
// command values.
package xtrlog

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

type refQueue struct {
	_          pad
	head       atomix.Uint64
	_          pad
	cachedTail uint64
	_          pad
	tail       atomix.Uint64
	_          pad
	cachedHead uint64
	_          pad
	buffer     [][]string
	mask       uint64
}

func newRefQueue(capacity int) *refQueue {
	n := uint64(roundToPow2(capacity))
	if n < 2 {
		n = 2
	}
	return &refQueue{
		buffer: make([][]string, n),
		mask:   n - 1,
	}
}

// push posts vals (possibly nil/empty), spin-waiting if momentarily full.
// Back-pressure here is not expected in practice: capacity is sized to
// the owning ring's worst-case in-flight record count.
func (q *refQueue) push(vals []string) {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead > q.mask {
		sw := spin.Wait{}
		for {
			q.cachedHead = q.head.LoadAcquire()
			if tail-q.cachedHead <= q.mask {
				break
			}
			sw.Once()
		}
	}
	q.buffer[tail&q.mask] = vals
	q.tail.StoreRelease(tail + 1)
}

// pop removes and returns the oldest pushed value (consumer only). ok is
// false if the queue is currently empty.
func (q *refQueue) pop() ([]string, bool) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return nil, false
		}
	}
	v := q.buffer[head&q.mask]
	q.buffer[head&q.mask] = nil
	q.head.StoreRelease(head + 1)
	return v, true
}
