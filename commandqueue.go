// commandqueue.go: the control-path queue a sink uses to post lifecycle
// and maintenance items (register, close, sync, set-name, ...) to the
// consumer (spec.md §4.4, §4.9, §5's "serialized by a mutex inside the
// logger façade").
//
// Unlike the hot record path in ring.go, these items are ordinary Go
// values — structs that may hold pointers, strings, channels — so they
// can live on a queue the garbage collector actually scans. This is
// adapted directly from hayabusa-cloud-lfq's SPSC[T]: the same Lamport
// ring with cached producer/consumer indices, generalized from a single
// generic queue type into the one concrete command channel this package
// needs.
package xtrlog

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

type commandKind int

const (
	cmdRegister commandKind = iota
	cmdClose
	cmdSync
	cmdSetName
	cmdSetLevel
	cmdReopen
	cmdStatus
)

// command is one item posted on a sink's or the logger's control queue.
type command struct {
	kind  commandKind
	sink  *Sink
	name  string
	level Level
	done  chan struct{} // closed by the consumer when processing completes

	result chan error // optional result channel (sync, reopen)

	// match and statusResult are used by cmdStatus only: match selects
	// which registered sinks to report on (nil matches every sink), and
	// the snapshot is delivered on statusResult before done is closed.
	match        func(name string) bool
	statusResult chan []SinkStatus
}

// commandQueue is a bounded SPSC queue of commands, mirroring spsc.go's
// cached-index Lamport ring.
type commandQueue struct {
	_          pad
	head       atomix.Uint64 // consumer reads from here
	_          pad
	cachedTail uint64
	_          pad
	tail       atomix.Uint64 // producer writes here
	_          pad
	cachedHead uint64
	_          pad
	buffer     []command
	mask       uint64
}

func newCommandQueue(capacity int) *commandQueue {
	n := uint64(roundToPow2(capacity))
	if n < 2 {
		n = 2
	}
	return &commandQueue{
		buffer: make([]command, n),
		mask:   n - 1,
	}
}

// enqueue posts a command, blocking with a spin-wait if the queue is
// momentarily full (control traffic is low-rate; unlike the hot record
// path there is no non-blocking variant here).
func (q *commandQueue) enqueue(c command) {
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
	q.buffer[tail&q.mask] = c
	q.tail.StoreRelease(tail + 1)
}

// dequeue removes and returns a command (consumer only). ok is false if
// the queue is currently empty.
func (q *commandQueue) dequeue() (command, bool) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return command{}, false
		}
	}
	c := q.buffer[head&q.mask]
	q.buffer[head&q.mask] = command{}
	q.head.StoreRelease(head + 1)
	return c, true
}
