package storage

import (
	"os"
	"sync"
	"sync/atomic"
)

// Async is the asynchronous, completion-queue-style backend (spec.md
// §4.7): a pool of pre-registered fixed-capacity buffers, each with a
// stable index, submitted to a small worker pool that plays the role of
// the kernel's completion queue. AllocateBuffer presents a synchronous
// interface to the consumer even though submission and completion happen
// on other goroutines, matching spec.md §9's "localizes all asynchrony
// inside the back-end; the consumer loop remains a plain blocking loop".
//
// There is no io_uring binding in reach of this module, so the
// registered-buffer/completion-queue shape is approximated with Go's own
// concurrency primitives: the free-list is a buffered channel (popping
// when empty blocks exactly the way spec.md describes "wait for one
// completion and retry"), and the worker pool stands in for kernel-side
// I/O and its completion handling.
type Async struct {
	path string
	mu   sync.Mutex // guards f across Reopen
	f    *os.File

	bufSize    int
	batchSize  int
	nextOffset atomic.Int64

	free       chan *asyncBuffer
	submitCh   chan *asyncBuffer
	allBuffers []*asyncBuffer

	pending   sync.WaitGroup
	batchMu   sync.Mutex
	batch     []*asyncBuffer
	closeOnce sync.Once
	stopCh    chan struct{}
	workersWG sync.WaitGroup

	ErrorCallback func(operation string, err error)
}

type asyncBuffer struct {
	data     []byte
	index    int
	offset   int64
	writeOff int
	used     int
}

const defaultAsyncWorkers = 4

// NewAsync opens path in append mode and starts numBuffers pre-registered
// buffers of bufSize bytes each, serviced by a small worker pool.
// batchSize is the submission-batch threshold (spec.md §4.7: "the batch
// counter has reached a configured size").
func NewAsync(path string, bufSize, numBuffers, batchSize int) (*Async, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	a := &Async{
		path:      path,
		f:         f,
		bufSize:   bufSize,
		batchSize: batchSize,
		free:      make(chan *asyncBuffer, numBuffers),
		submitCh:  make(chan *asyncBuffer, numBuffers),
		stopCh:    make(chan struct{}),
	}
	for i := 0; i < numBuffers; i++ {
		b := &asyncBuffer{data: make([]byte, bufSize), index: i}
		a.free <- b
		a.allBuffers = append(a.allBuffers, b)
	}
	for i := 0; i < defaultAsyncWorkers; i++ {
		a.workersWG.Add(1)
		go a.worker()
	}
	return a, nil
}

// AllocateBuffer pops a buffer from the free-list, blocking until a
// submitted buffer completes if the pool is exhausted.
func (a *Async) AllocateBuffer() ([]byte, error) {
	buf := <-a.free
	return buf.data[:a.bufSize], nil
}

// SubmitBuffer records the buffer's offset, marks one submission pending,
// and either dispatches the accumulated batch immediately (batch full) or
// defers dispatch to the next Flush/batch-full event.
func (a *Async) SubmitBuffer(data []byte, used int) error {
	buf := a.bufferFor(data)
	buf.offset = a.nextOffset.Add(int64(used)) - int64(used)
	buf.writeOff = 0
	buf.used = used

	a.pending.Add(1)

	a.batchMu.Lock()
	a.batch = append(a.batch, buf)
	dispatch := len(a.batch) >= a.batchSize
	var toDispatch []*asyncBuffer
	if dispatch {
		toDispatch = a.batch
		a.batch = nil
	}
	a.batchMu.Unlock()

	for _, b := range toDispatch {
		a.submitCh <- b
	}
	return nil
}

// bufferFor recovers the asyncBuffer wrapper for a slice previously
// handed out by AllocateBuffer, by matching the backing array's data
// pointer against the free-list's registered buffers. Buffers never
// reslice beyond their original capacity, so a direct pointer compare on
// the first byte is sufficient.
func (a *Async) bufferFor(data []byte) *asyncBuffer {
	// The buffer pool is small and fixed; linear scan avoids needing a
	// parallel map kept in sync with the channel-based free-list.
	for _, b := range a.allBuffers {
		if len(b.data) > 0 && len(data) > 0 && &b.data[0] == &data[0] {
			return b
		}
	}
	// Should not happen in practice (AllocateBuffer always hands out a
	// pool buffer); fabricate a throwaway wrapper rather than panic.
	return &asyncBuffer{data: data}
}

// Flush dispatches whatever is batched, unconditionally.
func (a *Async) Flush() error {
	a.batchMu.Lock()
	toDispatch := a.batch
	a.batch = nil
	a.batchMu.Unlock()
	for _, b := range toDispatch {
		a.submitCh <- b
	}
	return nil
}

// Sync drains all pending completions, then fsyncs.
func (a *Async) Sync() error {
	if err := a.Flush(); err != nil {
		return err
	}
	a.pending.Wait()
	a.mu.Lock()
	f := a.f
	a.mu.Unlock()
	return f.Sync()
}

// Reopen performs the drain-then-close barrier: wait for every
// outstanding submission against the old descriptor to complete, open the
// new path, swap it in, then close the old descriptor. Subsequent
// SubmitBuffer calls target the new file.
func (a *Async) Reopen() error {
	if a.path == "" {
		return ErrNoPath
	}
	if err := a.Flush(); err != nil {
		return err
	}
	a.pending.Wait()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.f
	a.f = f
	a.nextOffset.Store(0)
	a.mu.Unlock()

	return old.Close()
}

// worker plays the role of the kernel servicing the completion queue: it
// writes a submitted buffer at its recorded offset and reports the result.
func (a *Async) worker() {
	defer a.workersWG.Done()
	for {
		select {
		case buf, ok := <-a.submitCh:
			if !ok {
				return
			}
			a.complete(buf)
		case <-a.stopCh:
			return
		}
	}
}

// complete processes one buffer's write, retrying short writes at the
// updated offset and reporting hard errors via ErrorCallback without
// terminating the process (spec.md §7).
func (a *Async) complete(buf *asyncBuffer) {
	a.mu.Lock()
	f := a.f
	a.mu.Unlock()

	remaining := buf.data[buf.writeOff:a.usedLen(buf)]
	for len(remaining) > 0 {
		n, err := f.WriteAt(remaining, buf.offset+int64(buf.writeOff))
		if n > 0 {
			buf.writeOff += n
			remaining = remaining[n:]
		}
		if err != nil {
			if a.ErrorCallback != nil {
				a.ErrorCallback("write", err)
			}
			break
		}
	}

	a.pending.Done()
	buf.writeOff = 0
	a.free <- buf
}

func (a *Async) usedLen(buf *asyncBuffer) int {
	return buf.used
}

// Close stops the worker pool and closes the underlying file. Safe to
// call once; subsequent calls are no-ops.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.Sync()
		close(a.stopCh)
		a.workersWG.Wait()
		a.mu.Lock()
		cerr := a.f.Close()
		a.mu.Unlock()
		if err == nil {
			err = cerr
		}
	})
	return err
}
