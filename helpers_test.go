package xtrlog

import (
	"errors"
	"testing"
)

var errAllocateBuffer = errors.New("recordingBackend: AllocateBuffer failed")

// recordingBackend is a minimal in-memory storage.Backend stand-in for
// tests that only need to inspect rendered bytes, not touch a real file.
type recordingBackend struct {
	bufSize      int
	written      []byte
	flushes      int
	syncs        int
	reopens      int
	reopenErr    error
	allocateErrs int // number of remaining AllocateBuffer calls to fail
}

func (b *recordingBackend) AllocateBuffer() ([]byte, error) {
	if b.allocateErrs > 0 {
		b.allocateErrs--
		return nil, errAllocateBuffer
	}
	size := b.bufSize
	if size == 0 {
		size = 4096
	}
	return make([]byte, size), nil
}

func (b *recordingBackend) SubmitBuffer(buf []byte, used int) error {
	b.written = append(b.written, buf[:used]...)
	return nil
}

func (b *recordingBackend) Flush() error {
	b.flushes++
	return nil
}

func (b *recordingBackend) Sync() error {
	b.syncs++
	return nil
}

func (b *recordingBackend) Reopen() error {
	b.reopens++
	return b.reopenErr
}

func newTestOutputBuffer(t *testing.T, backend *recordingBackend) *OutputBuffer {
	t.Helper()
	out, err := newOutputBuffer(backend, DefaultStyle)
	if err != nil {
		t.Fatalf("newOutputBuffer: %v", err)
	}
	return out
}
