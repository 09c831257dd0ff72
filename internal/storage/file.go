package storage

import (
	"os"
)

// File is the synchronous POSIX backend: a single fixed-capacity buffer,
// reused across allocate/submit cycles, and blocking writes that retry
// until every byte lands or a hard error is raised.
//
// Grounded on agilira-lethe's writeSync: the retry-until-fully-written
// loop and the lazily re-openable *os.File are direct analogues of
// lethe's initFile/currentFile handling, narrowed to the four-method
// Backend contract.
type File struct {
	path    string // empty disables Reopen (spec.md's "null-path sentinel")
	f       *os.File
	bufSize int
	buf     []byte

	// ErrorCallback, when set, is invoked for hard I/O errors instead of
	// letting them propagate and kill the producer's program (spec.md
	// §7: "the log stream continues ... so that a full disk or removed
	// file does not terminate the user's program"). Grounded on
	// agilira-lethe's Logger.ErrorCallback / reportError.
	ErrorCallback func(operation string, err error)
}

// NewFile opens path in append mode (create, 0664) and returns a File
// backend with the given buffer size.
func NewFile(path string, bufSize int) (*File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		return nil, err
	}
	return &File{path: path, f: f, bufSize: bufSize, buf: make([]byte, bufSize)}, nil
}

// MustFile is NewFile for call sites that treat an unopenable log path as
// a startup-fatal condition (e.g. package xtrlog's Quick start example).
// It panics instead of returning an error.
func MustFile(path string, bufSize int) *File {
	f, err := NewFile(path, bufSize)
	if err != nil {
		panic(err)
	}
	return f
}

// NewFileHandle wraps an already-open file handle. The backend duplicates
// the descriptor so it owns its own independent reference, per spec.md
// §4.7's factory contract ("given a file handle or descriptor, duplicate
// it so the back-end owns its own reference"). The path is unknown, so
// Reopen always returns ErrNoPath for a handle-constructed backend.
func NewFileHandle(f *os.File, bufSize int) (*File, error) {
	dup, err := dupFile(f)
	if err != nil {
		return nil, err
	}
	return &File{f: dup, bufSize: bufSize, buf: make([]byte, bufSize)}, nil
}

func (b *File) AllocateBuffer() ([]byte, error) {
	return b.buf, nil
}

// SubmitBuffer writes buf[:used], retrying on partial writes until every
// byte lands or a hard error occurs. Hard errors are reported via
// ErrorCallback (if set) and swallowed, matching spec.md §7's "advisory,
// must not crash the producer's program" policy; the buffer is dropped.
func (b *File) SubmitBuffer(buf []byte, used int) error {
	data := buf[:used]
	for len(data) > 0 {
		n, err := b.f.Write(data)
		if n > 0 {
			data = data[n:]
		}
		if err != nil {
			b.report("write", err)
			return nil
		}
	}
	return nil
}

func (b *File) Flush() error { return nil }

func (b *File) Sync() error {
	if err := b.f.Sync(); err != nil {
		b.report("sync", err)
		return nil
	}
	return nil
}

// Reopen replaces the active descriptor with a freshly opened one at the
// same path, in append mode. Writes already submitted to the old
// descriptor remain on the old inode; subsequent writes target the new
// one.
func (b *File) Reopen() error {
	if b.path == "" {
		return ErrNoPath
	}
	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		return err
	}
	old := b.f
	b.f = f
	return old.Close()
}

func (b *File) Close() error {
	return b.f.Close()
}

func (b *File) report(op string, err error) {
	if b.ErrorCallback != nil {
		b.ErrorCallback(op, err)
	}
}
