// outputbuffer.go: the consumer-owned line accumulator (spec.md §4.6).

package xtrlog

import (
	"strings"

	"code.hybscloud.com/xtrlog/internal/storage"
)

// OutputBuffer wraps a storage backend and the current [begin, pos, end)
// window into a storage-supplied buffer, plus a per-line scratch builder
// so a Trampoline can assemble a whole line before one bulk copy.
// Trampolines only ever see one via the render callback passed to them;
// the consumer owns the only instance.
type OutputBuffer struct {
	backend storage.Backend
	style   Style

	buf []byte
	pos int

	scratch strings.Builder
}

func newOutputBuffer(backend storage.Backend, style Style) (*OutputBuffer, error) {
	buf, err := backend.AllocateBuffer()
	if err != nil {
		return nil, err
	}
	return &OutputBuffer{backend: backend, style: style, buf: buf}, nil
}

// Append copies bytes into the active buffer, submitting and reallocating
// as needed so arbitrarily long lines are handled without growing the
// buffer itself.
func (o *OutputBuffer) Append(b []byte) error {
	for len(b) > 0 {
		n := copy(o.buf[o.pos:], b)
		o.pos += n
		b = b[n:]
		if o.pos == len(o.buf) {
			if err := o.rotateBuffer(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *OutputBuffer) rotateBuffer() error {
	if o.pos > 0 {
		if err := o.backend.SubmitBuffer(o.buf, o.pos); err != nil {
			return err
		}
	}
	buf, err := o.backend.AllocateBuffer()
	if err != nil {
		return err
	}
	o.buf = buf
	o.pos = 0
	return nil
}

// flush submits any partially filled buffer, then asks the backend to
// finish any batched submissions.
func (o *OutputBuffer) flush() error {
	if o.pos != 0 {
		if err := o.backend.SubmitBuffer(o.buf, o.pos); err != nil {
			return err
		}
		buf, err := o.backend.AllocateBuffer()
		if err != nil {
			return err
		}
		o.buf = buf
		o.pos = 0
	}
	return o.backend.Flush()
}

// sync flushes then asks the backend for durability.
func (o *OutputBuffer) sync() error {
	if err := o.flush(); err != nil {
		return err
	}
	return o.backend.Sync()
}

// WriteLine renders one complete, styled, newline-terminated line and
// appends it: "<style><timestamp> <sinkName>: <text>\n", matching the
// warning/diagnostic line shape in spec.md's seed suite (scenario 3:
// "... Name: 1 messages dropped").
func (o *OutputBuffer) WriteLine(level Level, timestamp, sinkName, text string) {
	o.scratch.Reset()
	o.scratch.WriteString(o.style(level))
	o.scratch.WriteString(timestamp)
	o.scratch.WriteByte(' ')
	o.scratch.WriteString(sinkName)
	o.scratch.WriteString(": ")
	o.scratch.WriteString(text)
	o.scratch.WriteByte('\n')
	_ = o.Append([]byte(o.scratch.String()))
}

// WriteFormatted renders "<style><timestamp> <sinkName> <formatted>\n",
// where formatted already contains the "<file>:<line>: <user text>"
// portion baked into the format string at the call site. This is what a
// Trampoline calls to emit its record's line.
func (o *OutputBuffer) WriteFormatted(level Level, timestamp, sinkName, formatted string) {
	o.scratch.Reset()
	o.scratch.WriteString(o.style(level))
	o.scratch.WriteString(timestamp)
	o.scratch.WriteByte(' ')
	o.scratch.WriteString(sinkName)
	o.scratch.WriteByte(' ')
	o.scratch.WriteString(formatted)
	o.scratch.WriteByte('\n')
	_ = o.Append([]byte(o.scratch.String()))
}
