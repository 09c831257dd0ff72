// record.go: record encoding and the formatter-ID registry (spec.md §4.3,
// §4.5). A record is a variable-length byte sequence written into a sink's
// ring buffer: a formatter ID, optionally a record length, a block of
// captured argument bytes, and optionally a string table.
//
// The original design identifies a trampoline by the address of a
// monomorphized function living in the record itself. Go's garbage
// collector cannot scan the mmap'd ring buffer for live pointers (it is
// not heap memory the runtime knows about), so a real function value or
// closure cannot be stored there safely. Instead each distinct
// (format string, argument shape) pair is registered once, up front, and
// identified in the record by a plain uint64 formatter ID, resolved
// through a registry held in ordinary Go memory. This is the direct
// analogue of hayabusa-cloud-lfq's function-pointer dispatch in spsc.go,
// adjusted for a GC that needs every live reference on the Go heap.

package xtrlog

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// FormatterID identifies a registered trampoline. It plays the role the
// function pointer plays in the original record layout.
type FormatterID uint64

// StringCursor walks one record's string table in the order its string
// arguments were logged, transparently resolving both copied (inline)
// entries and NoCopy (by-reference) entries resolved through the sink's
// ref side-table (record.go's refTag/refQueue, SPEC_FULL.md's "Ref
// side-table"). Trampolines registered with hasStrings == true receive
// one and call Next once per string argument, in call order.
type StringCursor struct {
	data []byte
	refs []string
	idx  int
}

// Next returns the next string table entry, or "" once the table is
// exhausted.
func (c *StringCursor) Next() string {
	if c == nil || len(c.data) < recordLenSize {
		return ""
	}
	tag := getUint64(c.data, 0)
	c.data = c.data[recordLenSize:]
	if tag&refTag != 0 {
		if c.idx >= len(c.refs) {
			return ""
		}
		s := c.refs[c.idx]
		c.idx++
		return s
	}
	n := int(tag)
	if n > len(c.data) {
		n = len(c.data)
	}
	s := string(c.data[:n])
	c.data = c.data[n:]
	return s
}

// Trampoline renders one record's payload into the output buffer. args is
// the captured-argument block; strs is the string-table cursor (nil for
// Shape 0 and Shape N records). It must not block and must not panic;
// readRecord recovers panics from it and substitutes a diagnostic line (spec.md
// §4.5, §7).
type Trampoline func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, timestamp, sinkName string)

var (
	trampolines   sync.Map // FormatterID -> Trampoline
	nextFormatter atomic.Uint64
)

// RegisterFormatter mints a new formatter ID bound to fn. Call sites
// register once (typically via a package-level var) and reuse the
// returned ID on every log call, exactly as the original mints one
// trampoline per unique (format string, argument types) pair.
//
// This is the low-level, manually-driven mechanism: the caller builds the
// trampoline, the argument block, and the string table by hand (see
// writeRecord/RegisterFormatterShape). Sink.Log's format-string API
// (format.go) is the high-level realization of the same idea, built on
// top of this registry rather than replacing it.
func RegisterFormatter(fn Trampoline) FormatterID {
	id := FormatterID(nextFormatter.Add(1))
	trampolines.Store(id, fn)
	return id
}

func lookupTrampoline(id FormatterID) (Trampoline, bool) {
	v, ok := trampolines.Load(id)
	if !ok {
		return nil, false
	}
	return v.(Trampoline), true
}

// recordHeader sizes, in bytes. Both are machine-word (Align) sized so the
// following payload starts at a known, aligned offset.
const (
	formatterIDSize = 8
	recordLenSize   = 8
)

// truncatedMarker replaces a string that did not fit under back-pressure
// (spec.md §4.3, "String-table construction under back-pressure").
const truncatedMarker = "<truncated>"

// refTag marks a string-table length field as a by-reference entry rather
// than an inline (length, bytes) pair: the entry carries no payload bytes
// of its own, only this tag, and the actual string is fetched in order
// from the ref side-table (refqueue.go) instead. Safe as a tag bit because
// no real string length ever approaches 1<<63.
const refTag = uint64(1) << 63

// NoCopyString marks a string argument to be captured by reference instead
// of copied into the string table. Build one with NoCopy (format.go).
//
// Go-specific detail: the ring buffer is off-heap memory the garbage
// collector does not scan, so the string header is not stored there.
// writeRecord pushes it onto the owning ring's ref side-table (refQueue,
// an ordinary Go slice), which keeps the backing array reachable until the
// consumer pops it while rendering the record.
type NoCopyString string

// NoCopyBytes is the []byte analogue of NoCopyString.
type NoCopyBytes []byte

// StringArg is one string destined for a record's string table: copied
// verbatim, captured by reference (ref == true, resolved through the ref
// side-table instead of occupying table bytes), or replaced by the
// truncated marker if back-pressure requires it. Build one with
// CopyString, CopyBytes, or NoCopy.
type StringArg struct {
	copy string
	ref  bool
}

// CopyString captures s into the record's string table by value.
func CopyString(s string) StringArg { return StringArg{copy: s} }

// CopyBytes captures b into the record's string table by value.
func CopyBytes(b []byte) StringArg { return StringArg{copy: string(b)} }

// refString captures s by reference: nothing is copied into the ring's
// string table, only a tag; s itself is pushed onto the owning ring's ref
// side-table and resolved back in call order by StringCursor.Next.
func refString(s string) StringArg { return StringArg{copy: s, ref: true} }

// alignUp rounds n up to the next multiple of Align.
func alignUp(n int) int {
	return (n + Align - 1) &^ (Align - 1)
}

// stringTableSize returns the byte size of strs encoded as a sequence of
// entries: a ref entry costs only recordLenSize (its value lives in the
// ref side-table, not here); a copied entry costs recordLenSize plus its
// byte length.
func stringTableSize(strs []StringArg) int {
	n := 0
	for _, s := range strs {
		n += recordLenSize
		if !s.ref {
			n += len(s.copy)
		}
	}
	return n
}

// writeRecord encodes and publishes one record. args is the fixed-size
// captured-argument block (already serialized by the caller, e.g. via
// encoding/binary or a fixed-layout struct cast); strs is the ordered list
// of string arguments, each either copied, captured by reference, or
// replaced by the truncated marker under back-pressure.
//
// Only the header and args are a hard requirement of writeSpan: that much
// is always obtainable eventually (Blocking spins for it, NonBlocking
// fails outright if even that does not fit). The string table rides on
// whatever additional, already-available contiguous space writeSpan
// happens to return, which may be less than every string needs in full;
// in that case strings are replaced with the truncated marker one at a
// time until what remains fits the span actually obtained. Ref entries are
// never truncated: they cost a fixed recordLenSize regardless of the
// referenced string's length, so they never contribute to back-pressure.
//
// Returns false if the record was refused outright (non-blocking tag, ring
// full even for the header); the ring's dropped counter has already been
// incremented in that case.
func writeRecord(r *ring, tag WriteTag, id FormatterID, args []byte, strs []StringArg) bool {
	hasStrings := len(strs) > 0

	headerSize := formatterIDSize
	if hasStrings {
		headerSize += recordLenSize
	}
	minRequired := alignUp(headerSize + len(args))

	span := r.writeSpan(minRequired, tag)
	if span == nil {
		return false
	}

	total := alignUp(headerSize + len(args) + stringTableSize(strs))
	for total > len(span) {
		truncatedAny := false
		for i := range strs {
			if strs[i].ref || strs[i].copy == truncatedMarker {
				continue
			}
			strs[i].copy = truncatedMarker
			truncatedAny = true
			break
		}
		if !truncatedAny {
			// Nothing left to shrink; take what the span offers and hope
			// total still fits (it must, since truncatedMarker is tiny).
			break
		}
		total = alignUp(headerSize + len(args) + stringTableSize(strs))
	}
	if total > len(span) {
		total = len(span)
	}

	putUint64(span, 0, uint64(id))
	off := formatterIDSize
	if hasStrings {
		putUint64(span, off, uint64(total))
		off += recordLenSize
	}
	off += copy(span[off:], args)

	var refVals []string
	for _, s := range strs {
		if s.ref {
			putUint64(span, off, refTag)
			off += recordLenSize
			refVals = append(refVals, s.copy)
			continue
		}
		putUint64(span, off, uint64(len(s.copy)))
		off += recordLenSize
		off += copy(span[off:], s.copy)
	}
	if hasStrings {
		r.refs.push(refVals)
	}

	r.reduceWritable(total)
	return true
}

// EscapeArg renders s the way the reference formatter renders a
// string/string-ref argument (spec.md §4.3's "Unprintable-character
// policy"): printable ASCII 0x20-0x7E other than backslash passes through
// verbatim; every other byte becomes `\xHH` in uppercase hex. Trampolines
// that format a captured string argument call this rather than writing
// the raw bytes, so control characters in logged data cannot corrupt the
// one-line-per-record output contract.
func EscapeArg(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c <= 0x7E && c != '\\' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, `\x%02X`, c)
	}
	return b.String()
}

// readRecord decodes one record starting at buf[0] and dispatches to its
// trampoline. refs is the owning ring's ref side-table queue (nil is safe
// when the record is known not to carry string arguments). Returns the
// record's total size so the caller can advance its cursor. A missing
// formatter ID (should not happen in practice) is treated as a zero-arg
// record with a diagnostic trampoline.
func readRecord(refs *refQueue, buf []byte, out *OutputBuffer, level Level, timestamp, sinkName string) int {
	id := FormatterID(getUint64(buf, 0))
	fn, ok := lookupTrampoline(id)
	if !ok {
		out.WriteLine(level, timestamp, sinkName, fmt.Sprintf("Error writing log: unknown formatter id %d", id))
		return Align
	}

	// The record length field is only present for string-bearing records.
	// Whether a record has one, and how large its argument block is, come
	// from the shape registered for its formatter ID
	// (RegisterFormatterShape). Shape 0/N trampolines are invoked with
	// strs == nil and their total is the aligned header plus argument
	// block; for Shape S the length field lets us skip the whole record
	// without re-deriving string boundaries.
	//
	// A record may run past the end of the low mapping (the consumer's
	// span stops there); its tail is read through the mirrored high half,
	// which lies within buf's capacity.
	buf = buf[:cap(buf)]
	hasLen := recordHasLength(buf)
	off := formatterIDSize
	var total int
	var args []byte
	var cursor *StringCursor
	if hasLen {
		total = int(getUint64(buf, off))
		off += recordLenSize
		argsEnd := off + shapeArgsLen(id)
		args = buf[off:argsEnd]

		var refVals []string
		if refs != nil {
			refVals, _ = refs.pop()
		}
		cursor = &StringCursor{data: buf[argsEnd:total], refs: refVals}
	} else {
		total = alignUp(off + shapeArgsLen(id))
		args = buf[off:total]
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				out.WriteLine(Error, timestamp, sinkName, fmt.Sprintf("Error writing log: %v", rec))
			}
		}()
		fn(out, args, cursor, level, timestamp, sinkName)
	}()

	return total
}

// shapeArgsLen and recordHasLength are resolved through a side table kept
// alongside the trampoline registry: the registry stores shape metadata
// next to the render function so the consumer can compute offsets without
// re-parsing call-site types.
func recordHasLength(buf []byte) bool {
	id := FormatterID(getUint64(buf, 0))
	meta, ok := shapeMeta.Load(id)
	if !ok {
		return false
	}
	return meta.(recordShape).hasStrings
}

func shapeArgsLen(id FormatterID) int {
	meta, ok := shapeMeta.Load(id)
	if !ok {
		return 0
	}
	return meta.(recordShape).argsLen
}

type recordShape struct {
	argsLen    int
	hasStrings bool
}

var shapeMeta sync.Map // FormatterID -> recordShape

// RegisterFormatterShape records a formatter's fixed argument-block size
// and whether it carries a string table, alongside RegisterFormatter.
// Callers that build records via writeRecord must call this once per ID.
func RegisterFormatterShape(id FormatterID, argsLen int, hasStrings bool) {
	shapeMeta.Store(id, recordShape{argsLen: argsLen, hasStrings: hasStrings})
}

func putUint64(b []byte, off int, v uint64) {
	_ = b[off+7]
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
	b[off+4] = byte(v >> 32)
	b[off+5] = byte(v >> 40)
	b[off+6] = byte(v >> 48)
	b[off+7] = byte(v >> 56)
}

func getUint64(b []byte, off int) uint64 {
	_ = b[off+7]
	return uint64(b[off]) | uint64(b[off+1])<<8 | uint64(b[off+2])<<16 | uint64(b[off+3])<<24 |
		uint64(b[off+4])<<32 | uint64(b[off+5])<<40 | uint64(b[off+6])<<48 | uint64(b[off+7])<<56
}
