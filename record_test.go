package xtrlog

import (
	"strings"
	"testing"
)

func TestRecordShape0RoundTrip(t *testing.T) {
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	defer r.close()

	var rendered string
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		rendered = ts + " " + name + " logger.go:1: Test"
	})
	RegisterFormatterShape(id, 0, false)

	if ok := writeRecord(r, Blocking, id, nil, nil); !ok {
		t.Fatalf("writeRecord: got false, want true")
	}

	span := r.readSpan()
	out := &OutputBuffer{style: DefaultStyle}
	n := readRecord(r.refs, span, out, Info, "2000-01-01 01:02:03.123456", "Name")
	if n != Align {
		t.Fatalf("readRecord size: got %d, want %d", n, Align)
	}
	if want := "2000-01-01 01:02:03.123456 Name logger.go:1: Test"; rendered != want {
		t.Fatalf("rendered: got %q, want %q", rendered, want)
	}
}

func TestRecordShapeNFixedArgs(t *testing.T) {
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	defer r.close()

	var got uint32
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		got = uint32(getUint64(args, 0))
	})
	RegisterFormatterShape(id, 8, false)

	args := make([]byte, 8)
	putUint64(args, 0, 42)
	if ok := writeRecord(r, Blocking, id, args, nil); !ok {
		t.Fatalf("writeRecord: got false, want true")
	}

	span := r.readSpan()
	out := &OutputBuffer{style: DefaultStyle}
	readRecord(r.refs, span, out, Info, "ts", "Name")
	if got != 42 {
		t.Fatalf("decoded arg: got %d, want 42", got)
	}
}

func TestRecordShapeSStringTable(t *testing.T) {
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	defer r.close()

	var decoded string
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		decoded = strs.Next()
	})
	RegisterFormatterShape(id, 0, true)

	if ok := writeRecord(r, Blocking, id, nil, []StringArg{CopyString("hello world")}); !ok {
		t.Fatalf("writeRecord: got false, want true")
	}

	span := r.readSpan()
	out := &OutputBuffer{style: DefaultStyle}
	readRecord(r.refs, span, out, Info, "ts", "Name")
	if decoded != "hello world" {
		t.Fatalf("decoded string: got %q, want %q", decoded, "hello world")
	}
}

func TestRecordMultipleStrings(t *testing.T) {
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	defer r.close()

	var a, b string
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		a = strs.Next()
		b = strs.Next()
	})
	RegisterFormatterShape(id, 0, true)

	if ok := writeRecord(r, Blocking, id, nil, []StringArg{CopyString("first"), CopyString("second")}); !ok {
		t.Fatalf("writeRecord: got false, want true")
	}
	span := r.readSpan()
	out := &OutputBuffer{style: DefaultStyle}
	readRecord(r.refs, span, out, Info, "ts", "Name")
	if a != "first" || b != "second" {
		t.Fatalf("decoded strings: got (%q, %q), want (\"first\", \"second\")", a, b)
	}
}

// TestRecordNoCopyStringRoundTrip checks the ref side-table path: a
// NoCopy-wrapped string is resolved through refQueue rather than the
// record's inline string table (record.go, refqueue.go).
func TestRecordNoCopyStringRoundTrip(t *testing.T) {
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	defer r.close()

	var decoded string
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		decoded = strs.Next()
	})
	RegisterFormatterShape(id, 0, true)

	held := "referenced-value"
	if ok := writeRecord(r, Blocking, id, nil, []StringArg{refString(held)}); !ok {
		t.Fatalf("writeRecord: got false, want true")
	}

	span := r.readSpan()
	out := &OutputBuffer{style: DefaultStyle}
	readRecord(r.refs, span, out, Info, "ts", "Name")
	if decoded != held {
		t.Fatalf("decoded string: got %q, want %q", decoded, held)
	}
}

// TestRecordNoCopyAndCopyMixed checks that a record mixing a by-reference
// string and a copied string resolves both, in argument order.
func TestRecordNoCopyAndCopyMixed(t *testing.T) {
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	defer r.close()

	var a, b string
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		a = strs.Next()
		b = strs.Next()
	})
	RegisterFormatterShape(id, 0, true)

	held := "by-ref"
	if ok := writeRecord(r, Blocking, id, nil, []StringArg{refString(held), CopyString("by-value")}); !ok {
		t.Fatalf("writeRecord: got false, want true")
	}
	span := r.readSpan()
	out := &OutputBuffer{style: DefaultStyle}
	readRecord(r.refs, span, out, Info, "ts", "Name")
	if a != held || b != "by-value" {
		t.Fatalf("decoded strings: got (%q, %q), want (%q, \"by-value\")", a, b, held)
	}
}

// TestRecordTruncationUnderBackPressure checks spec.md §4.3: when the
// writable span is too small for every string, strings are replaced with
// the truncated marker one at a time rather than overflowing.
func TestRecordTruncationUnderBackPressure(t *testing.T) {
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	defer r.close()

	// Leave only a small contiguous span at the end of the ring, too
	// small for the long string below, by publishing a filler chunk that
	// consumes all but the last 64 bytes. The producer's cached
	// read_plus_capacity still covers the record's 16-byte header, so it is
	// not refreshed and writeSpan offers only those last 64 bytes.
	const fillerSize = 4096 - 64
	filler := r.writeSpan(fillerSize, Blocking)
	if len(filler) < fillerSize {
		t.Fatalf("writeSpan(filler): got len %d, want >= %d", len(filler), fillerSize)
	}
	r.reduceWritable(fillerSize)
	// Discard the filler the same way the consumer would (read it, then
	// release it), so the ring's read-side cache stays consistent for the
	// readSpan call below.
	if got := r.readSpan(); len(got) != fillerSize {
		t.Fatalf("readSpan(filler): got len %d, want %d", len(got), fillerSize)
	}
	r.reduceReadable(fillerSize)

	var decoded string
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		decoded = strs.Next()
	})
	RegisterFormatterShape(id, 0, true)

	long := strings.Repeat("x", 1000)
	if ok := writeRecord(r, Blocking, id, nil, []StringArg{CopyString(long)}); !ok {
		t.Fatalf("writeRecord: got false, want true")
	}

	span := r.readSpan()
	out := &OutputBuffer{style: DefaultStyle}
	readRecord(r.refs, span, out, Info, "ts", "Name")
	if decoded != truncatedMarker {
		t.Fatalf("decoded: got %q, want %q", decoded, truncatedMarker)
	}
}

func TestRecordUnknownFormatterID(t *testing.T) {
	buf := make([]byte, Align)
	putUint64(buf, 0, 0xdeadbeef)

	backend := &recordingBackend{}
	out, err := newOutputBuffer(backend, DefaultStyle)
	if err != nil {
		t.Fatalf("newOutputBuffer: %v", err)
	}
	n := readRecord(nil, buf, out, Info, "ts", "Name")
	if n != Align {
		t.Fatalf("readRecord size: got %d, want %d", n, Align)
	}
	_ = out.flush()
	if !strings.Contains(string(backend.written), "unknown formatter id") {
		t.Fatalf("output: got %q, want a substring %q", backend.written, "unknown formatter id")
	}
}

func TestRecordTrampolinePanicRecovered(t *testing.T) {
	id := RegisterFormatter(func(out *OutputBuffer, args []byte, strs *StringCursor, level Level, ts, name string) {
		panic("boom")
	})
	RegisterFormatterShape(id, 0, false)

	buf := make([]byte, Align)
	putUint64(buf, 0, uint64(id))

	backend := &recordingBackend{}
	out, err := newOutputBuffer(backend, DefaultStyle)
	if err != nil {
		t.Fatalf("newOutputBuffer: %v", err)
	}
	readRecord(nil, buf, out, Info, "ts", "Name")
	_ = out.flush()
	if !strings.Contains(string(backend.written), "Error writing log: boom") {
		t.Fatalf("output: got %q, want a substring about the panic", backend.written)
	}
}
