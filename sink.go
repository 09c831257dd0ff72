// sink.go: the public per-producer handle (spec.md §4.4).

package xtrlog

import "os"

// Sink is a single producer's handle onto its own ring buffer. All
// operations besides Level/SetLevel are single-threaded with respect to
// that sink: one logical producer owns one sink.
type Sink struct {
	ring  *ring
	level atomicLevel
	name  string

	logger *Logger
	open   bool
}

func newSink(name string, opts Options, logger *Logger) (*Sink, error) {
	r, err := newRing(opts.capacity)
	if err != nil {
		return nil, err
	}
	s := &Sink{ring: r, name: name, logger: logger, open: true}
	s.level.store(opts.level)
	return s, nil
}

// LogEncoded is the low-level record path: the caller has already
// registered a trampoline (RegisterFormatter/RegisterFormatterShape) and
// hand-serialized args/strs. Log, below, is the format-string convenience
// built on top of it; most callers want Log or the Debug/Info/Warn/
// Error/Fatal wrappers instead.
//
// LogEncoded encodes a record and enqueues it if level is at least as
// severe as the sink's current level (lower numeric value = more severe,
// per the Level ordering). For Level == Fatal, LogEncoded calls Sync and
// then aborts the process after the record is durably written.
func (s *Sink) LogEncoded(level Level, id FormatterID, args []byte, strs []StringArg, tag WriteTag) bool {
	if !s.levelEnabled(level) {
		return true
	}
	ok := writeRecord(s.ring, tag, id, args, strs)
	if level == Fatal {
		_ = s.Sync()
		fatalAbort()
	}
	return ok
}

// Log renders format with args substituted for each "{}" placeholder, in
// order, and enqueues the result if level is enabled (spec.md §4.4,
// §8's seed scenarios). Argument types are classified once per distinct
// (format, argument-kind) pair and the resulting trampoline is cached and
// reused by every subsequent call with the same shape (format.go).
//
// A string or []byte argument is copied into the record's string table by
// default; wrap a string with NoCopy (or convert a []byte to NoCopyBytes)
// to capture it by reference instead. A
// literal "{}" in logged data is not itself interpreted — placeholders
// only come from format — but any unprintable byte in a string argument
// is escaped the same way EscapeArg escapes it.
func (s *Sink) Log(level Level, format string, args ...any) bool {
	if !s.levelEnabled(level) {
		return true
	}
	cf := getCompiledFormat(format, args)
	fixed, strs := encodeArgs(cf.kinds, args)
	ok := writeRecord(s.ring, Blocking, cf.id, fixed, strs)
	if level == Fatal {
		_ = s.Sync()
		fatalAbort()
	}
	return ok
}

// Debug logs at Level Debug. See Log for the format-string syntax.
func (s *Sink) Debug(format string, args ...any) bool { return s.Log(Debug, format, args...) }

// Info logs at Level Info. See Log for the format-string syntax.
func (s *Sink) Info(format string, args ...any) bool { return s.Log(Info, format, args...) }

// Warn logs at Level Warning. See Log for the format-string syntax.
func (s *Sink) Warn(format string, args ...any) bool { return s.Log(Warning, format, args...) }

// Error logs at Level Error. See Log for the format-string syntax.
func (s *Sink) Error(format string, args ...any) bool { return s.Log(Error, format, args...) }

// Fatal logs at Level Fatal, then synchronously flushes and aborts the
// process. See Log for the format-string syntax.
func (s *Sink) Fatal(format string, args ...any) bool { return s.Log(Fatal, format, args...) }

func (s *Sink) levelEnabled(level Level) bool {
	l := s.level.load()
	return l != None && level <= l
}

// Sync blocks until the consumer has processed every record enqueued on
// this sink so far and the storage backend reports the bytes durable.
func (s *Sink) Sync() error {
	done := make(chan struct{})
	result := make(chan error, 1)
	s.logger.postControl(command{kind: cmdSync, sink: s, done: done, result: result})
	<-done
	select {
	case err := <-result:
		return err
	default:
		return nil
	}
}

// Close posts a close command; the consumer renders every record still
// queued on this sink's ring buffer and removes the sink from its
// registry. Close waits for that to complete, then unmaps the ring
// buffer. No operation registers a closed sink again; a second Close
// returns ErrClosed.
func (s *Sink) Close() error {
	if !s.open {
		return ErrClosed
	}
	done := make(chan struct{})
	s.logger.postControl(command{kind: cmdClose, sink: s, done: done})
	<-done
	s.open = false
	return s.ring.close()
}

// SetLevel atomically changes this sink's level; safe to call from any
// goroutine concurrently with Log.
func (s *Sink) SetLevel(l Level) { s.level.store(l) }

// Level atomically reads this sink's level.
func (s *Sink) Level() Level { return s.level.load() }

// SetName posts a control item updating the consumer's copy of this
// sink's name; the name used in already-rendered lines is unaffected.
func (s *Sink) SetName(name string) {
	s.logger.postControl(command{kind: cmdSetName, sink: s, name: name})
}

// fatalAbort terminates the process. It is a var, not a direct os.Exit
// call, so tests can swap in a non-terminating stand-in to exercise
// Fatal-level logging.
var fatalAbort = func() {
	os.Exit(1)
}
