// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package xtrlog is an asynchronous, low-latency structured logger.
//
// Producing goroutines call a sink's Log method and return in
// nanoseconds; all formatting, timestamp rendering, and storage I/O run
// on one dedicated background goroutine (the consumer). Moving
// strongly-typed, formatted arguments from many concurrent producers to
// one consumer with no allocation on the producer path, no
// producer-producer contention, and no producer blocking on I/O is the
// core engineering problem this package solves.
//
// # Quick start
//
//	logger, err := xtrlog.NewLogger(xtrlog.Config{
//	    Storage: storage.MustFile("/var/log/app.log", 64<<10),
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	sink, err := logger.NewSink("worker-1", xtrlog.New(1<<20).Level(xtrlog.Info))
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
//
//	sink.Info("main.go:42: request handled for {}", userID)
//
// # Architecture
//
// Four tightly coupled pieces carry the hot path:
//
//	ring.go          per-sink mirrored SPSC ring buffer (§4.1-§4.2)
//	record.go         record encoding and the formatter-id registry (§4.3, §4.5)
//	consumer.go       the scheduler that drains every sink in round-robin order (§4.8)
//	internal/storage  pluggable POSIX / async storage back-ends (§4.7)
//
// sink.go, outputbuffer.go, logger.go, and control.go wire those pieces
// into the public Sink/Logger API and an optional control-channel
// collaborator.
//
// # Why a formatter-ID registry instead of a function pointer
//
// The design this package implements originally places a trampoline
// function pointer directly inside the ring buffer record and invokes it
// from raw memory. Go's garbage collector does not scan the mmap'd ring
// buffer — it is not memory the runtime manages — so a live function
// value or closure cannot be stored there. Instead every distinct
// (format, argument shape) pair is registered once, which mints a
// FormatterID; only that 8-byte ID travels through the ring buffer,
// resolved back to its render function through a registry kept in
// ordinary, GC-visible memory. Sink.Log builds on this automatically: the
// first call with a given (format string, argument-kind signature) pair
// compiles and registers a trampoline that substitutes "{}" placeholders
// and caches it in a lazily-populated registry keyed by a hash of the
// pair, so every later call with the same shape pays only a map lookup.
// RegisterFormatter/RegisterFormatterShape plus Sink.LogEncoded remain
// available as the low-level, manually-driven path for callers that want
// to build the trampoline and argument encoding themselves.
//
// A string or []byte argument to Log is copied into the record's string
// table by default; wrapping a string with NoCopy (or converting a []byte
// to NoCopyBytes) captures it by reference
// instead, resolved on the consumer side through a small per-ring
// "ref side-table" (record.go, refqueue.go) rather than the ring buffer
// itself, since a live Go pointer cannot be embedded in off-heap memory
// the garbage collector does not scan.
//
// # Error handling
//
// The producer fast path never surfaces a logging error. Under the
// non-blocking write tag, a record that does not fit is dropped and
// counted, and LogEncoded returns false. [ErrWouldBlock], [IsWouldBlock],
// [IsSemantic], and [IsNonFailure] are re-exported from
// code.hybscloud.com/iox for ecosystem consistency with hayabusa-cloud-lfq;
// no operation in this package returns ErrWouldBlock.
//
// Storage write and sync errors are reported through an optional error
// callback rather than terminating the process: logging data is advisory
// and a full disk must not crash the caller's program. A failed reopen is
// returned to the caller of Logger.Reopen.
//
// # Thread safety
//
//   - A Sink's Log/Sync/Close/SetLevel/Level/SetName form the only
//     supported access pattern; a single logical producer owns one sink.
//     Sharing a sink across producer goroutines is unsupported, matching
//     the single-producer contract of the ring buffer underneath it.
//   - Level is the one field read and written from multiple goroutines
//     concurrently; it uses a relaxed atomic.
//   - The consumer goroutine owns the sink registry outright; all
//     mutations arrive as commands posted on a command queue guarded by
//     a mutex in the Logger façade.
//
// # Race detection
//
// The ring buffer's fast path relies on acquire/release atomics (via
// [code.hybscloud.com/atomix]) rather than mutexes or channels to
// establish happens-before edges. Go's race detector instruments
// explicit synchronization primitives and may report false positives on
// these atomics under heavy scheduling perturbation. [RaceEnabled]
// reports whether the race detector is active.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for ordered atomics,
// [code.hybscloud.com/spin] for CPU-pause spin-waiting, and
// [code.hybscloud.com/iox] for semantic errors — the same stack
// hayabusa-cloud-lfq uses for its lock-free queues — plus
// golang.org/x/sys/unix for the Linux mirrored-memory mapping.
package xtrlog
