// options.go: fluent configuration for sink and logger construction,
// adapted from hayabusa-cloud-lfq's Options/Builder pattern (same shape:
// an Options struct of plain fields, a Builder wrapping it with chained
// setters, terminal Build* functions) generalized from queue-algorithm
// selection to sink/logger configuration.

package xtrlog

import "code.hybscloud.com/xtrlog/internal/mmap"

// Options configures a sink's ring buffer and default level.
type Options struct {
	capacity int // ring buffer capacity in bytes; rounds up to page-aligned pow2
	level    Level
}

// Builder provides a fluent API for configuring a sink before it is
// registered with a Logger.
//
// Example:
//
//	sink, err := logger.NewSink("worker-1", xtrlog.New(1<<20).Level(xtrlog.Info))
type Builder struct {
	opts Options
}

// New creates a sink builder with the given ring buffer capacity (bytes).
// Capacity rounds up to the next power-of-two multiple of the page size.
func New(capacity int) *Builder {
	if capacity < 1 {
		panic("xtrlog: capacity must be >= 1")
	}
	capacity = roundToPow2(capacity)
	if ps := mmap.PageSize(); capacity < ps {
		capacity = ps
	}
	return &Builder{opts: Options{capacity: capacity, level: Info}}
}

// Level sets the sink's initial log level. Default is Info.
func (b *Builder) Level(l Level) *Builder {
	b.opts.level = l
	return b
}

func (b *Builder) build() Options {
	return b.opts
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing between the
// producer-owned and consumer-owned atomics in commandqueue.go and
// refqueue.go (ring.go pads with inline [64]byte fields of the same size).
type pad [64]byte
