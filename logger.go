// logger.go: the public façade that owns the background consumer
// goroutine and vends sinks (spec.md §4.9).
package xtrlog

import (
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/xtrlog/internal/storage"
)

// Config configures a Logger.
type Config struct {
	// Storage is the backend the consumer writes rendered lines to.
	Storage storage.Backend
	// Style renders a level as a line prefix. Defaults to DefaultStyle.
	Style Style
	// Clock returns the current time as (seconds, nanoseconds since the
	// Unix epoch, UTC). Defaults to the system clock. Tests substitute a
	// frozen clock to get deterministic timestamps.
	Clock func() (sec, nsec int64)
	// ControlQueueCapacity bounds the logger's command queue (register,
	// close, sync, ...). Defaults to 256 and rounds up to a power of two.
	ControlQueueCapacity int
	// Channel, if set, is polled once per full consumer round for
	// external status/set-level/reopen requests (spec.md §6). The control
	// socket protocol itself is out of scope for this package; Channel is
	// the boundary a separate collaborator implements.
	Channel ControlChannel
}

// Logger owns one background consumer goroutine and the command queue
// sinks use to reach it. The consumer owns the sink registry outright;
// every mutation arrives as a command, and postControl serializes
// enqueuing that command under a mutex since multiple sinks may call
// Sync/Close/SetName concurrently even though each sink's Log path has
// exactly one producer (spec.md §5).
type Logger struct {
	mu      sync.Mutex
	control *commandQueue

	consumer *consumer

	stopRequested atomic.Bool
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

// NewLogger constructs a Logger and starts its background consumer
// goroutine. The goroutine runs until Close is called and every sink has
// been closed.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.Storage == nil {
		return nil, storage.ErrNoPath
	}
	style := cfg.Style
	if style == nil {
		style = DefaultStyle
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock
	}
	capacity := cfg.ControlQueueCapacity
	if capacity < 1 {
		capacity = 256
	}

	out, err := newOutputBuffer(cfg.Storage, style)
	if err != nil {
		return nil, err
	}

	control := newCommandQueue(capacity)
	con := newConsumer(out, clock, control)
	con.channel = cfg.Channel
	lg := &Logger{
		control:  control,
		consumer: con,
	}

	lg.wg.Add(1)
	go func() {
		defer lg.wg.Done()
		lg.consumer.run(lg.isStopRequested)
	}()

	return lg, nil
}

func systemClock() (sec, nsec int64) {
	now := time.Now().UTC()
	return now.Unix(), int64(now.Nanosecond())
}

func (lg *Logger) isStopRequested() bool {
	return lg.stopRequested.Load()
}

// postControl enqueues cmd, serializing concurrent callers (the command
// queue itself is single-producer).
func (lg *Logger) postControl(cmd command) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.control.enqueue(cmd)
}

// NewSink creates a sink with the given name and options and registers it
// with this logger's consumer.
func (lg *Logger) NewSink(name string, b *Builder) (*Sink, error) {
	opts := b.build()
	s, err := newSink(name, opts, lg)
	if err != nil {
		return nil, err
	}
	lg.postControl(command{kind: cmdRegister, sink: s, name: name})
	return s, nil
}

// SetLevelByName changes the level of every currently registered sink
// whose name equals name. Unlike Sink.SetLevel (a direct atomic store by
// a sink's own owner), this is for a caller that only knows sinks by
// their registered name.
func (lg *Logger) SetLevelByName(name string, l Level) {
	done := make(chan struct{})
	lg.postControl(command{kind: cmdSetLevel, name: name, level: l, done: done})
	<-done
}

// Status reports the current state of every registered sink whose name
// match accepts (nil matches every sink), exercising the same cmdStatus
// command control.go's ControlStatus handler shares via snapshotStatus.
func (lg *Logger) Status(match func(name string) bool) []SinkStatus {
	done := make(chan struct{})
	result := make(chan []SinkStatus, 1)
	lg.postControl(command{kind: cmdStatus, match: match, done: done, statusResult: result})
	<-done
	select {
	case statuses := <-result:
		return statuses
	default:
		return nil
	}
}

// Reopen flushes pending output and asks the storage backend to reopen
// its underlying file, for log rotation.
func (lg *Logger) Reopen() error {
	done := make(chan struct{})
	result := make(chan error, 1)
	lg.postControl(command{kind: cmdReopen, done: done, result: result})
	<-done
	select {
	case err := <-result:
		return err
	default:
		return nil
	}
}

// Close requests the consumer goroutine to stop and blocks until it
// exits, which happens only once every sink registered with this logger
// has itself been closed. Callers should Close every sink before calling
// Close on the logger (e.g. via deferred Close calls in sink-then-logger
// construction order).
func (lg *Logger) Close() error {
	var flushErr error
	lg.closeOnce.Do(func() {
		lg.stopRequested.Store(true)
		lg.wg.Wait()
		flushErr = lg.consumer.out.flush()
	})
	return flushErr
}
