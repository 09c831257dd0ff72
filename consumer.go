// consumer.go: the background scheduler that round-robins over every
// registered sink (spec.md §4.8).
//
// Adaptation note: the original design posts a sink's close() as a
// "destroy marker" record inside the sink's own ring buffer, read back by
// the same per-record dispatch loop that reads ordinary log records. That
// requires a trampoline invocation to carry a live reference (a condition
// variable) through memory the Go garbage collector does not scan. This
// port instead routes close/sync/set-level/set-name/register through the
// logger's commandQueue (the optional external control channel is polled
// separately, see control.go), processed once per full round (when the round-robin cursor returns to
// sink 0) — GC-safe, and observably equivalent: a close still drains
// every record the sink had already enqueued before it is removed.
package xtrlog

import (
	"fmt"
	"time"

	"code.hybscloud.com/spin"
)

type registryEntry struct {
	sink    *Sink
	name    string
	dropped uint64
}

// clock returns the current time as (seconds, nanoseconds) since the
// Unix epoch in UTC. Injected so tests can freeze time and so alternate
// clock sources (TSC, coarse monotonic) can be substituted.
type clockFunc func() (sec, nsec int64)

type consumer struct {
	sinks   []registryEntry
	out     *OutputBuffer
	clock   clockFunc
	control *commandQueue
	channel ControlChannel // optional external collaborator; may be nil

	flushCountdown int
}

func newConsumer(out *OutputBuffer, clock clockFunc, control *commandQueue) *consumer {
	return &consumer{out: out, clock: clock, control: control}
}

// run executes the scheduler loop until the sink registry is empty and a
// stop has been requested (a closed logger with no remaining sinks).
// stopped reports whether the owning logger has been told to shut down;
// run exits only once the registry has actually drained to empty.
func (c *consumer) run(stopped func() bool) {
	i := 0
	timestampStale := true
	var timestamp string
	sw := spin.Wait{}

	for {
		if len(c.sinks) == 0 {
			if stopped() {
				return
			}
			c.processCommands()
			timestampStale = true
			if len(c.sinks) == 0 {
				sw.Once()
			}
			continue
		}

		n := i % len(c.sinks)
		if n == 0 {
			timestampStale = true
			c.processCommands()
			c.pollControlChannel(c.channel)
			if len(c.sinks) == 0 {
				continue
			}
			n = 0
		}

		entry := c.sinks[n]
		span := entry.sink.ring.readSpan()
		if len(span) == 0 {
			if c.flushCountdown > 0 {
				c.flushCountdown--
				if c.flushCountdown == 0 {
					_ = c.out.flush()
				}
			}
			i++
			continue
		}

		if timestampStale {
			timestamp = c.renderTimestamp()
			timestampStale = false
		}

		cursor := 0
		for cursor < len(span) {
			cursor += readRecord(entry.sink.ring.refs, span[cursor:], c.out, entry.sink.level.load(), timestamp, entry.name)
		}
		entry.sink.ring.reduceReadable(cursor)

		if len(entry.sink.ring.readSpan()) == 0 {
			if dropped := entry.sink.ring.takeDroppedCount(); dropped > 0 {
				c.sinks[n].dropped += dropped
				c.out.WriteLine(Warning, timestamp, entry.name, fmt.Sprintf("%d messages dropped", dropped))
			}
		}

		c.flushCountdown = len(c.sinks)
		i++
	}
}

func (c *consumer) renderTimestamp() string {
	sec, nsec := c.clock()
	return time.Unix(sec, nsec).UTC().Format("2006-01-02 15:04:05.000000")
}

// processCommands drains every currently-queued command with a single
// non-blocking pass, mirroring spec.md's "poll-then-process commands with
// zero timeout".
func (c *consumer) processCommands() {
	for {
		cmd, ok := c.control.dequeue()
		if !ok {
			return
		}
		c.handleCommand(cmd)
	}
}

func (c *consumer) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdRegister:
		c.sinks = append(c.sinks, registryEntry{sink: cmd.sink, name: cmd.name})
	case cmdClose:
		c.drainAndRemove(cmd.sink)
		close(cmd.done)
	case cmdSync:
		c.drainSink(cmd.sink)
		err := c.out.sync()
		if cmd.result != nil {
			cmd.result <- err
		}
		close(cmd.done)
	case cmdSetName:
		for i := range c.sinks {
			if c.sinks[i].sink == cmd.sink {
				c.sinks[i].name = cmd.name
			}
		}
		if cmd.done != nil {
			close(cmd.done)
		}
	case cmdSetLevel:
		// Unlike Sink.SetLevel (a direct atomic store used by a sink's own
		// owner), this variant serves Logger.SetLevelByName, whose caller
		// only knows a sink by its registered name.
		for i := range c.sinks {
			if c.sinks[i].sink == cmd.sink || (cmd.sink == nil && c.sinks[i].name == cmd.name) {
				c.sinks[i].sink.SetLevel(cmd.level)
			}
		}
		if cmd.done != nil {
			close(cmd.done)
		}
	case cmdReopen:
		err := c.out.flush()
		if err == nil {
			err = c.out.backend.Reopen()
		}
		if cmd.result != nil {
			cmd.result <- err
		}
		if cmd.done != nil {
			close(cmd.done)
		}
	case cmdStatus:
		statuses := c.snapshotStatus(cmd.match)
		if cmd.statusResult != nil {
			cmd.statusResult <- statuses
		}
		if cmd.done != nil {
			close(cmd.done)
		}
	}
}

// drainAndRemove processes every record already enqueued on sink's ring
// before removing it from the registry, so a close never drops records
// logged just before it.
func (c *consumer) drainAndRemove(sink *Sink) {
	idx := c.indexOf(sink)
	if idx < 0 {
		return
	}
	c.drainSink(sink)

	c.sinks[idx] = c.sinks[len(c.sinks)-1]
	c.sinks = c.sinks[:len(c.sinks)-1]
}

// drainSink fully empties sink's ring into the output buffer. cmdSync
// calls this before flushing: a record becomes visible on the ring
// independently of when cmdSync itself is dequeued, so without this step
// a record published just before Sync() could still be unread when
// out.sync() runs.
func (c *consumer) drainSink(sink *Sink) {
	if sink == nil {
		return
	}
	idx := c.indexOf(sink)
	if idx < 0 {
		return
	}
	entry := c.sinks[idx]

	timestamp := c.renderTimestamp()
	for {
		span := sink.ring.readSpan()
		if len(span) == 0 {
			break
		}
		cursor := 0
		for cursor < len(span) {
			cursor += readRecord(sink.ring.refs, span[cursor:], c.out, sink.level.load(), timestamp, entry.name)
		}
		sink.ring.reduceReadable(cursor)
	}
}

func (c *consumer) indexOf(sink *Sink) int {
	for i := range c.sinks {
		if c.sinks[i].sink == sink {
			return i
		}
	}
	return -1
}
