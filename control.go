// control.go: the interface to the optional control-channel collaborator
// (spec.md §6, §4.8 "Control collaborators"). The control-socket wire
// protocol, its framing, and the glob/regex sink-name matcher are
// explicitly out of scope (spec.md §1) — only the boundary between that
// collaborator and the consumer is specified here.
package xtrlog

import "errors"

// errInvalidLevel and errUnknownControlRequest are the "user input error"
// shapes spec.md §7 calls out for control-channel requests: surfaced as
// an error response frame by the collaborator, never as a process error.
var (
	errInvalidLevel          = errors.New("xtrlog: invalid level")
	errUnknownControlRequest = errors.New("xtrlog: unknown control request kind")
)

// SinkStatus is one sink's reported state, as returned for a status
// request (spec.md §4.8's "status" handler: "level, ring buffer capacity
// and current used bytes, and cumulative dropped count").
type SinkStatus struct {
	Name     string
	Level    Level
	Capacity int
	Used     int
	Dropped  uint64
}

// ControlChannel is the collaborator a Logger may poll for maintenance
// requests — typically the receiving end of a local-domain control
// socket, though this package only specifies the boundary: a channel
// implementation lives outside this module and is handed to NewLogger
// via Config.
//
// Poll is called once per full round of the consumer's scheduler loop
// (spec.md §4.8: "if control_channel: poll-then-process commands with
// zero timeout") and must not block.
type ControlChannel interface {
	// Poll returns the next pending request, if any, without blocking.
	Poll() (ControlRequest, bool)
}

// ControlRequestKind discriminates the three request shapes spec.md §6
// names: status, set-level, reopen.
type ControlRequestKind int

const (
	ControlStatus ControlRequestKind = iota
	ControlSetLevel
	ControlReopen
)

// ControlRequest is one decoded request from a ControlChannel. Match
// selects which registered sinks the request applies to; matching itself
// (glob/regex/case-insensitivity) is the matcher collaborator's job, not
// this package's — Match is expected to already be a plain predicate by
// the time it reaches here.
type ControlRequest struct {
	Kind  ControlRequestKind
	Match func(sinkName string) bool
	Level Level // meaningful only for ControlSetLevel

	// Respond, if non-nil, is called exactly once with the outcome.
	Respond func(ControlResponse)
}

// ControlResponse is the result of processing one ControlRequest.
type ControlResponse struct {
	Statuses []SinkStatus // ControlStatus: one entry per matching sink
	Err      error        // non-nil selects the "error" response shape
}

// pollControlChannel services every request currently pending on ch,
// exactly the "poll-then-process commands with zero timeout" step in
// spec.md §4.8's scheduler loop. Called by consumer.run once per full
// round.
func (c *consumer) pollControlChannel(ch ControlChannel) {
	if ch == nil {
		return
	}
	for {
		req, ok := ch.Poll()
		if !ok {
			return
		}
		resp := c.handleControlRequest(req)
		if req.Respond != nil {
			req.Respond(resp)
		}
	}
}

// snapshotStatus builds one SinkStatus per registered sink matching match
// (nil matches every sink), shared by ControlStatus and the logger's
// status command (consumer.go's cmdStatus case).
func (c *consumer) snapshotStatus(match func(name string) bool) []SinkStatus {
	if match == nil {
		match = func(string) bool { return true }
	}
	var statuses []SinkStatus
	for i := range c.sinks {
		if !match(c.sinks[i].name) {
			continue
		}
		entry := c.sinks[i]
		statuses = append(statuses, SinkStatus{
			Name:     entry.name,
			Level:    entry.sink.Level(),
			Capacity: int(entry.sink.ring.cap),
			Used:     entry.sink.ring.used(),
			Dropped:  entry.dropped,
		})
	}
	return statuses
}

func (c *consumer) handleControlRequest(req ControlRequest) ControlResponse {
	match := req.Match
	if match == nil {
		match = func(string) bool { return true }
	}

	switch req.Kind {
	case ControlStatus:
		return ControlResponse{Statuses: c.snapshotStatus(match)}

	case ControlSetLevel:
		if req.Level < None || req.Level > Debug {
			return ControlResponse{Err: errInvalidLevel}
		}
		for i := range c.sinks {
			if match(c.sinks[i].name) {
				c.sinks[i].sink.SetLevel(req.Level)
			}
		}
		return ControlResponse{}

	case ControlReopen:
		err := c.out.flush()
		if err == nil {
			err = c.out.backend.Reopen()
		}
		return ControlResponse{Err: err}

	default:
		return ControlResponse{Err: errUnknownControlRequest}
	}
}
