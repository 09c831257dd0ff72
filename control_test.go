package xtrlog

import "testing"

// fakeControlChannel is a single-request-at-a-time ControlChannel stand-in.
type fakeControlChannel struct {
	pending []ControlRequest
}

func (f *fakeControlChannel) Poll() (ControlRequest, bool) {
	if len(f.pending) == 0 {
		return ControlRequest{}, false
	}
	req := f.pending[0]
	f.pending = f.pending[1:]
	return req, true
}

func newTestConsumer(t *testing.T) *consumer {
	t.Helper()
	backend := &recordingBackend{bufSize: 4096}
	out := newTestOutputBuffer(t, backend)
	return newConsumer(out, systemClock, newCommandQueue(8))
}

func registerTestSink(t *testing.T, c *consumer, name string, level Level) *Sink {
	t.Helper()
	r, err := newRing(4096)
	if err != nil {
		t.Fatalf("newRing: %v", err)
	}
	s := &Sink{ring: r, name: name, open: true}
	s.level.store(level)
	c.sinks = append(c.sinks, registryEntry{sink: s, name: name})
	return s
}

func TestPollControlChannelNilIsNoop(t *testing.T) {
	c := newTestConsumer(t)
	c.pollControlChannel(nil) // must not panic
}

func TestControlStatusReportsAllMatchingSinks(t *testing.T) {
	c := newTestConsumer(t)
	registerTestSink(t, c, "a", Info)
	registerTestSink(t, c, "b", Debug)

	resp := c.handleControlRequest(ControlRequest{Kind: ControlStatus})
	if len(resp.Statuses) != 2 {
		t.Fatalf("Statuses: got %d entries, want 2", len(resp.Statuses))
	}
	names := map[string]Level{}
	for _, st := range resp.Statuses {
		names[st.Name] = st.Level
	}
	if names["a"] != Info || names["b"] != Debug {
		t.Fatalf("Statuses: got %+v, want a=Info b=Debug", names)
	}
}

func TestControlStatusHonorsMatchPredicate(t *testing.T) {
	c := newTestConsumer(t)
	registerTestSink(t, c, "worker-1", Info)
	registerTestSink(t, c, "request-1", Info)

	resp := c.handleControlRequest(ControlRequest{
		Kind:  ControlStatus,
		Match: func(name string) bool { return name == "worker-1" },
	})
	if len(resp.Statuses) != 1 || resp.Statuses[0].Name != "worker-1" {
		t.Fatalf("Statuses: got %+v, want only worker-1", resp.Statuses)
	}
}

func TestControlSetLevelAppliesToMatchingSinks(t *testing.T) {
	c := newTestConsumer(t)
	a := registerTestSink(t, c, "a", Info)
	b := registerTestSink(t, c, "b", Info)

	resp := c.handleControlRequest(ControlRequest{Kind: ControlSetLevel, Level: Debug})
	if resp.Err != nil {
		t.Fatalf("ControlSetLevel: %v", resp.Err)
	}
	if a.Level() != Debug || b.Level() != Debug {
		t.Fatalf("levels after broadcast set: got a=%v b=%v, want both Debug", a.Level(), b.Level())
	}
}

func TestControlSetLevelRejectsInvalidLevel(t *testing.T) {
	c := newTestConsumer(t)
	registerTestSink(t, c, "a", Info)

	resp := c.handleControlRequest(ControlRequest{Kind: ControlSetLevel, Level: Level(99)})
	if resp.Err != errInvalidLevel {
		t.Fatalf("ControlSetLevel with bad level: got err %v, want %v", resp.Err, errInvalidLevel)
	}
}

func TestControlReopenCallsBackend(t *testing.T) {
	backend := &recordingBackend{bufSize: 4096}
	out := newTestOutputBuffer(t, backend)
	c := newConsumer(out, systemClock, newCommandQueue(8))

	resp := c.handleControlRequest(ControlRequest{Kind: ControlReopen})
	if resp.Err != nil {
		t.Fatalf("ControlReopen: %v", resp.Err)
	}
	if backend.reopens != 1 {
		t.Fatalf("backend.Reopen calls: got %d, want 1", backend.reopens)
	}
}

func TestControlUnknownRequestKind(t *testing.T) {
	c := newTestConsumer(t)
	resp := c.handleControlRequest(ControlRequest{Kind: ControlRequestKind(99)})
	if resp.Err != errUnknownControlRequest {
		t.Fatalf("unknown kind: got err %v, want %v", resp.Err, errUnknownControlRequest)
	}
}

func TestPollControlChannelInvokesRespond(t *testing.T) {
	c := newTestConsumer(t)
	registerTestSink(t, c, "a", Info)

	var gotResp ControlResponse
	ch := &fakeControlChannel{pending: []ControlRequest{
		{
			Kind: ControlStatus,
			Respond: func(r ControlResponse) {
				gotResp = r
			},
		},
	}}

	c.pollControlChannel(ch)
	if len(gotResp.Statuses) != 1 || gotResp.Statuses[0].Name != "a" {
		t.Fatalf("Respond callback: got %+v, want one status for sink a", gotResp)
	}
}
